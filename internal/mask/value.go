package mask

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxDepth matches the nesting limit of encoding/json.
const maxDepth = 10000

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a JSON document node. The zero Value is null.
//
// Numbers keep their literal text and objects keep their member order, so a
// document that is decoded and encoded again only differs in whitespace.
type Value struct {
	kind    Kind
	boolean bool
	text    string // string contents or number literal
	items   []Value
	members []Member
}

type Member struct {
	Key   string
	Value Value
}

func NullValue() Value { return Value{} }

func BoolValue(b bool) Value { return Value{kind: KindBool, boolean: b} }

// NumberValue wraps a JSON number literal such as "42" or "1.5e3".
func NumberValue(literal string) Value { return Value{kind: KindNumber, text: literal} }

func StringValue(s string) Value { return Value{kind: KindString, text: s} }

func ArrayValue(items ...Value) Value {
	return Value{kind: KindArray, items: items}
}

func ObjectValue(members ...Member) Value {
	return Value{kind: KindObject, members: members}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() bool { return v.boolean }

func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.text
}

func (v Value) AsNumber() json.Number {
	if v.kind != KindNumber {
		return ""
	}
	return json.Number(v.text)
}

func (v Value) Items() []Value { return v.items }

func (v Value) Members() []Member { return v.members }

// Len reports the number of array items or object members.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// Get returns the first member named key.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// ParseValue decodes exactly one JSON document.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return Value{}, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return Value{}, err
		}
		return Value{}, fmt.Errorf("unexpected data after document: %v", tok)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, errors.New("document nested too deeply")
	}

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t.String()), nil
	case string:
		return StringValue(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ArrayValue(items...), nil
		case '{':
			members := []Member{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key must be a string, got %v", keyTok)
				}
				val, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				members = append(members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ObjectValue(members...), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := v.encode(&buf, enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer, enc *json.Encoder) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.boolean {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.text == "" {
			return errors.New("empty number literal")
		}
		buf.WriteString(v.text)
	case KindString:
		return encodeString(buf, enc, v.text)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf, enc); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, enc, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf, enc); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind %s", v.kind)
	}
	return nil
}

// encodeString writes s through enc and drops the newline Encode appends.
func encodeString(buf *bytes.Buffer, enc *json.Encoder, s string) error {
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}
