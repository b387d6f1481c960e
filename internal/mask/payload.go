package mask

import "fmt"

// Payload returns a deep copy of v with every string leaf masked by the
// engine. Arrays keep their length and order, objects keep their keys and
// member order, and keys themselves are never masked.
func (e *Engine) Payload(v Value, counts Counts) Value {
	switch v.kind {
	case KindString:
		return StringValue(e.MaskCounted(v.text, counts))
	case KindArray:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = e.Payload(item, counts)
		}
		return Value{kind: KindArray, items: items}
	case KindObject:
		members := make([]Member, len(v.members))
		for i, m := range v.members {
			members[i] = Member{Key: m.Key, Value: e.Payload(m.Value, counts)}
		}
		return Value{kind: KindObject, members: members}
	case KindNull, KindBool, KindNumber:
		return v
	default:
		panic(fmt.Sprintf("mask: unknown value kind %s", v.kind))
	}
}

// Payload masks v with the default engine.
func Payload(v Value) Value {
	return defaultEngine.Payload(v, nil)
}

// JSON parses data, masks it and encodes the result.
func (e *Engine) JSON(data []byte) ([]byte, Counts, error) {
	v, err := ParseValue(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse json: %w", err)
	}
	counts := Counts{}
	out, err := e.Payload(v, counts).MarshalJSON()
	if err != nil {
		return nil, nil, fmt.Errorf("encode json: %w", err)
	}
	return out, counts, nil
}

// JSON masks a JSON document with the default engine.
func JSON(data []byte) ([]byte, Counts, error) {
	return defaultEngine.JSON(data)
}
