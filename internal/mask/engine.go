package mask

// Engine applies an ordered list of rules. Each rule runs over the output of
// the previous one, so the order is part of the masking contract: national
// IDs first, because the looser phone pattern would otherwise capture part of
// them.
//
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	rules []Rule
}

var defaultEngine = NewEngine(NationalIDRule(), PhoneRule(), EmailRule())

func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// Default returns the engine with the built-in rule order.
func Default() *Engine {
	return defaultEngine
}

// Rules returns a copy of the engine's rules in application order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

func (e *Engine) Mask(text string) string {
	return e.MaskCounted(text, nil)
}

// MaskCounted masks text and adds the substitutions made to counts when
// counts is non-nil.
func (e *Engine) MaskCounted(text string, counts Counts) string {
	out := text
	for _, rule := range e.rules {
		var n int
		out, n = rule.Apply(out)
		if n > 0 && counts != nil {
			counts[rule.Category] += n
		}
	}
	return out
}

// Text masks text with the default engine.
func Text(text string) string {
	return defaultEngine.Mask(text)
}

// Any masks v when it is a string and returns every other value unchanged.
func Any(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return defaultEngine.Mask(s)
}
