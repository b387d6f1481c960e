package mask

import "regexp"

type Category string

const (
	CategoryNationalID Category = "national_id"
	CategoryPhone      Category = "phone"
	CategoryEmail      Category = "email"
)

// Replacer builds the replacement for one match. groups[0] is the whole
// match, followed by the capture groups. Returning false leaves the match
// untouched.
type Replacer func(groups []string) (string, bool)

// Rule recognizes one PII category and rewrites every match in a string.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
	Replace  Replacer
}

// Counts tracks how many substitutions each category made.
type Counts map[Category]int

func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

func (c Counts) Add(other Counts) {
	for category, n := range other {
		c[category] += n
	}
}
