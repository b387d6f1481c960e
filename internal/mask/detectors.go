package mask

import (
	"regexp"
	"strings"
)

const (
	maskChar   = "*"
	emailMask  = "***"
	idMaskBody = "*******"
)

var (
	nationalIDPattern = regexp.MustCompile(`(\d{6})[- \s]*([1-4]\d{6})`)
	phonePattern      = regexp.MustCompile(`(\d{3})[- \s]*(\d{3,4})[- \s]*(\d{4})`)
	emailPattern      = regexp.MustCompile(`([a-zA-Z0-9._-]+)@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
)

// NationalIDRule keeps the birth-date group and blanks the seven digit serial.
func NationalIDRule() Rule {
	return Rule{
		Category: CategoryNationalID,
		Pattern:  nationalIDPattern,
		Replace: func(groups []string) (string, bool) {
			return groups[1] + "-" + idMaskBody, true
		},
	}
}

// PhoneRule masks the last two groups of numbers dialed with a leading 0.
func PhoneRule() Rule {
	return Rule{
		Category: CategoryPhone,
		Pattern:  phonePattern,
		Replace: func(groups []string) (string, bool) {
			prefix, middle, last := groups[1], groups[2], groups[3]
			if !strings.HasPrefix(prefix, "0") {
				return "", false
			}
			return prefix + "-" + strings.Repeat(maskChar, len(middle)) + "-" + strings.Repeat(maskChar, len(last)), true
		},
	}
}

// EmailRule keeps at most two characters of the local part. The domain is
// never altered.
func EmailRule() Rule {
	return Rule{
		Category: CategoryEmail,
		Pattern:  emailPattern,
		Replace: func(groups []string) (string, bool) {
			local, domain := groups[1], groups[2]
			if len(local) > 2 {
				return local[:2] + emailMask + "@" + domain, true
			}
			return emailMask + "@" + domain, true
		},
	}
}

// Apply rewrites every non-overlapping match of the rule in input and returns
// the result with the number of substitutions made.
func (r Rule) Apply(input string) (string, int) {
	matches := r.Pattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input, 0
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	replaced := 0
	for _, loc := range matches {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			start, end := loc[2*i], loc[2*i+1]
			if start >= 0 {
				groups[i] = input[start:end]
			}
		}

		b.WriteString(input[last:loc[0]])
		if out, ok := r.Replace(groups); ok {
			b.WriteString(out)
			replaced++
		} else {
			b.WriteString(groups[0])
		}
		last = loc[1]
	}
	b.WriteString(input[last:])

	if replaced == 0 {
		return input, 0
	}
	return b.String(), replaced
}
