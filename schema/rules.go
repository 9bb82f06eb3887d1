package schema

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Rule checks an already coerced field value.
type Rule struct {
	Check   func(v any) bool
	Type    string
	Message string
}

// Min requires a numeric value greater than or equal to n.
func Min(n float64) Rule {
	return Rule{
		Check:   func(v any) bool { f, ok := number(v); return ok && f >= n },
		Type:    "greater_than_equal",
		Message: fmt.Sprintf("Input should be greater than or equal to %v", n),
	}
}

// Max requires a numeric value less than or equal to n.
func Max(n float64) Rule {
	return Rule{
		Check:   func(v any) bool { f, ok := number(v); return ok && f <= n },
		Type:    "less_than_equal",
		Message: fmt.Sprintf("Input should be less than or equal to %v", n),
	}
}

// MinLen requires a string of at least n characters or a list of at least n items.
func MinLen(n int) Rule {
	return Rule{
		Check:   func(v any) bool { l, ok := length(v); return ok && l >= n },
		Type:    "too_short",
		Message: fmt.Sprintf("Value should have at least %d items or characters", n),
	}
}

// MaxLen requires a string of at most n characters or a list of at most n items.
func MaxLen(n int) Rule {
	return Rule{
		Check:   func(v any) bool { l, ok := length(v); return ok && l <= n },
		Type:    "too_long",
		Message: fmt.Sprintf("Value should have at most %d items or characters", n),
	}
}

// Pattern requires a string matching expr. Panics if expr does not compile.
func Pattern(expr string) Rule {
	re := regexp.MustCompile(expr)
	return Rule{
		Check: func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		},
		Type:    "string_pattern_mismatch",
		Message: fmt.Sprintf("String should match pattern '%s'", expr),
	}
}

// OneOf requires the value to equal one of values. Integer fields coerce to
// int64, so integer choices must be given as int64.
func OneOf(values ...any) Rule {
	return Rule{
		Check: func(v any) bool {
			for _, allowed := range values {
				if v == allowed {
					return true
				}
			}
			return false
		},
		Type:    "enum",
		Message: fmt.Sprintf("Input should be one of %v", values),
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func length(v any) (int, bool) {
	switch s := v.(type) {
	case string:
		return utf8.RuneCountInString(s), true
	case []any:
		return len(s), true
	}
	return 0, false
}
