package schema

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/elokus/StructGenie/schema/literal"
)

// RuleKind classifies a constraint rule. Rules are parsed once when a line
// is built; validation dispatches on the kind instead of re-matching text.
type RuleKind int

const (
	RuleNone RuleKind = iota
	RuleEquals
	RuleLength
	RuleOneOf
	RuleOneOrMore
	RuleRegex
	RuleMinMax
	RuleForEach
	RuleUnknown
)

var ruleKindNames = map[RuleKind]string{
	RuleNone:      "none",
	RuleEquals:    "equals",
	RuleLength:    "length",
	RuleOneOf:     "one_of",
	RuleOneOrMore: "one_or_more",
	RuleRegex:     "regex",
	RuleMinMax:    "min_max",
	RuleForEach:   "for_each",
	RuleUnknown:   "unknown",
}

func (k RuleKind) String() string {
	if name, ok := ruleKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Rule is a parsed constraint expression.
type Rule struct {
	Kind RuleKind
	// Raw is the normalized rule text as declared.
	Raw string

	// Equals: expected value. Regex: pattern.
	Value string
	// Length: expected length.
	Length int
	// OneOf / OneOrMore: allowed values.
	Values []any
	// MinMax bounds; nil means unbounded.
	Min *float64
	Max *float64
	// ForEach: loop variable (e.g. "$role") and iterable expression text.
	Iterator string
	Iterable string
}

var (
	forEachPattern  = regexp.MustCompile(`^for\s+each\s+(\S+)\s+in\s+(.*)$`)
	minPattern      = regexp.MustCompile(`min\s*=\s*(-?\d+(?:\.\d+)?)`)
	maxPattern      = regexp.MustCompile(`max\s*=\s*(-?\d+(?:\.\d+)?)`)
	placeholderExpr = regexp.MustCompile(`\{[^{}]+\}`)
)

// ParseRule parses rule text into its tagged form. Empty text yields RuleNone;
// text that matches no known form yields RuleUnknown, which validation ignores.
func ParseRule(raw string) Rule {
	raw = normalizeRuleText(raw)
	r := Rule{Raw: raw}

	switch {
	case raw == "":
		r.Kind = RuleNone
	case strings.HasPrefix(raw, "="):
		r.Kind = RuleEquals
		r.Value = strings.TrimSpace(strings.SplitN(raw[1:], "=", 2)[0])
	case strings.HasPrefix(raw, "length"):
		parts := strings.SplitN(raw, "=", 2)
		n, err := strconv.Atoi(strings.TrimSpace(lastOf(parts)))
		if len(parts) != 2 || err != nil {
			r.Kind = RuleUnknown
			break
		}
		r.Kind = RuleLength
		r.Length = n
	case strings.HasPrefix(raw, "one of"):
		r.Kind = RuleOneOf
		r.Values = ParseList(ruleArgument(raw, "one of"))
	case strings.HasPrefix(raw, "one or more"):
		r.Kind = RuleOneOrMore
		r.Values = ParseList(ruleArgument(strings.TrimPrefix(raw, "one or more"), "of"))
	case strings.HasPrefix(raw, "regex"):
		r.Kind = RuleRegex
		r.Value = ruleArgument(raw, "regex")
	case strings.HasPrefix(raw, "for"):
		m := forEachPattern.FindStringSubmatch(raw)
		if m == nil {
			r.Kind = RuleUnknown
			break
		}
		r.Kind = RuleForEach
		r.Iterator = m[1]
		r.Iterable = strings.TrimSpace(m[2])
	case strings.HasPrefix(raw, "min=") || strings.HasPrefix(raw, "max=") ||
		strings.HasPrefix(raw, "min =") || strings.HasPrefix(raw, "max ="):
		r.Kind = RuleMinMax
		if m := minPattern.FindStringSubmatch(raw); m != nil {
			v, _ := strconv.ParseFloat(m[1], 64)
			r.Min = &v
		}
		if m := maxPattern.FindStringSubmatch(raw); m != nil {
			v, _ := strconv.ParseFloat(m[1], 64)
			r.Max = &v
		}
	default:
		r.Kind = RuleUnknown
	}
	return r
}

// IsLoop reports whether the rule declares a loop.
func (r Rule) IsLoop() bool { return r.Kind == RuleForEach }

// IsZero reports whether no rule is declared.
func (r Rule) IsZero() bool { return r.Raw == "" }

// HasPlaceholder reports whether the rule text references run inputs.
func (r Rule) HasPlaceholder() bool {
	return placeholderExpr.MatchString(r.Raw)
}

// Resolve substitutes {placeholder} references from inputs and re-parses.
// Rules without placeholders are returned unchanged.
func (r Rule) Resolve(inputs map[string]any) Rule {
	if !r.HasPlaceholder() || len(inputs) == 0 {
		return r
	}
	return ParseRule(literal.Substitute(r.Raw, inputs))
}

func (r Rule) String() string { return r.Raw }

// normalizeRuleText removes outer quotes and parentheses, the way rules are
// accepted in both the current and the legacy notation. Regex patterns keep
// their inner groups.
func normalizeRuleText(raw string) string {
	raw = RemoveOuterQuotes(raw)
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}
	if !strings.HasPrefix(raw, "regex") {
		raw = strings.NewReplacer("(", "", ")", "").Replace(raw)
	}
	return strings.TrimSpace(raw)
}

// ruleArgument returns the text following prefix, skipping a separating
// colon if present.
func ruleArgument(raw, prefix string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), prefix))
	rest = strings.TrimPrefix(rest, ":")
	return strings.TrimSpace(rest)
}

func lastOf(parts []string) string {
	return parts[len(parts)-1]
}

// ParseList reads a list literal. Text that is not a valid literal is split
// on commas after stripping brackets and quotes.
func ParseList(text string) []any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if val, err := literal.Eval(text); err == nil {
		if list, ok := val.([]any); ok {
			return list
		}
		return []any{val}
	}
	text = strings.NewReplacer("[", "", "]", "").Replace(text)
	var out []any
	for _, part := range strings.Split(text, ",") {
		part = RemoveOuterQuotes(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
