// Package literal evaluates the small literal language used by schema rules,
// loop iterables, option lists and defaults.
//
// Only literals are understood: lists, tuples (read as lists), dicts, quoted
// strings, numbers, True/False and None. Nothing is executed; any other
// token is an error.
package literal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Eval parses a single literal expression.
func Eval(expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q at position %d", p.tokens[p.pos].value, p.pos)
	}
	return val, nil
}

// EvalList parses expr and requires the result to be a list.
func EvalList(expr string) ([]any, error) {
	val, err := Eval(expr)
	if err != nil {
		return nil, err
	}
	list, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("expression %q is not a list", expr)
	}
	return list, nil
}

// --- Token types ---

type tokenKind int

const (
	tkNumber   tokenKind = iota // 42, -3.14
	tkString                    // 'a' or "a"
	tkIdent                     // True, False, None
	tkLBracket                  // [
	tkRBracket                  // ]
	tkLParen                    // (
	tkRParen                    // )
	tkLBrace                    // {
	tkRBrace                    // }
	tkComma                     // ,
	tkColon                     // :
)

type token struct {
	kind  tokenKind
	value string
}

var punct = map[rune]tokenKind{
	'[': tkLBracket,
	']': tkRBracket,
	'(': tkLParen,
	')': tkRParen,
	'{': tkLBrace,
	'}': tkRBrace,
	',': tkComma,
	':': tkColon,
}

// --- Tokenizer ---

func tokenize(expr string) ([]token, error) {
	var tokens []token
	runes := []rune(expr)
	i := 0

	for i < len(runes) {
		ch := runes[i]

		if unicode.IsSpace(ch) {
			i++
			continue
		}

		if kind, ok := punct[ch]; ok {
			tokens = append(tokens, token{kind, string(ch)})
			i++
			continue
		}

		if ch == '"' || ch == '\'' {
			s, n, err := readString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{tkString, s})
			i = n
			continue
		}

		if isDigit(ch) || ((ch == '-' || ch == '+') && i+1 < len(runes) && isDigit(runes[i+1])) {
			num, n := readNumber(runes, i)
			tokens = append(tokens, token{tkNumber, num})
			i = n
			continue
		}

		if unicode.IsLetter(ch) || ch == '_' {
			ident, n := readIdent(runes, i)
			tokens = append(tokens, token{tkIdent, ident})
			i = n
			continue
		}

		return nil, fmt.Errorf("unexpected character %q at position %d", string(ch), i)
	}

	return tokens, nil
}

func readString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	i := start + 1
	var sb strings.Builder
	for i < len(runes) {
		if runes[i] == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(runes[i+1])
			}
			i += 2
			continue
		}
		if runes[i] == quote {
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(runes[i])
		i++
	}
	return "", 0, fmt.Errorf("unterminated string starting at position %d", start)
}

func readNumber(runes []rune, start int) (string, int) {
	i := start
	if runes[i] == '-' || runes[i] == '+' {
		i++
	}
	for i < len(runes) && isDigit(runes[i]) {
		i++
	}
	if i < len(runes) && runes[i] == '.' {
		i++
		for i < len(runes) && isDigit(runes[i]) {
			i++
		}
	}
	return string(runes[start:i]), i
}

func readIdent(runes []rune, start int) (string, int) {
	i := start
	for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
		i++
	}
	return string(runes[start:i]), i
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

// --- Recursive descent parser ---

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, error) {
	tok, ok := p.peek()
	if !ok {
		return token{}, fmt.Errorf("unexpected end of expression")
	}
	p.pos++
	return tok, nil
}

func (p *parser) parseValue() (any, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}

	switch tok.kind {
	case tkString:
		return tok.value, nil
	case tkNumber:
		return parseNumber(tok.value)
	case tkIdent:
		switch tok.value {
		case "True", "true":
			return true, nil
		case "False", "false":
			return false, nil
		case "None", "null":
			return nil, nil
		}
		return nil, fmt.Errorf("unknown identifier %q", tok.value)
	case tkLBracket:
		return p.parseSequence(tkRBracket)
	case tkLParen:
		return p.parseSequence(tkRParen)
	case tkLBrace:
		return p.parseDict()
	}
	return nil, fmt.Errorf("unexpected token %q", tok.value)
}

func (p *parser) parseSequence(closing tokenKind) (any, error) {
	items := []any{}
	for {
		tok, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated sequence")
		}
		if tok.kind == closing {
			p.pos++
			return items, nil
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, val)

		tok, err = p.next()
		if err != nil {
			return nil, fmt.Errorf("unterminated sequence")
		}
		switch tok.kind {
		case tkComma:
		case closing:
			return items, nil
		default:
			return nil, fmt.Errorf("expected ',' in sequence, got %q", tok.value)
		}
	}
}

func (p *parser) parseDict() (any, error) {
	out := map[string]any{}
	for {
		tok, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated dict")
		}
		if tok.kind == tkRBrace {
			p.pos++
			return out, nil
		}
		key, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if tok, err = p.next(); err != nil || tok.kind != tkColon {
			return nil, fmt.Errorf("expected ':' after dict key")
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out[String(key)] = val

		tok, err = p.next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dict")
		}
		switch tok.kind {
		case tkComma:
		case tkRBrace:
			return out, nil
		default:
			return nil, fmt.Errorf("expected ',' in dict, got %q", tok.value)
		}
	}
}

func parseNumber(s string) (any, error) {
	if !strings.Contains(s, ".") {
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

// =============================================================================
// Formatting
// =============================================================================

// Format renders v as a literal that Eval reads back to an equal value.
func Format(v any) string {
	var b strings.Builder
	writeLiteral(&b, v)
	return b.String()
}

// String renders v for textual substitution: strings stay verbatim,
// everything else is formatted as a literal.
func String(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Format(v)
}

func writeLiteral(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("None")
	case string:
		b.WriteByte('\'')
		b.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\t", `\t`).Replace(x))
		b.WriteByte('\'')
	case bool:
		if x {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int:
		b.WriteString(strconv.Itoa(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		b.WriteString(s)
	case []any:
		b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			writeLiteral(b, item)
		}
		b.WriteByte(']')
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		writeLiteral(b, items)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeLiteral(b, k)
			b.WriteString(": ")
			writeLiteral(b, x[k])
		}
		b.WriteByte('}')
	default:
		writeLiteral(b, fmt.Sprint(x))
	}
}

// Substitute replaces every {name} placeholder in text with the matching
// binding rendered by String. Unknown placeholders are left untouched.
func Substitute(text string, bindings map[string]any) string {
	if len(bindings) == 0 || !strings.Contains(text, "{") {
		return text
	}
	for k, v := range bindings {
		ph := "{" + strings.Trim(k, "{}") + "}"
		if strings.Contains(text, ph) {
			text = strings.ReplaceAll(text, ph, String(v))
		}
	}
	return text
}
