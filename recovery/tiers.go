package recovery

import (
	"regexp"
	"strings"

	"github.com/elokus/StructGenie/codec"
	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/types"
)

// parseMultiline captures every multiline field verbatim: its value runs
// from its own header to the header of the next top-level key, or to the
// end of the text. The remaining text is decoded normally and merged.
func (p *Parser) parseMultiline(text string) (map[string]any, error) {
	top := p.model.TopLevel()
	out := map[string]any{}
	rest := "\n" + text
	remaining := 0

	for i, l := range top {
		if !l.Multiline {
			remaining++
			continue
		}
		next := ""
		if i+1 < len(top) {
			next = top[i+1].PromptKey()
		}
		value, cut, ok := extractSection(rest, l.PromptKey(), next)
		if !ok {
			return nil, types.Errorf(types.ErrMultilineParsing, "Failed Multiline parsing: header '%s:' not found", l.PromptKey()).
				WithKey(l.Key)
		}
		out[l.Key] = value
		rest = cut
	}

	if strings.TrimSpace(rest) != "" && remaining > 0 {
		decoded, err := p.decoder.Decode(rest)
		if err != nil {
			return nil, types.NewError(types.ErrMultilineParsing, "Failed Multiline parsing").WithCause(err)
		}
		if m, ok := decoded.(map[string]any); ok {
			for k, v := range m {
				if _, taken := out[k]; !taken {
					out[k] = v
				}
			}
		}
	}
	return out, nil
}

// extractSection returns the trimmed text after "\nKey:" up to "\nNext:"
// (or the end when next is empty), and text with that section removed.
func extractSection(text, key, next string) (string, string, bool) {
	pattern := `(?is)\n` + regexp.QuoteMeta(key) + `:(.*)`
	if next != "" {
		pattern = `(?is)\n` + regexp.QuoteMeta(key) + `:(.*?)\n` + regexp.QuoteMeta(next) + `:`
	}
	m := regexp.MustCompile(pattern).FindStringSubmatchIndex(text)
	if m == nil {
		return "", text, false
	}
	value := strings.TrimSpace(text[m[2]:m[3]])
	return value, text[:m[0]] + text[m[3]:], true
}

// parseSplit partitions text on top-level key headers and decodes each
// segment on its own. Segments that fail to decode are reported as partial
// errors, in model order, instead of failing the whole parse.
func (p *Parser) parseSplit(text string) (map[string]any, []*types.Error, error) {
	top := p.model.TopLevel()
	if len(top) == 0 {
		return nil, nil, types.NewError(types.ErrParsing, "output model declares no keys")
	}

	byHeader := make(map[string]schema.Line, len(top))
	alts := make([]string, 0, len(top))
	for _, l := range top {
		byHeader[strings.ToLower(l.PromptKey())] = l
		alts = append(alts, regexp.QuoteMeta(l.PromptKey()))
	}
	headers := regexp.MustCompile(`(?mi)^(` + strings.Join(alts, "|") + `)[ \t]*:`)

	matches := headers.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, nil, types.NewError(types.ErrParsing, "no output key found in text")
	}

	out := map[string]any{}
	failed := map[string]*types.Error{}
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		l := byHeader[strings.ToLower(text[m[2]:m[3]])]
		value := text[m[1]:end]

		if l.Type == "str" || l.Type == "multiline" || l.Multiline {
			out[l.Key] = strings.TrimSpace(value)
			delete(failed, l.Key)
			continue
		}

		segment := l.PromptKey() + ":" + value
		if v, ok := p.decodeSegment(segment, value, l.Key); ok {
			out[l.Key] = v
			delete(failed, l.Key)
			continue
		}
		failed[l.Key] = types.Errorf(types.ErrParsingPartial,
			"Error while parsing output for key '%s'. Output: %s", l.PromptKey(), strings.TrimSpace(text[m[0]:end])).
			WithKey(l.Key)
	}

	var partials []*types.Error
	for _, l := range top {
		if perr, ok := failed[l.Key]; ok {
			partials = append(partials, perr)
		}
	}
	return out, partials, nil
}

// decodeSegment decodes "Key: value" and picks the key. Decoders that cannot
// read a bare header (JSON) get a second try with the value alone.
func (p *Parser) decodeSegment(segment, value, key string) (any, bool) {
	if decoded, err := p.decoder.Decode(segment); err == nil {
		if m, ok := decoded.(map[string]any); ok {
			if v, ok := m[key]; ok {
				return v, true
			}
		}
	}
	if strings.TrimSpace(value) == "" {
		return nil, false
	}
	if p.decoder.Name() == (codec.YAML{}).Name() {
		return nil, false
	}
	decoded, err := p.decoder.Decode(value)
	if err != nil {
		return nil, false
	}
	return decoded, true
}
