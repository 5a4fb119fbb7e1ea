package prompt

import (
	"regexp"
	"strings"

	"github.com/elokus/StructGenie/schema"
)

// Section names of a schema document.
const (
	SectionInstruction  = "instruction"
	SectionExamples     = "examples"
	SectionInputSchema  = "input_schema"
	SectionOutputSchema = "output_schema"
	SectionSystemConfig = "system_config"
)

// Sections of a rendered prompt.
const (
	SectionFormatInstructions = "format_instructions"
	SectionRemarks            = "remarks"
	SectionInput              = "input"
)

// TagStyle is one way of marking sections in a document. {section} in the
// tags is replaced by the section name.
type TagStyle struct {
	Name  string
	Start string
	End   string
}

// TagStyles are tried in order when detecting how a document is tagged.
var TagStyles = []TagStyle{
	{Name: "separator", Start: "=== {section} ===", End: "=== {section} end ==="},
	{Name: "html", Start: "<section {section}>", End: "</section {section}>"},
	{Name: "guidance", Start: "{{#{section}~}}", End: "{{~/{section}}}"},
	{Name: "markdown", Start: "# {section}", End: "# ---"},
}

var sectionOrder = []string{
	SectionInstruction,
	SectionExamples,
	SectionOutputSchema,
	SectionInputSchema,
	SectionSystemConfig,
}

// SectionAliases lists the names each section may appear under, most
// specific first.
var SectionAliases = map[string][]string{
	SectionInstruction:  {"instructions", "instruction"},
	SectionExamples:     {"examples", "example"},
	SectionOutputSchema: {"response schema", "response model", "output model", "output schema", "output", "response"},
	SectionInputSchema:  {"input schema", "input model", "input"},
	SectionSystemConfig: {"system configuration", "system config", "config"},
}

// Sections are the parts of a schema document.
type Sections struct {
	Instruction  string
	Examples     string
	InputSchema  string
	OutputSchema string
	SystemConfig string
}

// Get returns a section by name.
func (s Sections) Get(name string) string {
	switch name {
	case SectionInstruction:
		return s.Instruction
	case SectionExamples:
		return s.Examples
	case SectionInputSchema:
		return s.InputSchema
	case SectionOutputSchema:
		return s.OutputSchema
	case SectionSystemConfig:
		return s.SystemConfig
	}
	return ""
}

func (s *Sections) set(name, value string) {
	switch name {
	case SectionInstruction:
		s.Instruction = value
	case SectionExamples:
		s.Examples = value
	case SectionInputSchema:
		s.InputSchema = value
	case SectionOutputSchema:
		s.OutputSchema = value
	case SectionSystemConfig:
		s.SystemConfig = value
	}
}

func names(section string) []string {
	aliases := SectionAliases[section]
	out := make([]string, 0, 2*len(aliases)+1)
	out = append(out, aliases...)
	for _, a := range aliases {
		out = append(out, strings.ToUpper(a[:1])+a[1:])
	}
	return append(out, section)
}

func tag(pattern, section string) string {
	return strings.ReplaceAll(pattern, "{section}", section)
}

// DetectStyle returns the first tag style whose start tag appears in the
// document for any section name. Untagged documents get the markdown style.
func DetectStyle(doc string) TagStyle {
	for _, style := range TagStyles {
		for _, section := range sectionOrder {
			for _, name := range names(section) {
				if strings.Contains(doc, tag(style.Start, name)) {
					return style
				}
			}
		}
	}
	return TagStyles[len(TagStyles)-1]
}

// HasSection reports whether the document tags section in any style.
func HasSection(doc, section string) bool {
	for _, style := range TagStyles {
		for _, name := range names(section) {
			if strings.Contains(doc, tag(style.Start, name)) {
				return true
			}
		}
	}
	return false
}

// Extract splits a schema document into its sections. Tagged sections end
// at their explicit end tag, else at the next start tag, else at the end of
// the document. Untagged documents fall back to positional rules: the first
// paragraph is the instruction, the text after "Begin!" up to "---" the
// input schema, and the type notation lines after "---" the output schema.
func Extract(doc string) Sections {
	style := DetectStyle(doc)
	next := strings.SplitN(style.Start, "{section}", 2)[0]

	var out Sections
	for _, section := range sectionOrder {
		value, ok := extractTagged(doc, style, next, section)
		if !ok {
			value, ok = extractPositional(doc, next, section)
		}
		if ok {
			out.set(section, value)
		}
	}
	if before, _, found := strings.Cut(out.InputSchema, "\n---\n"); found {
		out.InputSchema = strings.TrimSpace(before)
	}
	return out
}

func extractTagged(doc string, style TagStyle, next, section string) (string, bool) {
	for _, name := range names(section) {
		start := tag(style.Start, name)
		idx := strings.Index(doc, start)
		if idx < 0 {
			continue
		}
		rest := doc[idx+len(start):]

		if end := tag(style.End, name); strings.Contains(doc, end) {
			if e := strings.Index(rest, end); e >= 0 {
				return strings.TrimSpace(rest[:e]), true
			}
			continue
		}
		if e := strings.Index(rest, next); e >= 0 {
			return strings.TrimSpace(rest[:e]), true
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

var leadingWord = regexp.MustCompile(`^\w`)

func extractPositional(doc, next, section string) (string, bool) {
	switch section {
	case SectionInstruction:
		text := strings.TrimPrefix(doc, "\n")
		if !leadingWord.MatchString(text) {
			return "", false
		}
		end := -1
		for _, stop := range []string{"\n\n", next, "Begin!"} {
			if i := strings.Index(text, stop); i >= 0 && (end < 0 || i < end) {
				end = i
			}
		}
		if end < 0 {
			return "", false
		}
		return strings.TrimSpace(text[:end]), true

	case SectionInputSchema:
		_, after, found := strings.Cut(doc, "Begin!\n")
		if !found {
			return "", false
		}
		if before, _, ok := strings.Cut(after, "---"); ok {
			after = before
		}
		return strings.TrimSpace(after), true

	case SectionOutputSchema:
		_, after, found := strings.Cut(doc, "---\n")
		if !found {
			return "", false
		}
		var lines []string
		for _, l := range strings.Split(after, "\n") {
			if schema.IsTypeNotation(strings.TrimSpace(l)) {
				lines = append(lines, strings.TrimSpace(l))
			}
		}
		if len(lines) == 0 {
			return "", false
		}
		return strings.Join(lines, "\n"), true
	}
	return "", false
}
