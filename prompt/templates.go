package prompt

import (
	"embed"
	"sort"
	"strings"
)

// DefaultTemplate arranges the sections of a prompt.
const DefaultTemplate = `{instruction}
{format_instructions}
{examples}
{remarks}
{input}
`

// FormatInstructionsTemplate asks for a YAML reply shaped like the compiled
// response schema.
const FormatInstructionsTemplate = "Please return a response in yaml format using the following schema:\n" +
	"```yaml\n{response_schema}```\n" +
	"Do not include any other information or explanation to your response, \n" +
	"so that your response can be parsed as yaml.\n" +
	"Remember to set the value in quotes using the Double quotation marks \n" +
	"when values are multiline strings or contain ':'."

// ConditionalFormatTemplate asks for one of two YAML shapes depending on a
// condition.
const ConditionalFormatTemplate = "Please return a response in yaml format.\n" +
	"If {condition}, use the following schema:\n" +
	"```yaml\n{response_schema}```\n" +
	"Otherwise use the following schema:\n" +
	"```yaml\n{response_schema_else}```\n" +
	"Do not include any other information or explanation to your response, \n" +
	"so that your response can be parsed as yaml.\n" +
	"Remember to set the value in quotes using the Double quotation marks \n" +
	"when values are multiline strings or contain ':'."

// ErrorTemplate feeds the errors of the previous attempt back to the model.
const ErrorTemplate = `{remarks}
During last attempt, the following errors were encountered:
{error}
This error was due to your response:
{last_output}
Please fix the error and try again.`

// Names of the built-in repair templates.
const (
	FixParsingError   = "fix_parsing_error"
	FixPartialParsing = "fix_partial_parsing"
)

//go:embed templates/*.txt
var defaultTemplates embed.FS

// Default returns a built-in template document by name.
func Default(name string) (string, bool) {
	data, err := defaultTemplates.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", false
	}
	return string(data), true
}

// DefaultNames lists the built-in templates.
func DefaultNames() []string {
	entries, _ := defaultTemplates.ReadDir("templates")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(names)
	return names
}

// Replace substitutes {name} placeholders in template. Missing or empty
// values render as the empty string; other placeholders are left alone.
func Replace(template string, values map[string]string) string {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Tagged wraps content with a markdown section header derived from name
// ("format_instructions" -> "# Format instructions"). Empty content stays
// empty.
func Tagged(name, content string) string {
	if content == "" {
		return ""
	}
	return "# " + sectionTitle(name) + "\n\n" + content + "\n\n"
}

func sectionTitle(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}
