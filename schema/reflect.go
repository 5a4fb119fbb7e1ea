package schema

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// FromStruct derives a model from a Go struct type using reflection.
// Field names come from the json tag (or the snake_cased field name);
// nested structs and slices of structs become dotted children.
//
// Supported genie tag options, separated by ";":
//   - rule=...: constraint rule, e.g. rule=for each $role in {roles}
//   - options=[a, b]: allowed values
//   - default=...: default value in notation syntax
//   - multiple_select: options may be combined
//   - multiline: capture the value verbatim
//   - description=...: free text shown in the prompt schema
//   - type=...: override the inferred type
func FromStruct(v any) (*Model, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("cannot derive schema from nil")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot derive schema from %s, want struct", t.Kind())
	}

	r := &structReader{visited: make(map[reflect.Type]bool)}
	lines, err := r.readStruct(t, "")
	if err != nil {
		return nil, err
	}
	return NewModel(lines...), nil
}

type structReader struct {
	// guards against recursive types
	visited map[reflect.Type]bool
}

func (r *structReader) readStruct(t reflect.Type, prefix string) ([]Line, error) {
	if r.visited[t] {
		return nil, nil
	}
	r.visited[t] = true
	defer func() { r.visited[t] = false }()

	var lines []Line
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		if name == "-" {
			continue
		}
		key := prefix + name

		attrs := parseGenieTag(field.Tag.Get("genie"))
		typ, nested := typeName(field.Type)
		if _, ok := attrs["type"]; !ok {
			attrs["type"] = typ
		}
		lines = append(lines, NewLine(key, attrs))

		if nested != nil {
			children, err := r.readStruct(nested, key+".")
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			lines = append(lines, children...)
		}
	}
	return lines, nil
}

// typeName maps a Go type to its notation type. For structs and slices of
// structs it also returns the struct type whose fields become children.
func typeName(t reflect.Type) (string, reflect.Type) {
	optional := false
	for t.Kind() == reflect.Ptr {
		optional = true
		t = t.Elem()
	}

	var (
		name   string
		nested reflect.Type
	)
	switch t.Kind() {
	case reflect.String:
		name = "str"
	case reflect.Bool:
		name = "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		name = "int"
	case reflect.Float32, reflect.Float64:
		name = "float"
	case reflect.Struct:
		name, nested = "dict", t
	case reflect.Map:
		name = "dict"
	case reflect.Slice, reflect.Array:
		elem := t.Elem()
		for elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		if elem.Kind() == reflect.Struct {
			name, nested = "list[dict]", elem
			break
		}
		inner, _ := typeName(elem)
		name = "list[" + inner + "]"
	default:
		name = "any"
	}

	if optional {
		name = "Optional[" + name + "]"
	}
	return name, nested
}

func fieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return snakeCase(field.Name)
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseGenieTag splits "k=v;flag;k2=v2" into line attributes.
func parseGenieTag(tag string) Attrs {
	attrs := Attrs{}
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, found := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		switch {
		case !found:
			attrs[k] = "true"
		case k == "default":
			attrs[k] = parseDefaultText(v)
		default:
			attrs[k] = strings.TrimSpace(v)
		}
	}
	return attrs
}
