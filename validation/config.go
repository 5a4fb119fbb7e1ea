package validation

import (
	"strings"

	"github.com/elokus/StructGenie/schema"
)

// Config is the per-call validation view of an output model: every line
// keyed relative to the structure being validated, with rule placeholders
// resolved against the call's inputs. It must not be reused across calls
// with different inputs.
type Config struct {
	lines map[string]schema.Line
	order []string
}

// NewConfig derives a validation config from m for one call.
func NewConfig(m *schema.Model, inputs map[string]any) *Config {
	c := &Config{lines: map[string]schema.Line{}}
	for _, l := range m.Lines() {
		l.Rule = l.Rule.Resolve(inputs)
		c.add(l.Key, l)
	}
	return c
}

func (c *Config) add(key string, l schema.Line) {
	if _, ok := c.lines[key]; !ok {
		c.order = append(c.order, key)
	}
	c.lines[key] = l
}

// Len returns the number of entries.
func (c *Config) Len() int { return len(c.order) }

// Keys returns the relative keys in declaration order.
func (c *Config) Keys() []string { return append([]string(nil), c.order...) }

// Get returns the line declared under a relative key. The returned line
// keeps its full model key.
func (c *Config) Get(key string) (schema.Line, bool) {
	l, ok := c.lines[key]
	return l, ok
}

// Nested returns the entries below key with the "key." prefix stripped.
func (c *Config) Nested(key string) *Config {
	out := &Config{lines: map[string]schema.Line{}}
	prefix := key + "."
	for _, k := range c.order {
		if strings.HasPrefix(k, prefix) {
			out.add(strings.TrimPrefix(k, prefix), c.lines[k])
		}
	}
	return out
}

// Lookup maps an output key to the entry that validates it. Keys produced
// by a loop are not declared literally and resolve to the loop-variable
// entry ("$key" when declared, else the first loop-variable entry).
func (c *Config) Lookup(key string) (string, bool) {
	if _, ok := c.lines[key]; ok {
		return key, true
	}
	var first string
	for _, k := range c.order {
		if strings.HasPrefix(k, "$") && !schema.ChildKey(k) {
			first = k
			break
		}
	}
	if first == "" {
		return "", false
	}
	if _, ok := c.lines["$"+key]; ok {
		return "$" + key, true
	}
	return first, true
}

// HasLoopKey reports whether keys at this level are generated by a loop.
func (c *Config) HasLoopKey() bool {
	for _, k := range c.order {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// Required returns the top-level keys an output must contain: declared
// keys that are neither optional, loop variables nor defaulted.
func (c *Config) Required() []string {
	var out []string
	for _, k := range c.order {
		l := c.lines[k]
		if schema.ChildKey(k) || strings.HasPrefix(k, "$") || strings.HasPrefix(l.Type, "Optional") {
			continue
		}
		if l.HasDefault() && !schema.IsNone(l.Default) {
			continue
		}
		out = append(out, k)
	}
	return out
}
