// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package compiler expands a schema.Model into the concrete nested structure
a model is asked to produce.

Top-level lines become keys of a mapping. dict and list lines recurse into
their dotted children. A line whose rule is `for each $v in <expr>` is
unrolled once per iteration value, with $v substituted into the keys and
leaf descriptions below it. Leaves render as `<type, options=[...],
rule=(...)>=default`.

The same expansion is used by validation to learn which keys a loop must
produce for the current inputs.
*/
package compiler
