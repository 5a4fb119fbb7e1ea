// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package schema declares the shape of model inputs and outputs.

# Overview

A Model is an ordered list of Lines. Each Line is one field: a dotted
lower_snake_case key, a type such as str, int, dict or list[dict], and
optional rule, options, default and multiline attributes. Dotted keys encode
nesting; a segment starting with $ is bound by a for-each loop declared on
its parent:

	Family: <list[dict], rule=for each $role in ['father', 'mother', 'son']>
	Family.$role: <dict>
	Family.$role.name: <str>
	Family.$role.age: <int>

# Construction

  - Parse: type, input, legacy and multiline notations
  - FromYAML / FromMap: attribute maps, with or without declaration order
  - FromValues: types inferred from example values
  - FromStruct: types read from a Go struct and its genie tags
  - Model.WithPartials: splice a sub-model below a parent key

Rules are parsed once into a tagged Rule. Rules that reference run inputs
through {placeholders} are re-parsed per call with Rule.Resolve.
*/
package schema
