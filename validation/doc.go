// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

// Package validation checks parsed outputs against an output model.
//
// Validation recurses over the data, not over the declaration: each level
// checks key presence, then every item's type, rule and content, then
// descends into nested dicts and list elements with the sub-config of that
// key. Loop-owning fields are additionally compared with their compiled
// structure, because only the compiled form names the iteration values.
// All violations are returned as a flat list of *types.Error, each tagged
// with its dotted path.
package validation
