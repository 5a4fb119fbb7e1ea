// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package codec decodes completion text into structured values and renders
structured values back into prompt text.

Decoders strip an optional fenced code block, decode the document and
rewrite every mapping key to lower_snake_case. The YAML decoder is the
default wire format; the JSON decoder tolerates malformed output through a
repair chain before giving up.

DumpYAML is the inverse used on the prompt side: it renders keys in
capitalized form ("family_name" becomes "Family name") and keeps the key
order of the schema that produced the value.
*/
package codec
