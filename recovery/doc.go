// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package recovery implements the output recovery parser: it reduces a raw
completion to a mapping that conforms to an output model.

# Tiers

Each tier runs only when the previous one failed:

 1. Decode: the configured codec.Decoder reads the whole text.
 2. Multiline: attempted when the model declares multiline fields. Each
    multiline value is captured verbatim between its header and the header
    of the next top-level key; the rest is decoded and merged.
 3. Split: the text is cut on top-level key headers and every segment is
    decoded on its own. A failing segment becomes a partial error bound to
    its key. Fields typed str or multiline are captured verbatim.
 4. Repair: partial errors are repaired one key at a time through a
    Repairer; when the text-level tiers fail outright, the whole output is
    requested again instead.

Every tier failure is appended to Result.Errors and every secondary
generation contributes to Result.Metrics, whether or not the parse
eventually succeeds.

# Post-processing

A model with a single line gets its value wrapped under that key, and
FillDefaults writes declared defaults, including one entry per missing
loop iteration value.
*/
package recovery
