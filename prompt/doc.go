// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package prompt turns schema documents into prompts.

# Schema documents

A schema document is split into sections by Extract. Sections may be
tagged in one of the styles listed in TagStyles, under any of the aliases
in SectionAliases:

	# Instruction
	Summarize the text.

	# Input
	Text: {text}

	# Output
	Summary: <str>

Untagged documents fall back to positional rules ("Begin!" introduces the
inputs, "---" the output schema). The system config section is read by
ParseSystemConfig.

# Prompts

Builder renders one prompt per attempt from DefaultTemplate: the
instruction, the compiled response schema wrapped in format instructions,
examples, remarks and the rendered inputs. When a Request carries feedback
from a failed attempt the remarks are replaced by ErrorTemplate.
*/
package prompt
