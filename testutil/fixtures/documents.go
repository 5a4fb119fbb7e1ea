// =============================================================================
// Schema documents and completions
// =============================================================================
package fixtures

// SummaryTemplate is a markdown tagged document with one input and two
// outputs.
const SummaryTemplate = `# Instruction
Summarize the text.

# Input
Text: {text}

# Output
Summary: <str>
Words: <int>
`

// SummaryCompletion conforms to SummaryTemplate.
const SummaryCompletion = "Summary: A short text.\nWords: 3"

// FamilyTemplate declares a loop over family roles.
const FamilyTemplate = `# Instruction
Invent a family.

# Input
Name: {name}

# Output
Family: <dict, rule=for each $role in ['father', 'mother', 'son']>
Family.$role: <dict>
Family.$role.name: <str>
Family.$role.age: <int>
`

// FamilyCompletion conforms to FamilyTemplate.
const FamilyCompletion = `Family:
  Father:
    Name: Tom
    Age: 40
  Mother:
    Name: Ann
    Age: 38
  Son:
    Name: Joe
    Age: 9
`

// SentimentTemplate carries options and a system config section.
const SentimentTemplate = `# Instruction
Classify the review in {language}.

# Input
Review: {review}

# Output
Reasoning: <str>
Sentiment: <str, options=[positive, negative, neutral]>

# System config
$language = English
!engine: max_retries=2
`

// Unparsable is text no decoder turns into a mapping.
const Unparsable = "I am sorry, I cannot answer that."
