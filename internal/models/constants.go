package models

const (
	// header matchers, tested in this order against the first 100 characters of a paragraph
	MarkdownHeaderRegex = `\A#{1,3}\s+.+`
	AllCapsHeaderRegex  = `(?m)\A[A-Z][A-Z\s]{3,50}$`
	NumberedHeaderRegex = `\A\d+\.\s+[A-Z]`
	TitleColonRegex     = `\A[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3}:`
	ChapterRegex        = `\A(?:Chapter|Section|Part)\s+\d+`

	// paragraph boundaries: blank line, or newline followed by an uppercase letter
	ParagraphBreakRegex = `\n\s*\n|\n[A-Z]`

	ContextSeparator = "\n\n"
	DefaultSection   = "Introduction"

	DocTypePlaybook = "playbook"
)

var (
	AnswerPromptTemplate = `You are the brand voice assistant. Use only the brand documents below to answer.
<documents>
%s
</documents>
Question: %s
Answer concisely and cite the source file of every fact you use.
`
)
