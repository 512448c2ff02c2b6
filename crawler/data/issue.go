package data

// An Issue names one on-page SEO deficiency.
type Issue string

const (
	MissingTitle       Issue = "Missing Title Tag"
	EmptyTitle         Issue = "Empty Title Tag"
	MissingDescription Issue = "Missing Meta Description"
	EmptyDescription   Issue = "Empty Meta Description"
	MissingViewport    Issue = "Missing Meta Viewport"
	MissingCharset     Issue = "Missing Meta Charset"
	MissingCanonical   Issue = "Missing Canonical Tag"
	EmptyCanonical     Issue = "Empty Canonical Tag"
	IncorrectCanonical Issue = "Incorrect format for canonical"
	MissingH1          Issue = "Missing H1 Tag"
	MultipleH1         Issue = "Multiple H1 Tags"
	EmptyH1            Issue = "Empty H1 Tag"
	MissingLanguage    Issue = "Missing Language Attribute"
)

// Issues lists every Issue in the order the analyzer reports them.
var Issues = []Issue{
	MissingTitle,
	EmptyTitle,
	MissingDescription,
	EmptyDescription,
	MissingViewport,
	MissingCharset,
	MissingCanonical,
	EmptyCanonical,
	IncorrectCanonical,
	MissingH1,
	MultipleH1,
	EmptyH1,
	MissingLanguage,
}
