package index

// DocNum is the dense number a document receives in intake order. It
// indexes the document table directly.
type DocNum uint32

type Posting struct {
	Doc       DocNum
	Frequency int
}

// PostingList is ordered by ascending Doc.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// DocInfo is one row of the document table.
type DocInfo struct {
	ID     string            `json:"id"`
	Length int               `json:"len"`
	Fields map[string]string `json:"fields,omitempty"`
}
