package index

import "sort"

// Posting records how often a term occurs in one field of one document.
// Positions are the term's ordinal positions within that field.
type Posting struct {
	DocID     int   `json:"d"`
	Frequency int   `json:"f"`
	Positions []int `json:"p,omitempty"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

// Find returns the posting for docID, if any.
func (pl PostingList) Find(docID int) (Posting, bool) {
	i := sort.Search(len(pl), func(i int) bool {
		return pl[i].DocID >= docID
	})
	if i < len(pl) && pl[i].DocID == docID {
		return pl[i], true
	}
	return Posting{}, false
}

// Key scopes a term to the field it was indexed from.
type Key struct {
	Field string
	Term  string
}

// TermEntry is one (field, term) postings list, the unit persisted by the
// segment writer.
type TermEntry struct {
	Field    string      `json:"field"`
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}
