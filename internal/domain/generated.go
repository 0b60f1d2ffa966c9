package domain

// Topic is a content category assigned to generated cards.
type Topic string

const (
	Definitions Topic = "Definitions"
	Examples    Topic = "Examples"
	Processes   Topic = "Processes"
	Lists       Topic = "Lists"
	Compare     Topic = "Compare"
	Other       Topic = "Other"
)

// RawSection is a block of document text considered as one unit during ingestion.
type RawSection struct {
	Title     string // empty when no title could be guessed
	Text      string
	PageStart int
	PageEnd   int
}

// Source locates a generated card inside its document.
type Source struct {
	DocumentName string `json:"documentName"`
	PageStart    int    `json:"pageStart"`
	PageEnd      int    `json:"pageEnd"`
}

// GeneratedCard is a candidate card produced from a document. It only becomes
// a Card once accepted.
type GeneratedCard struct {
	ID         string   `json:"id"`
	Front      string   `json:"front"`
	Back       string   `json:"back"`
	Topics     []Topic  `json:"topics"`
	Tags       []string `json:"tags"`
	Source     Source   `json:"source"`
	Confidence float64  `json:"confidence"`
}
