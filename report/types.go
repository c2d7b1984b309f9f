package report

// Record is one normalized stocking event extracted from the report.
// String fields are verbatim captures (whitespace-trimmed); Quantity and
// Size are non-negative integers. County is the grouping key and is only
// set by the line strategy (empty means "no grouping key").
type Record struct {
	Date     string `json:"date"`
	Water    string `json:"water"`
	Locality string `json:"locality"`
	Species  string `json:"species"`
	Quantity int    `json:"quantity"`
	Size     int    `json:"size"`
	County   string `json:"county,omitempty"`
}

// Page is one page of the source document. Text is the page's plain text
// with line structure preserved. Tables holds pre-segmented tables (each a
// sequence of rows, each row a sequence of cell strings) for callers whose
// source already provides them; ReadPDF fills Text only.
type Page struct {
	Number int
	Text   string
	Tables [][][]string
}
