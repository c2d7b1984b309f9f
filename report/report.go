// Package report extracts stocking records from the Maine IF&W stocking
// report. Two interchangeable strategies cover the layouts the report has
// shipped with: a table layout (pre-segmented rows and cells) and a
// free-text layout where a county header line announces the grouping key
// for the records that follow it.
//
// Both strategies skip malformed rows or lines and keep going; zero
// records after a full traversal is the caller's signal that either the
// document is empty or its layout drifted.
package report

import "fmt"

// Strategy selects how records are extracted from pages.
type Strategy string

const (
	// StrategyLines parses date-led text lines, grouped by county headers.
	StrategyLines Strategy = "lines"
	// StrategyTables consumes pre-segmented table rows.
	StrategyTables Strategy = "tables"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLines:
		return StrategyLines, nil
	case StrategyTables:
		return StrategyTables, nil
	}
	return "", fmt.Errorf("report: unknown strategy %q", s)
}

// Extract runs the given strategy over pages in document order.
func Extract(pages []Page, s Strategy) []Record {
	switch s {
	case StrategyTables:
		return ExtractTables(pages)
	default:
		return ExtractLines(pages)
	}
}
