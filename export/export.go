// Package export groups stocking records by county and writes them to a
// multi-sheet Excel workbook, one sheet per county.
package export

import (
	"errors"

	"github.com/mainefish/fishwatch/report"
)

// ErrNoRecords is returned when a bulk export has nothing to write. An empty
// workbook would look like a successful export of an empty report, so this
// is a hard error.
var ErrNoRecords = errors.New("export: no records")

// Group is every record sharing one county, in extraction order.
type Group struct {
	Key     string
	Records []report.Record
}

// GroupByCounty splits records by their County field. Group order follows
// the first appearance of each county; record order within a group follows
// the input. Records never produce an empty group.
func GroupByCounty(records []report.Record) []Group {
	var groups []Group
	index := make(map[string]int)

	for _, rec := range records {
		i, ok := index[rec.County]
		if !ok {
			i = len(groups)
			index[rec.County] = i
			groups = append(groups, Group{Key: rec.County})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	return groups
}
