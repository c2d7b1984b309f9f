package report

import (
	"regexp"
	"strconv"
	"strings"
)

// countyRe matches a county header: a one or two word name followed by the
// literal "County", optionally preceded by a REPORT banner word. When a page
// contains several headers, the last one wins for that page.
var countyRe = regexp.MustCompile(`(?:REPORT\s+)?(\w+\s?\w+)\s+County`)

// recordRe matches a record line: date, three letter-and-space fields, then
// quantity and size. The letter fields are greedy, so with multi-word values
// the first field absorbs everything the last two single words do not claim,
// matching the layout the report actually prints.
var recordRe = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{4})\s+([A-Za-z\s]+)\s+([A-Za-z\s]+)\s+([A-Za-z\s]+)\s+(\d+)\s+(\d+)`)

// ExtractLines extracts records from free-text pages.
//
// The current county is an explicit accumulator threaded through the
// traversal: each page may update it (last header on the page wins), and
// every matching line emits a record tagged with it. Lines seen before any
// header are dropped: the report always prints a header above its rows,
// so a headerless match is layout noise.
func ExtractLines(pages []Page) []Record {
	var records []Record
	county := ""

	for _, page := range pages {
		if ms := countyRe.FindAllStringSubmatch(page.Text, -1); len(ms) > 0 {
			county = strings.TrimSpace(ms[len(ms)-1][1])
		}

		for _, line := range strings.Split(page.Text, "\n") {
			m := recordRe.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil || county == "" {
				continue
			}
			rec, ok := recordFromFields(m[1], m[2], m[3], m[4], m[5], m[6])
			if !ok {
				continue
			}
			rec.County = county
			records = append(records, rec)
		}
	}
	return records
}

func recordFromFields(date, water, locality, species, qty, size string) (Record, bool) {
	quantity, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return Record{}, false
	}
	sz, err := strconv.Atoi(strings.TrimSpace(size))
	if err != nil {
		return Record{}, false
	}
	return Record{
		Date:     strings.TrimSpace(date),
		Water:    strings.TrimSpace(water),
		Locality: strings.TrimSpace(locality),
		Species:  strings.TrimSpace(species),
		Quantity: quantity,
		Size:     sz,
	}, true
}
