package report

// ExtractTables extracts records from pre-segmented tables. Every row with
// at least six cells yields one record from the first six cells in fixed
// order: date, water, locality, species, quantity, size. Shorter rows and
// rows whose count cells do not parse as integers are skipped; partial
// extraction beats aborting the whole document.
func ExtractTables(pages []Page) []Record {
	var records []Record
	for _, page := range pages {
		for _, table := range page.Tables {
			for _, row := range table {
				if len(row) < 6 {
					continue
				}
				rec, ok := recordFromFields(row[0], row[1], row[2], row[3], row[4], row[5])
				if !ok {
					continue
				}
				records = append(records, rec)
			}
		}
	}
	return records
}
