package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// headerRow matches the column layout fish stocking subscribers already use
// in the hand-built spreadsheets this tool replaces.
var headerRow = []any{"County", "DATE", "WATER", "City/Town", "Species", "QTY", "SIZE"}

// maxSheetName is Excel's hard limit on sheet name length.
const maxSheetName = 31

// WriteWorkbook writes one sheet per group to w in xlsx format. Returns
// ErrNoRecords when groups is empty.
func WriteWorkbook(w io.Writer, groups []Group) error {
	if len(groups) == 0 {
		return ErrNoRecords
	}

	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool)
	firstName := ""
	for gi, g := range groups {
		name := sheetName(g.Key, used)
		used[name] = true

		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("export: new sheet %q: %w", name, err)
		}
		if gi == 0 {
			firstName = name
		}

		if err := f.SetSheetRow(name, "A1", &headerRow); err != nil {
			return fmt.Errorf("export: write header: %w", err)
		}
		for ri, rec := range g.Records {
			cell, err := excelize.CoordinatesToCellName(1, ri+2)
			if err != nil {
				return fmt.Errorf("export: cell name: %w", err)
			}
			row := []any{g.Key, rec.Date, rec.Water, rec.Locality, rec.Species, rec.Quantity, rec.Size}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return fmt.Errorf("export: write row: %w", err)
			}
		}
	}

	// Drop the implicit default sheet so only county sheets remain. Sheet
	// indexes shift on deletion, so the active sheet is resolved by name.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: delete default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex(firstName)
	if err != nil {
		return fmt.Errorf("export: sheet index %q: %w", firstName, err)
	}
	f.SetActiveSheet(idx)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

// sheetName fits key into Excel's 31-character limit, disambiguating
// truncation collisions with a numeric suffix. County keys come from word
// characters and spaces only, so no further sanitizing is needed.
func sheetName(key string, used map[string]bool) string {
	if key == "" {
		key = "UNSPECIFIED"
	}
	name := key
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	if !used[name] {
		return name
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf("-%d", n)
		base := name
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate := base + suffix
		if !used[candidate] {
			return candidate
		}
	}
}
