package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/mainefish/fishwatch/report"
)

func rec(county, water string, qty int) report.Record {
	return report.Record{
		Date:     "4/15/2024",
		Water:    water,
		Locality: "EUSTIS",
		Species:  "BROOK TROUT",
		Quantity: qty,
		Size:     12,
		County:   county,
	}
}

func TestGroupByCounty_TwoCounties(t *testing.T) {
	// WHAT: Records from counties {A, A, B} produce exactly two groups with
	// sizes 2 and 1.
	// WHY: The workbook layout is one sheet per county; over- or
	// under-grouping corrupts the export.
	records := []report.Record{
		rec("AROOSTOOK", "FISH RIVER", 200),
		rec("AROOSTOOK", "EAGLE LAKE", 150),
		rec("SOMERSET", "DEAD RIVER", 350),
	}

	groups := GroupByCounty(records)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Key != "AROOSTOOK" || len(groups[0].Records) != 2 {
		t.Errorf("group 0 = %q with %d records", groups[0].Key, len(groups[0].Records))
	}
	if groups[1].Key != "SOMERSET" || len(groups[1].Records) != 1 {
		t.Errorf("group 1 = %q with %d records", groups[1].Key, len(groups[1].Records))
	}
}

func TestGroupByCounty_FirstEncounterOrder(t *testing.T) {
	// WHAT: Group order follows first appearance even when counties
	// interleave, and record order within a group is preserved.
	records := []report.Record{
		rec("SOMERSET", "DEAD RIVER", 1),
		rec("AROOSTOOK", "FISH RIVER", 2),
		rec("SOMERSET", "MOOSE RIVER", 3),
	}

	groups := GroupByCounty(records)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Key != "SOMERSET" || groups[1].Key != "AROOSTOOK" {
		t.Errorf("group order = %q, %q", groups[0].Key, groups[1].Key)
	}
	if groups[0].Records[0].Water != "DEAD RIVER" || groups[0].Records[1].Water != "MOOSE RIVER" {
		t.Errorf("record order within SOMERSET lost: %+v", groups[0].Records)
	}
}

func TestGroupByCounty_Empty(t *testing.T) {
	if groups := GroupByCounty(nil); len(groups) != 0 {
		t.Errorf("groups = %d, want 0", len(groups))
	}
}

func TestWriteWorkbook_NoGroups(t *testing.T) {
	// WHAT: An empty export is a hard error, not an empty workbook.
	var buf bytes.Buffer
	err := WriteWorkbook(&buf, nil)
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("error = %v, want ErrNoRecords", err)
	}
}

func TestWriteWorkbook_RoundTrip(t *testing.T) {
	// WHAT: The workbook has one sheet per county, no leftover default
	// sheet, a header row, and the record values in column order.
	groups := GroupByCounty([]report.Record{
		rec("SOMERSET", "DEAD RIVER", 350),
		rec("SOMERSET", "MOOSE RIVER", 125),
		rec("AROOSTOOK", "FISH RIVER", 200),
	})

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, groups); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 {
		t.Fatalf("sheets = %v, want 2 county sheets", sheets)
	}
	if sheets[0] != "SOMERSET" || sheets[1] != "AROOSTOOK" {
		t.Errorf("sheets = %v", sheets)
	}

	rows, err := f.GetRows("SOMERSET")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 records", len(rows))
	}
	if rows[0][0] != "County" || rows[0][3] != "City/Town" || rows[0][5] != "QTY" {
		t.Errorf("header = %v", rows[0])
	}
	want := []string{"SOMERSET", "4/15/2024", "DEAD RIVER", "EUSTIS", "BROOK TROUT", "350", "12"}
	for i, cell := range want {
		if rows[1][i] != cell {
			t.Errorf("row 1 col %d = %q, want %q", i, rows[1][i], cell)
		}
	}
	if rows[2][2] != "MOOSE RIVER" {
		t.Errorf("row 2 water = %q", rows[2][2])
	}
}

func TestWriteWorkbook_SheetNameTruncation(t *testing.T) {
	// WHAT: Sheet names are capped at Excel's 31-character limit, and two
	// keys that become identical after truncation get distinct sheets.
	long := strings.Repeat("A", 31) + " ONE"
	long2 := strings.Repeat("A", 31) + " TWO"
	groups := []Group{
		{Key: long, Records: []report.Record{rec(long, "W1", 1)}},
		{Key: long2, Records: []report.Record{rec(long2, "W2", 2)}},
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, groups); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 {
		t.Fatalf("sheets = %v, want 2", sheets)
	}
	if sheets[0] != strings.Repeat("A", 31) {
		t.Errorf("sheet 0 = %q, want 31 truncated chars", sheets[0])
	}
	if sheets[1] != strings.Repeat("A", 29)+"-2" {
		t.Errorf("sheet 1 = %q, want -2 suffix after truncation", sheets[1])
	}
}
