package report

import (
	"reflect"
	"testing"
)

func TestExtractTables_Row(t *testing.T) {
	// WHAT: A six-cell row maps onto a record with integer counts.
	// WHY: The table layout is positional; the first six cells are the
	// record in fixed column order.
	pages := []Page{{
		Number: 1,
		Tables: [][][]string{{
			{"3/1/2024", "KENNEBEC R", "WATERVILLE", "BROOK TROUT", "300", "10"},
		}},
	}}

	records := ExtractTables(pages)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	want := Record{
		Date: "3/1/2024", Water: "KENNEBEC R", Locality: "WATERVILLE",
		Species: "BROOK TROUT", Quantity: 300, Size: 10,
	}
	if !reflect.DeepEqual(records[0], want) {
		t.Errorf("record = %+v, want %+v", records[0], want)
	}
}

func TestExtractTables_ShortRowSkipped(t *testing.T) {
	// WHAT: Rows with fewer than six cells yield nothing.
	pages := []Page{{
		Number: 1,
		Tables: [][][]string{{
			{"3/1/2024", "KENNEBEC R", "WATERVILLE", "BROOK TROUT"},
			{"3/2/2024", "SEBAGO L", "STANDISH", "TOGUE", "50", "18"},
		}},
	}}

	records := ExtractTables(pages)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Water != "SEBAGO L" {
		t.Errorf("water = %q, want SEBAGO L", records[0].Water)
	}
}

func TestExtractTables_BadCountsSkipped(t *testing.T) {
	// WHAT: Header rows and rows with non-integer counts are skipped, not fatal.
	pages := []Page{{
		Number: 1,
		Tables: [][][]string{{
			{"DATE", "WATER", "CITY/TOWN", "SPECIES", "QTY", "SIZE"},
			{"3/3/2024", "MOOSE P", "OTISFIELD", "SALMON", "1,200", "12"},
			{"3/4/2024", "CRYSTAL L", "GRAY", "TROUT", "90", "8"},
		}},
	}}

	records := ExtractTables(pages)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Locality != "GRAY" {
		t.Errorf("locality = %q, want GRAY", records[0].Locality)
	}
}

func TestExtractTables_ExtraCellsIgnored(t *testing.T) {
	// WHAT: Cells beyond the sixth do not disturb the mapping.
	pages := []Page{{
		Number: 1,
		Tables: [][][]string{{
			{"3/5/2024", "WYMAN L", "BINGHAM", "SALMON", "75", "14", "note", "extra"},
		}},
	}}

	records := ExtractTables(pages)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Quantity != 75 || records[0].Size != 14 {
		t.Errorf("counts = %d / %d, want 75 / 14", records[0].Quantity, records[0].Size)
	}
}

func TestExtractTables_DocumentOrder(t *testing.T) {
	// WHAT: Records come out in page order, then table order, then row order.
	pages := []Page{
		{Number: 1, Tables: [][][]string{
			{{"3/1/2024", "A", "X", "S", "1", "1"}},
			{{"3/2/2024", "B", "X", "S", "2", "1"}},
		}},
		{Number: 2, Tables: [][][]string{
			{{"3/3/2024", "C", "X", "S", "3", "1"}},
		}},
	}

	records := ExtractTables(pages)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, water := range []string{"A", "B", "C"} {
		if records[i].Water != water {
			t.Errorf("record %d water = %q, want %q", i, records[i].Water, water)
		}
	}
}
