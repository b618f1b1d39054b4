package edo

import (
	"testing"
	"time"
)

func TestNormalizeDocument_AcceptsHistoricalFieldNames(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := normalizeDocumentAt(map[string]any{
		"DocflowId":         "df-9",
		"Document":          map[string]any{"EntityId": "ent-1"},
		"DocflowStatus":     "Signed",
		"IsIncoming":        false,
		"CounterpartyBoxId": "box-42",
		"DocumentNumber":    "154",
		"SendDateTime":      "2025-02-14T09:25:00Z",
		"total":             "12 890,45",
	}, now)

	if doc.DocflowId != "df-9" || doc.DocumentId != "ent-1" || doc.Number != "154" {
		t.Fatalf("unexpected ids %+v", doc)
	}
	if doc.Status != StatusSigned || doc.Direction != "out" || doc.Counterparty != "box-42" {
		t.Fatalf("unexpected fields %+v", doc)
	}
	if doc.Type != defaultDocumentType {
		t.Fatalf("expected default type, got %q", doc.Type)
	}
	if !doc.Date.Equal(time.Date(2025, 2, 14, 9, 25, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", doc.Date)
	}
	if doc.Total.String() != "12890.45" {
		t.Fatalf("unexpected total %s", doc.Total)
	}
}

func TestNormalizeDocument_Defaults(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := normalizeDocumentAt(map[string]any{"id": "x"}, now)
	if doc.Status != StatusIncoming || doc.Direction != "in" || doc.Counterparty != defaultCounterparty || !doc.Date.Equal(now) {
		t.Fatalf("unexpected defaults %+v", doc)
	}
	if !doc.Total.IsZero() {
		t.Fatalf("expected zero total, got %s", doc.Total)
	}
}

func TestNormalizeLine_FallbackFields(t *testing.T) {
	line := NormalizeLine(map[string]any{
		"Product":                 "Мука пшеничная",
		"Quantity":                "25",
		"UnitName":                "кг",
		"Price":                   48.5,
		"SubtotalWithVatExcluded": "1 212,50",
		"TaxRate":                 "10%",
		"ItemVendorCode":          "FLOUR-25",
		"ItemCode":                "A17",
	}, 3)

	if line.Index != 3 || line.Name != "Мука пшеничная" || line.UnitName != "кг" {
		t.Fatalf("unexpected line %+v", line)
	}
	if line.Quantity.String() != "25" || line.Price.String() != "48.5" || line.Subtotal.String() != "1212.5" {
		t.Fatalf("unexpected numbers %s %s %s", line.Quantity, line.Price, line.Subtotal)
	}
	if line.Barcode != "FLOUR-25" || line.Article != "FLOUR-25" || line.ItemCode != "A17" || line.VatRate != "10%" {
		t.Fatalf("unexpected codes %+v", line)
	}
}

func TestNormalizeLine_UnparsableNumbersAreZero(t *testing.T) {
	line := NormalizeLine(map[string]any{"quantity": "n/a", "price": nil}, 0)
	if !line.Quantity.IsZero() || !line.Price.IsZero() || line.Name != defaultLineName {
		t.Fatalf("unexpected line %+v", line)
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"":              StatusIncoming,
		"New":           StatusIncoming,
		"lines-pending": StatusLinesPending,
		"SIGNED":        StatusSigned,
		"Delivered":     StatusSent,
		"awaiting-bank": Status("awaiting-bank"),
	}
	for in, expected := range cases {
		if got := ParseStatus(in); got != expected {
			t.Fatalf("ParseStatus(%q) expected %s, got %s", in, expected, got)
		}
	}
}
