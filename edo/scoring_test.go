package edo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestTokenize_SplitsOnNonAlphanumerics(t *testing.T) {
	cases := []struct {
		in       string
		expected []string
	}{
		{"Сыр Моцарелла 45%", []string{"сыр", "моцарелла", "45"}},
		{"Коробка пиццы 33 см", []string{"коробка", "пиццы", "33", "см"}},
		{"PIZZA-MARG/v2", []string{"pizza", "marg", "v2"}},
		{"  ", nil},
	}
	for _, tc := range cases {
		got := Tokenize(tc.in)
		if diff := cmp.Diff(tc.expected, got, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("Tokenize(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestBuildCandidates_MozzarellaScenario(t *testing.T) {
	line := PlaceholderLines()[0]
	candidates := BuildCandidates(line, SeedCatalog())
	if len(candidates) == 0 {
		t.Fatalf("expected candidates, got none")
	}
	top := candidates[0]
	if top.Product.ID != "prd-101" {
		t.Fatalf("expected prd-101 on top, got %s", top.Product.ID)
	}
	if top.Score < 10 {
		t.Fatalf("expected score >= 10, got %v", top.Score)
	}
	if top.Source != SourceBarcode {
		t.Fatalf("expected source barcode, got %s", top.Source)
	}
	// barcode 8 + article 6 + three shared name tokens + equal VAT
	if got := ComputeMatchScore(line, SeedCatalog()[1]); got != 18 {
		t.Fatalf("expected score 18, got %d", got)
	}
}

func TestBuildCandidates_Deterministic(t *testing.T) {
	line := Line{Name: "Соус томатный для пиццы", VatRate: "20%", Article: "box-33"}
	first := BuildCandidates(line, SeedCatalog())
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, BuildCandidates(line, SeedCatalog())); diff != "" {
			t.Fatalf("run %d differs (-first +run):\n%s", i, diff)
		}
	}
}

func TestBuildCandidates_BarcodeOutranksNameOnly(t *testing.T) {
	line := Line{Name: "a b c d e f g", Barcode: "123"}
	catalog := []Product{
		{ID: "by-name", Name: "a b c d e f g"},
		{ID: "by-barcode", Name: "zzz", Barcode: "123"},
	}
	candidates := BuildCandidates(line, catalog)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Product.ID != "by-barcode" || candidates[0].Score != 8 {
		t.Fatalf("expected barcode product with score 8 first, got %+v", candidates[0])
	}
	if candidates[1].Score != 7 || candidates[1].Source != SourceName {
		t.Fatalf("expected name-only candidate with score 7, got %+v", candidates[1])
	}
}

func TestBuildCandidates_EmptyInputs(t *testing.T) {
	if got := BuildCandidates(PlaceholderLines()[0], nil); len(got) != 0 {
		t.Fatalf("expected no candidates for empty catalog, got %d", len(got))
	}
	silent := Line{Name: "xyz"}
	if got := BuildCandidates(silent, SeedCatalog()); len(got) != 0 {
		t.Fatalf("expected no candidates without signals, got %+v", got)
	}
}

func TestBuildCandidates_SignalsAndSources(t *testing.T) {
	cases := []struct {
		name    string
		line    Line
		product Product
		score   int
		source  Source
	}{
		{"article is case-insensitive", Line{Article: "moz45"}, Product{Article: "MOZ45"}, WeightArticle, SourceArticle},
		{"item code matches article", Line{ItemCode: "box-33"}, Product{Article: "BOX-33"}, WeightItemCode, SourceName},
		{"duplicate tokens count per occurrence", Line{Name: "сыр сыр"}, Product{Name: "Сыр"}, 2, SourceName},
		{"synonym tokens count", Line{Name: "моцарелла свежая"}, Product{Name: "Mozzarella", Synonyms: []string{"моцарелла"}}, 1, SourceName},
		{"blank barcodes do not match", Line{Barcode: " "}, Product{Barcode: " "}, 0, ""},
		{"barcodes compare exactly", Line{Barcode: "4607001 "}, Product{Barcode: "4607001"}, 0, ""},
		{"equal barcodes", Line{Barcode: "4607001"}, Product{Barcode: "4607001"}, WeightBarcode, SourceBarcode},
		{"vat alone", Line{VatRate: "10%"}, Product{VatRate: "10%"}, WeightTaxRate, SourceName},
	}
	for _, tc := range cases {
		got := BuildCandidates(tc.line, []Product{tc.product})
		if tc.score == 0 {
			if len(got) != 0 {
				t.Fatalf("%s: expected no candidate, got %+v", tc.name, got)
			}
			continue
		}
		if len(got) != 1 || got[0].Score != float64(tc.score) || got[0].Source != tc.source {
			t.Fatalf("%s: expected score %d source %s, got %+v", tc.name, tc.score, tc.source, got)
		}
	}
}

func TestBuildCandidates_KeepsTopFiveInCatalogOrderOnTies(t *testing.T) {
	line := Line{VatRate: "20%"}
	var catalog []Product
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"} {
		catalog = append(catalog, Product{ID: id, VatRate: "20%"})
	}
	catalog = append(catalog, Product{ID: "best", VatRate: "20%", Article: "X"})
	line.Article = "x"

	got := BuildCandidates(line, catalog)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.Product.ID)
	}
	want := []string{"best", "p1", "p2", "p3", "p4"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("candidate order mismatch (-want +got):\n%s", diff)
	}
}
