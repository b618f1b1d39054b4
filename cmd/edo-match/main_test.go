package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmdatafocus/kitchen_admin/edo"
)

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	body := `[{"id":"p-1","name":"Mozzarella","type":"ingredient","barcode":"4601234567890"},{"id":"p-2","name":"Box"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	products, err := loadCatalog(path)
	if err != nil {
		t.Fatalf("loadCatalog: %v", err)
	}
	if len(products) != 2 || products[0].ID != "p-1" || products[0].Barcode != "4601234567890" {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestLoadCatalog_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := loadCatalog(path); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestPrintCandidates_MarksAutoMatch(t *testing.T) {
	var buf bytes.Buffer
	printCandidates(&buf, []edo.Candidate{
		{Product: edo.Product{ID: "p-1", Name: "Mozzarella"}, Score: 10, Source: edo.SourceBarcode},
		{Product: edo.Product{ID: "p-2", Name: "Ricotta"}, Score: 2, Source: edo.SourceName},
	}, edo.AutoMatchThreshold)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %q", buf.String())
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[1]), "yes") {
		t.Fatalf("top candidate above threshold should be marked: %q", lines[1])
	}
	if strings.HasSuffix(strings.TrimSpace(lines[2]), "yes") {
		t.Fatalf("second candidate must not be marked: %q", lines[2])
	}
}
