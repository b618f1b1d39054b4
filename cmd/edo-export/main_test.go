package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/edoclient"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

func TestExport_OfflineBackendWritesDemoDraft(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	session := edo.NewSession(edoclient.NewClient(backend.URL, 0, backend.Client()), edo.Options{Logger: logger})

	out := filepath.Join(t.TempDir(), "receipt.xlsx")
	path, summary, err := export(context.Background(), session, "", out, true, true)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if path != out {
		t.Fatalf("expected %s, got %s", out, path)
	}
	want := "sample-demo-001: 1 lines, 0 unmatched, total 8200.00, ready=true"
	if summary != want {
		t.Fatalf("summary mismatch:\nwant %q\ngot  %q", want, summary)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	name, err := f.GetCellValue("Receipt", "B3")
	if err != nil {
		t.Fatalf("read B3: %v", err)
	}
	if name != "Сыр Моцарелла 45%" {
		t.Fatalf("unexpected line name %q", name)
	}
	product, _ := f.GetCellValue("Receipt", "H3")
	if product != "Сыр Моцарелла 45%" {
		t.Fatalf("unexpected matched product %q", product)
	}
}

func TestExport_UnknownDocument(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	session := edo.NewSession(edoclient.NewClient(backend.URL, 0, backend.Client()), edo.Options{Logger: logger})

	if _, _, err := export(context.Background(), session, "missing", filepath.Join(t.TempDir(), "x.xlsx"), false, false); err == nil {
		t.Fatalf("expected error for unknown document")
	}
}
