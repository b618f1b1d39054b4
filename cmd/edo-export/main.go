// edo-export loads one EDO document through the backend, runs auto-matching and writes its
// receipt draft to an xlsx workbook.
//
// Usage:
//
//	EDO_API_BASE_URL=http://localhost:8080/api/edo go run ./cmd/edo-export --docflow-id df-1 --out receipt.xlsx
//
// When the backend is not configured the demo document is exported.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/edoclient"
)

func main() {
	docflowID := flag.String("docflow-id", "", "Document to export (default: first document in the feed)")
	out := flag.String("out", "", "Output file (default: receipt-<docflowId>.xlsx)")
	parse := flag.Bool("parse", true, "Parse the document title before exporting")
	autoMatch := flag.Bool("auto-match", true, "Run auto-matching before exporting")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	session := edo.NewSession(edoclient.NewClientFromEnv(), edo.Options{
		Logger:    config.GetLogger(),
		Threshold: config.EdoAutoMatchThreshold(edo.AutoMatchThreshold),
	})
	path, summary, err := export(ctx, session, *docflowID, *out, *parse, *autoMatch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(summary)
	fmt.Println("written:", path)
}

func export(ctx context.Context, session *edo.Session, docflowID, out string, parse, autoMatch bool) (string, string, error) {
	session.Init(ctx)
	if banner := session.Banner(); banner != "" {
		fmt.Fprintln(os.Stderr, banner)
	}

	if docflowID == "" {
		docflowID = session.Selected()
	}
	if docflowID == "" {
		return "", "", edo.ErrDocumentNotFound
	}
	if err := session.SelectDocument(ctx, docflowID); err != nil {
		return "", "", err
	}
	if parse {
		if err := session.Parse(ctx, docflowID); err != nil {
			return "", "", err
		}
	}
	if autoMatch {
		if err := session.AutoMatch(ctx, docflowID); err != nil {
			return "", "", err
		}
	}

	draft, err := session.ReceiptDraft(docflowID)
	if err != nil {
		return "", "", err
	}
	var doc edo.Document
	for _, d := range session.Documents() {
		if d.DocflowId == docflowID {
			doc = d
			break
		}
	}

	f, err := edo.ExportReceiptDraft(draft, doc)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	if strings.TrimSpace(out) == "" {
		out = fmt.Sprintf("receipt-%s.xlsx", docflowID)
	}
	if err := f.SaveAs(out); err != nil {
		return "", "", err
	}

	summary := fmt.Sprintf("%s: %d lines, %d unmatched, total %s, ready=%v",
		docflowID, len(draft.Items), draft.Unmatched(), draft.Total.StringFixed(2), draft.Ready)
	return out, summary, nil
}
