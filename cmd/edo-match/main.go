// edo-match scores one invoice line against a product catalog and prints the ranked candidates.
//
// Usage:
//
//	go run ./cmd/edo-match --name "Сыр Моцарелла 45%" --barcode 4601234567890
//	go run ./cmd/edo-match --catalog products.json --article MZ-45 --vat 20%
//
// The catalog file is a JSON array of products in the EDO backend's shape. Without --catalog the
// built-in demo catalog is used.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mmdatafocus/kitchen_admin/edo"
)

func main() {
	catalogPath := flag.String("catalog", "", "JSON file with an array of products (default: demo catalog)")
	name := flag.String("name", "", "Line name as printed on the invoice")
	barcode := flag.String("barcode", "", "Line barcode (GTIN)")
	article := flag.String("article", "", "Supplier article")
	itemCode := flag.String("item-code", "", "Supplier item code")
	vat := flag.String("vat", "", "VAT rate, e.g. 20%")
	asJSON := flag.Bool("json", false, "Print candidates as JSON")
	flag.Parse()

	if *name == "" && *barcode == "" && *article == "" && *itemCode == "" {
		fmt.Fprintln(os.Stderr, "at least one of --name, --barcode, --article, --item-code is required")
		os.Exit(1)
	}

	catalog := edo.SeedCatalog()
	if *catalogPath != "" {
		products, err := loadCatalog(*catalogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load catalog: %v\n", err)
			os.Exit(1)
		}
		catalog = products
	}

	line := edo.Line{
		Index:    1,
		Name:     *name,
		Barcode:  *barcode,
		Article:  *article,
		ItemCode: *itemCode,
		VatRate:  *vat,
	}
	candidates := edo.BuildCandidates(line, catalog)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(candidates); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(candidates) == 0 {
		fmt.Println("no candidates")
		return
	}
	printCandidates(os.Stdout, candidates, edo.AutoMatchThreshold)
}

func loadCatalog(path string) ([]edo.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	products := make([]edo.Product, 0, len(items))
	for _, item := range items {
		products = append(products, edo.NormalizeProduct(item))
	}
	return products, nil
}

func printCandidates(w io.Writer, candidates []edo.Candidate, threshold int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tSOURCE\tID\tNAME\tAUTO")
	for i, c := range candidates {
		auto := ""
		if i == 0 && c.Score >= float64(threshold) {
			auto = "yes"
		}
		fmt.Fprintf(tw, "%d\t%g\t%s\t%s\t%s\t%s\n", i+1, c.Score, c.Source, c.Product.ID, c.Product.Name, auto)
	}
	tw.Flush()
}
