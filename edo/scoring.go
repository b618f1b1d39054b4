package edo

import (
	"sort"
	"strings"
	"unicode"
)

// Scoring weights. Tunable; keep AutoMatchThreshold in step with them.
const (
	WeightBarcode  = 8
	WeightArticle  = 6
	WeightItemCode = 4
	WeightTaxRate  = 1

	// AutoMatchThreshold is the minimum top score auto-match accepts.
	AutoMatchThreshold = 6
	MaxCandidates      = 5

	// RemoteAutoMatchThreshold is the confidence the backend auto-matcher is asked for.
	RemoteAutoMatchThreshold = 0.7
)

// Tokenize lower-cases s and splits it on every rune that is not a letter or digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

type signals struct {
	barcode bool
	article bool
	score   int
}

func score(line Line, product Product) signals {
	var sig signals

	// Barcodes must match exactly; whitespace-only values count as absent.
	if strings.TrimSpace(line.Barcode) != "" && strings.TrimSpace(product.Barcode) != "" && line.Barcode == product.Barcode {
		sig.barcode = true
		sig.score += WeightBarcode
	}

	productArticle := strings.TrimSpace(product.Article)
	if a := strings.TrimSpace(line.Article); a != "" && productArticle != "" && strings.EqualFold(a, productArticle) {
		sig.article = true
		sig.score += WeightArticle
	}
	if c := strings.TrimSpace(line.ItemCode); c != "" && productArticle != "" && strings.EqualFold(c, productArticle) {
		sig.score += WeightItemCode
	}

	vocabulary := make(map[string]struct{})
	for _, tok := range Tokenize(product.Name) {
		vocabulary[tok] = struct{}{}
	}
	for _, syn := range product.Synonyms {
		for _, tok := range Tokenize(syn) {
			vocabulary[tok] = struct{}{}
		}
	}
	for _, tok := range Tokenize(line.Name) {
		if _, ok := vocabulary[tok]; ok {
			sig.score++
		}
	}

	lineVat, productVat := strings.TrimSpace(line.VatRate), strings.TrimSpace(product.VatRate)
	if lineVat != "" && productVat != "" && strings.EqualFold(lineVat, productVat) {
		sig.score += WeightTaxRate
	}
	return sig
}

// ComputeMatchScore returns the similarity score of product for line. Zero means no signal fired.
func ComputeMatchScore(line Line, product Product) int {
	return score(line, product).score
}

// BuildCandidates scores every catalog product against line and returns at most MaxCandidates,
// best first. Products scoring zero are dropped; ties keep catalog order.
func BuildCandidates(line Line, catalog []Product) []Candidate {
	candidates := make([]Candidate, 0, MaxCandidates)
	for _, product := range catalog {
		sig := score(line, product)
		if sig.score == 0 {
			continue
		}
		source := SourceName
		switch {
		case sig.barcode:
			source = SourceBarcode
		case sig.article:
			source = SourceArticle
		}
		candidates = append(candidates, Candidate{Product: product, Score: float64(sig.score), Source: source})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return candidates
}
