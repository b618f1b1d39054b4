package edoclient

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/utils"
)

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(strings.TrimSpace(string(b)))
	return nil
}

type envelope struct {
	Ok    *bool  `json:"ok"`
	Error string `json:"error"`
}

type configResponse struct {
	DiadocConfigured bool   `json:"diadocConfigured"`
	BoxId            string `json:"boxId"`
	Organization     string `json:"organization"`
}

type documentsResponse struct {
	Docs    []map[string]any `json:"docs"`
	Cached  bool             `json:"cached"`
	Warning string           `json:"warning"`
}

type parseResponse struct {
	Items []map[string]any `json:"items"`
	XML   string           `json:"xml"`
}

type linesResponse struct {
	Lines []wireLine `json:"lines"`
}

type autoMatchRequest struct {
	Threshold      float64 `json:"threshold"`
	WithCandidates bool    `json:"withCandidates"`
}

type autoMatchResponse struct {
	Lines   []wireLine `json:"lines"`
	Matched *int       `json:"matched"`
}

type setMatchRequest struct {
	ProductId string   `json:"productId"`
	Source    string   `json:"source"`
	Score     *float64 `json:"score"`
	Manual    bool     `json:"manual"`
	Comment   *string  `json:"comment"`
}

type setMatchResponse struct {
	Line *wireLine `json:"line"`
}

type productsResponse struct {
	Products []wireProduct `json:"products"`
}

type productResponse struct {
	Product *wireProduct `json:"product"`
}

type receiptResponse struct {
	ReceiptId looseString `json:"receiptId"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type syncResponse struct {
	Warning string `json:"warning"`
}

type wireProduct struct {
	ID       looseString `json:"id"`
	Type     string      `json:"type"`
	Name     string      `json:"name"`
	Barcode  looseString `json:"barcode"`
	Article  looseString `json:"article"`
	VatRate  looseString `json:"vatRate"`
	Synonyms []string    `json:"synonyms"`
}

func (p wireProduct) toProduct() edo.Product {
	t := edo.ProductType(strings.ToLower(strings.TrimSpace(p.Type)))
	if t == "" {
		t = edo.ProductTypeIngredient
	}
	return edo.Product{
		ID:       string(p.ID),
		Type:     t,
		Name:     p.Name,
		Barcode:  string(p.Barcode),
		Article:  string(p.Article),
		VatRate:  string(p.VatRate),
		Synonyms: p.Synonyms,
	}
}

type wireMatch struct {
	ProductId   looseString `json:"productId"`
	Name        string      `json:"name"`
	ProductName string      `json:"productName"`
	Type        string      `json:"type"`
	Source      string      `json:"source"`
	Score       *float64    `json:"score"`
	Manual      *bool       `json:"manual"`
	Comment     *string     `json:"comment"`
}

func (m *wireMatch) toMatch() *edo.Match {
	if m == nil || m.ProductId == "" {
		return nil
	}
	name := m.Name
	if name == "" {
		name = m.ProductName
	}
	return &edo.Match{
		ProductId: string(m.ProductId),
		Name:      name,
		Type:      edo.ProductType(m.Type),
		Source:    edo.Source(m.Source),
		Score:     utils.DereferencePtr(m.Score, 0),
		Manual:    utils.DereferencePtr(m.Manual, false),
		Comment:   utils.DereferencePtr(m.Comment, ""),
	}
}

// wireCandidate comes either nested ({product, score, source}) or flat ({id, name, score, source}).
type wireCandidate struct {
	wireProduct
	Product *wireProduct `json:"product"`
	Score   float64      `json:"score"`
	Source  string       `json:"source"`
}

func (c wireCandidate) toCandidate() edo.Candidate {
	p := c.wireProduct
	if c.Product != nil {
		p = *c.Product
	}
	return edo.Candidate{Product: p.toProduct(), Score: c.Score, Source: edo.Source(c.Source)}
}

type wireLine struct {
	Index       int             `json:"index"`
	Name        string          `json:"name"`
	Quantity    any             `json:"quantity"`
	UnitName    string          `json:"unitName"`
	Price       any             `json:"price"`
	Subtotal    any             `json:"subtotal"`
	VatRate     looseString     `json:"vatRate"`
	Barcode     looseString     `json:"barcode"`
	Article     looseString     `json:"article"`
	ItemCode    looseString     `json:"itemCode"`
	MatchStatus string          `json:"matchStatus"`
	Raw         map[string]any  `json:"raw"`
	Match       *wireMatch      `json:"match"`
	Candidates  []wireCandidate `json:"candidates"`
}

func (l wireLine) toPayload() edo.LinePayload {
	status := l.MatchStatus
	if status == "" {
		status = "pending"
	}
	raw := l.Raw
	if raw == nil {
		raw = map[string]any{}
	}
	p := edo.LinePayload{
		Line: edo.Line{
			Index:    l.Index,
			Name:     l.Name,
			Quantity: utils.DecimalFromAny(l.Quantity),
			UnitName: l.UnitName,
			Price:    utils.DecimalFromAny(l.Price),
			Subtotal: utils.DecimalFromAny(l.Subtotal),
			VatRate:  string(l.VatRate),
			Barcode:  string(l.Barcode),
			Article:  string(l.Article),
			ItemCode: string(l.ItemCode),
			Raw:      raw,
		},
		Match:       l.Match.toMatch(),
		MatchStatus: status,
	}
	for _, c := range l.Candidates {
		p.Candidates = append(p.Candidates, c.toCandidate())
	}
	return p
}

func toPayloads(lines []wireLine) []edo.LinePayload {
	if lines == nil {
		return nil
	}
	out := make([]edo.LinePayload, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.toPayload())
	}
	return out
}

// receiptRequest sends quantities and prices as JSON numbers.
type receiptRequest struct {
	EdoDocumentId string        `json:"edoDocumentId"`
	WarehouseId   string        `json:"warehouseId"`
	Lines         []receiptLine `json:"lines"`
}

type receiptLine struct {
	EdoLineId int         `json:"edoLineId"`
	ProductId string      `json:"productId"`
	Qty       json.Number `json:"qty"`
	Price     json.Number `json:"price"`
	VatRate   *string     `json:"vatRate"`
	Batch     *string     `json:"batch"`
	Expiry    *string     `json:"expiry"`
}

func newReceiptRequest(r edo.ReceiptRequest) receiptRequest {
	out := receiptRequest{EdoDocumentId: r.EdoDocumentId, WarehouseId: r.WarehouseId, Lines: make([]receiptLine, 0, len(r.Lines))}
	for _, l := range r.Lines {
		out.Lines = append(out.Lines, receiptLine{
			EdoLineId: l.EdoLineId,
			ProductId: l.ProductId,
			Qty:       json.Number(l.Qty.String()),
			Price:     json.Number(l.Price.String()),
			VatRate:   l.VatRate,
			Batch:     l.Batch,
			Expiry:    l.Expiry,
		})
	}
	return out
}
