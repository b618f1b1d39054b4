package edo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an incoming document.
type Status string

const (
	StatusIncoming       Status = "incoming"
	StatusLinesPending   Status = "lines-pending"
	StatusLinesMatched   Status = "lines-matched"
	StatusReceiptCreated Status = "receipt-created"
	StatusSigned         Status = "signed"
	StatusSent           Status = "sent"
	StatusRejected       Status = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusRejected
}

// Source names the strongest signal behind a candidate or match.
type Source string

const (
	SourceBarcode Source = "barcode"
	SourceArticle Source = "article"
	SourceName    Source = "name"
	SourceManual  Source = "manual"
	SourceAuto    Source = "auto"
)

type ProductType string

const (
	ProductTypeIngredient ProductType = "ingredient"
	ProductTypePackage    ProductType = "package"
	ProductTypeProduct    ProductType = "product"
)

// Document is one incoming EDO document as listed by the provider feed.
type Document struct {
	DocflowId    string          `json:"docflowId"`
	DocumentId   string          `json:"documentId,omitempty"`
	Type         string          `json:"type"`
	Status       Status          `json:"status"`
	Direction    string          `json:"direction"`
	Counterparty string          `json:"counterparty"`
	Number       string          `json:"number"`
	Date         time.Time       `json:"date"`
	Total        decimal.Decimal `json:"total"`
}

// Line is one row of an incoming invoice/waybill. Index is stable within its document.
type Line struct {
	Index    int             `json:"index"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitName string          `json:"unitName"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
	VatRate  string          `json:"vatRate"`
	Barcode  string          `json:"barcode"`
	Article  string          `json:"article"`
	ItemCode string          `json:"itemCode,omitempty"`
	Raw      map[string]any  `json:"raw,omitempty"`
}

// Product is a catalog entry candidates are drawn from.
type Product struct {
	ID       string      `json:"id"`
	Type     ProductType `json:"type"`
	Name     string      `json:"name"`
	Barcode  string      `json:"barcode"`
	Article  string      `json:"article"`
	VatRate  string      `json:"vatRate"`
	Synonyms []string    `json:"synonyms"`
}

// Candidate is a proposed product for one line. Not persisted.
type Candidate struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
	Source  Source  `json:"source"`
}

// Match is the accepted association between a line and a product.
type Match struct {
	ProductId string      `json:"productId"`
	Name      string      `json:"name"`
	Type      ProductType `json:"type,omitempty"`
	Source    Source      `json:"source"`
	Score     float64     `json:"score"`
	Manual    bool        `json:"manual"`
	Comment   string      `json:"comment,omitempty"`
}

// MatchInput sets a line's match. A nil *MatchInput clears it.
type MatchInput struct {
	ProductId string   `json:"productId" validate:"notblank"`
	Source    Source   `json:"source,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Manual    *bool    `json:"manual,omitempty"`
	Comment   string   `json:"comment,omitempty"`
}

// ProductDraft is a catalog product minted from an unmatched line.
type ProductDraft struct {
	Name     string      `json:"name" validate:"notblank,max=255"`
	Type     ProductType `json:"type" validate:"oneof=ingredient package product"`
	Barcode  string      `json:"barcode"`
	Article  string      `json:"article"`
	VatRate  string      `json:"vatRate"`
	Synonyms []string    `json:"synonyms"`
}

// LinePayload is a line together with what the backend knows about its reconciliation.
type LinePayload struct {
	Line        Line        `json:"line"`
	Match       *Match      `json:"match"`
	Candidates  []Candidate `json:"candidates"`
	MatchStatus string      `json:"matchStatus,omitempty"`
}

// LogEntry is one history or activity-log record, newest first in every list.
type LogEntry struct {
	ID        string    `json:"id"`
	DocflowId string    `json:"docflowId,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ReceiptItem is one row of a receipt draft.
type ReceiptItem struct {
	Line  Line            `json:"line"`
	Match *Match          `json:"match"`
	Ready bool            `json:"ready"`
	Total decimal.Decimal `json:"total"`
}

// ReceiptDraft is derived on demand from a document's lines and matches.
type ReceiptDraft struct {
	Items []ReceiptItem   `json:"items"`
	Ready bool            `json:"ready"`
	Total decimal.Decimal `json:"total"`
}

// Unmatched counts lines without a match.
func (d ReceiptDraft) Unmatched() int {
	n := 0
	for _, it := range d.Items {
		if !it.Ready {
			n++
		}
	}
	return n
}

// ReceiptLine is the wire shape of one receipt row sent to the backend.
type ReceiptLine struct {
	EdoLineId int             `json:"edoLineId"`
	ProductId string          `json:"productId"`
	Qty       decimal.Decimal `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	VatRate   *string         `json:"vatRate"`
	Batch     *string         `json:"batch"`
	Expiry    *string         `json:"expiry"`
}

type ReceiptRequest struct {
	EdoDocumentId string        `json:"edoDocumentId"`
	WarehouseId   string        `json:"warehouseId"`
	Lines         []ReceiptLine `json:"lines"`
}

// ServerConfig is what the backend reports about its provider connection.
type ServerConfig struct {
	EdoConfigured bool   `json:"diadocConfigured"`
	BoxId         string `json:"boxId,omitempty"`
	Organization  string `json:"organization,omitempty"`
}

// DocumentFeed is a documents listing. Docs is nil when the payload carried no list at all.
type DocumentFeed struct {
	Docs    []Document
	Cached  bool
	Warning string
}

// ParseResult is the outcome of parsing a document's seller title. Items is nil when the
// backend returned no item list.
type ParseResult struct {
	Items []Line
	XML   string
}

type AutoMatchResult struct {
	Lines   []LinePayload
	Matched *int
}
