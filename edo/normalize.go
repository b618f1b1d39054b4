package edo

import (
	"strings"
	"time"

	"github.com/mmdatafocus/kitchen_admin/utils"
)

const (
	defaultCounterparty = "Контрагент"
	defaultDocumentType = "UniversalTransferDocument"
	defaultLineName     = "Позиция"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006",
}

// statusAliases maps provider docflow states onto the console lifecycle.
var statusAliases = map[string]Status{
	"new":                StatusIncoming,
	"inbound":            StatusIncoming,
	"received":           StatusIncoming,
	"parsed":             StatusLinesPending,
	"matched":            StatusLinesMatched,
	"receipt":            StatusReceiptCreated,
	"signed":             StatusSigned,
	"sent":               StatusSent,
	"delivered":          StatusSent,
	"rejected":           StatusRejected,
	"signaturerequested": StatusIncoming,
}

// ParseStatus maps a provider status onto Status. Unknown values are kept lower-cased.
func ParseStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusIncoming
	}
	switch Status(s) {
	case StatusIncoming, StatusLinesPending, StatusLinesMatched, StatusReceiptCreated,
		StatusSigned, StatusSent, StatusRejected:
		return Status(s)
	}
	if st, ok := statusAliases[strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)]; ok {
		return st
	}
	return Status(s)
}

func parseTime(v any, now time.Time) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
	case float64:
		// Epoch milliseconds.
		return time.UnixMilli(int64(t)).UTC()
	}
	return now
}

// NormalizeDocument builds a Document from a provider payload, accepting the historical field
// names of every feed version.
func NormalizeDocument(raw map[string]any) Document {
	return normalizeDocumentAt(raw, time.Now().UTC())
}

func normalizeDocumentAt(raw map[string]any, now time.Time) Document {
	direction := utils.FirstString(raw, "direction")
	if direction == "" {
		direction = "in"
		if incoming, ok := raw["IsIncoming"].(bool); ok && !incoming {
			direction = "out"
		}
	}
	counterparty := utils.FirstString(raw, "counterparty", "CounterpartyName", "CounterpartyBoxId")
	if counterparty == "" {
		counterparty = defaultCounterparty
	}
	docType := utils.FirstString(raw, "type", "DocumentType")
	if docType == "" {
		docType = defaultDocumentType
	}
	return Document{
		DocflowId:    strings.TrimSpace(utils.FirstString(raw, "docflowId", "DocflowId", "id")),
		DocumentId:   utils.FirstString(raw, "documentId", "Document.EntityId", "MessageId"),
		Type:         docType,
		Status:       ParseStatus(utils.FirstString(raw, "status", "DocflowStatus")),
		Direction:    direction,
		Counterparty: counterparty,
		Number:       utils.FirstString(raw, "number", "DocumentNumber"),
		Date:         parseTime(utils.FirstValue(raw, "date", "SendDateTime", "createdAt"), now),
		Total:        utils.DecimalFromAny(utils.FirstValue(raw, "total", "Total", "TotalSum")),
	}
}

// NormalizeLine builds a Line from a provider payload. The payload itself is kept as Raw.
func NormalizeLine(raw map[string]any, index int) Line {
	if v, ok := raw["index"]; ok {
		if d := utils.DecimalFromAny(v); !d.IsNegative() && d.IsInteger() {
			index = int(d.IntPart())
		}
	}
	name := utils.FirstString(raw, "name", "Product")
	if name == "" {
		name = defaultLineName
	}
	return Line{
		Index:    index,
		Name:     name,
		Quantity: utils.DecimalFromAny(utils.FirstValue(raw, "quantity", "Quantity")),
		UnitName: utils.FirstString(raw, "unitName", "UnitName"),
		Price:    utils.DecimalFromAny(utils.FirstValue(raw, "price", "Price")),
		Subtotal: utils.DecimalFromAny(utils.FirstValue(raw, "subtotal", "SubtotalWithVatExcluded", "Subtotal")),
		VatRate:  utils.FirstString(raw, "vatRate", "TaxRate"),
		Barcode:  utils.FirstString(raw, "barcode", "Gtin", "ItemVendorCode"),
		Article:  utils.FirstString(raw, "article", "ItemVendorCode"),
		ItemCode: utils.FirstString(raw, "itemCode", "ItemCode"),
		Raw:      raw,
	}
}

// NormalizeProduct accepts catalog payloads with either camelCase or provider field names.
func NormalizeProduct(raw map[string]any) Product {
	p := Product{
		ID:      utils.FirstString(raw, "id", "productId", "Id"),
		Type:    ProductType(strings.ToLower(utils.FirstString(raw, "type", "Type"))),
		Name:    utils.FirstString(raw, "name", "Name"),
		Barcode: utils.FirstString(raw, "barcode", "Barcode", "Gtin"),
		Article: utils.FirstString(raw, "article", "Article", "Sku"),
		VatRate: utils.FirstString(raw, "vatRate", "VatRate", "TaxRate"),
	}
	if p.Type == "" {
		p.Type = ProductTypeIngredient
	}
	if syns, ok := raw["synonyms"].([]any); ok {
		for _, s := range syns {
			if str, ok := s.(string); ok && strings.TrimSpace(str) != "" {
				p.Synonyms = append(p.Synonyms, str)
			}
		}
	}
	return p
}
