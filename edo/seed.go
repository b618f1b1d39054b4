package edo

import (
	"time"

	"github.com/shopspring/decimal"
)

// SampleDocuments is the demo feed shown when the provider returns nothing usable.
func SampleDocuments() []Document {
	return []Document{
		{
			DocflowId:    "sample-demo-001",
			DocumentId:   "msg-001",
			Type:         defaultDocumentType,
			Status:       StatusIncoming,
			Direction:    "in",
			Counterparty: "ООО «Ромашка Снаб»",
			Number:       "УПД №154 от 14.02.2025",
			Date:         time.Date(2025, time.February, 14, 9, 25, 0, 0, time.UTC),
			Total:        decimal.RequireFromString("12890.45"),
		},
	}
}

// PlaceholderLines is the demo line set installed when a document cannot be parsed.
// Every line carries raw["placeholder"] = true.
func PlaceholderLines() []Line {
	return []Line{
		{
			Index:    0,
			Name:     "Сыр Моцарелла 45%",
			Quantity: decimal.NewFromInt(10),
			UnitName: "кг",
			Price:    decimal.NewFromInt(820),
			Subtotal: decimal.NewFromInt(8200),
			VatRate:  "20%",
			Barcode:  "4601234000017",
			Article:  "MOZ45",
			ItemCode: "A001",
			Raw:      map[string]any{"placeholder": true},
		},
	}
}

// SeedCatalog is the offline product catalog used until the backend provides one.
func SeedCatalog() []Product {
	return []Product{
		{ID: "prd-100", Type: ProductTypeIngredient, Name: "Соус томатный базовый", Barcode: "4601234000024", Article: "SAUCE-TOM", VatRate: "10%", Synonyms: []string{"соус томатный", "соус для пиццы"}},
		{ID: "prd-101", Type: ProductTypeIngredient, Name: "Сыр Моцарелла 45%", Barcode: "4601234000017", Article: "MOZ45", VatRate: "20%", Synonyms: []string{"моцарелла", "сыр моцарелла"}},
		{ID: "prd-102", Type: ProductTypePackage, Name: "Коробка пиццы 33 см", Article: "BOX-33", VatRate: "20%", Synonyms: []string{"коробка", "упаковка пиццы"}},
		{ID: "prd-103", Type: ProductTypeProduct, Name: "Пицца Маргарита", Barcode: "4607001234567", Article: "PIZZA-MARG", VatRate: "20%", Synonyms: []string{"пицца маргарита"}},
	}
}
