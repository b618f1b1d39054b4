package edo

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const receiptSheet = "Receipt"

var receiptHeadings = []string{
	"Line", "Name", "Quantity", "Unit", "Price", "Total", "VAT", "Product", "Source", "Score", "Manual",
}

// ExportReceiptDraft renders the draft as a workbook. The caller closes the file.
func ExportReceiptDraft(draft ReceiptDraft, doc Document) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", receiptSheet); err != nil {
		f.Close()
		return nil, err
	}

	title := fmt.Sprintf("%s %s", doc.Number, doc.Counterparty)
	if err := f.SetCellValue(receiptSheet, "A1", title); err != nil {
		f.Close()
		return nil, err
	}

	col := 'A'
	for _, h := range receiptHeadings {
		f.SetCellValue(receiptSheet, string(col)+"2", h)
		col++
	}

	rowNo := 3
	for _, item := range draft.Items {
		product, source, manual := "", "", ""
		var score float64
		if item.Match != nil {
			product = item.Match.Name
			source = string(item.Match.Source)
			score = item.Match.Score
			manual = "no"
			if item.Match.Manual {
				manual = "yes"
			}
		}
		values := []interface{}{
			item.Line.Index + 1,
			item.Line.Name,
			item.Line.Quantity.InexactFloat64(),
			item.Line.UnitName,
			item.Line.Price.InexactFloat64(),
			lineTotal(item.Line).InexactFloat64(),
			item.Line.VatRate,
			product,
			source,
			score,
			manual,
		}
		col := 'A'
		for _, v := range values {
			f.SetCellValue(receiptSheet, string(col)+fmt.Sprint(rowNo), v)
			col++
		}
		rowNo++
	}

	f.SetCellValue(receiptSheet, "E"+fmt.Sprint(rowNo), "Total")
	f.SetCellValue(receiptSheet, "F"+fmt.Sprint(rowNo), draft.Total.Round(2).InexactFloat64())
	return f, nil
}
