package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	checklists "solarops-cloud/internal/checklists/domain"
	installations "solarops-cloud/internal/installations/domain"
)

// BuildRecordPDF renders a commissioning dossier PDF for a record.
func BuildRecordPDF(record *installations.InstallationRecord, trackers []*checklists.Tracker) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Installation Record")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Record: %s (%s)", record.ID, record.ShortCode))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Kind: %s", record.Kind))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Size: %.2f %s", record.SizeMagnitude, record.SizeUnit))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", record.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Customer: %s", record.CustomerID))
	pdf.Ln(5)
	if record.Address != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Address: %s", record.Address))
		pdf.Ln(5)
	}
	if record.Coordinates != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Coordinates: %.6f, %.6f", record.Coordinates.Latitude, record.Coordinates.Longitude))
		pdf.Ln(5)
	}
	if record.InstallationDate != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Installed: %s", record.InstallationDate.Format("2006-01-02")))
		pdf.Ln(5)
	}
	if record.CommissioningDate != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Commissioned: %s", record.CommissioningDate.Format("2006-01-02")))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	// Checklist table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Checklist", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Phase", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Complete", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, tracker := range trackers {
		pdf.CellFormat(70, 6, tracker.TemplateName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, tracker.Phase, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, tracker.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d%%", tracker.Percentage), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRecordXLSX renders a record workbook with a summary sheet and a
// per-item checklist sheet.
func BuildRecordXLSX(record *installations.InstallationRecord, trackers []*checklists.Tracker) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	checklistSheet := "checklists"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(checklistSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Installation Record")
	_ = f.SetCellValue(summarySheet, "A3", "Record")
	_ = f.SetCellValue(summarySheet, "B3", record.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Short Code")
	_ = f.SetCellValue(summarySheet, "B4", record.ShortCode)
	_ = f.SetCellValue(summarySheet, "A5", "Kind")
	_ = f.SetCellValue(summarySheet, "B5", record.Kind)
	_ = f.SetCellValue(summarySheet, "A6", "Size")
	_ = f.SetCellValue(summarySheet, "B6", fmt.Sprintf("%.2f %s", record.SizeMagnitude, record.SizeUnit))
	_ = f.SetCellValue(summarySheet, "A7", "Status")
	_ = f.SetCellValue(summarySheet, "B7", record.Status)
	_ = f.SetCellValue(summarySheet, "A8", "Customer")
	_ = f.SetCellValue(summarySheet, "B8", record.CustomerID)
	_ = f.SetCellValue(summarySheet, "A9", "Order")
	_ = f.SetCellValue(summarySheet, "B9", record.OrderID)
	_ = f.SetCellValue(summarySheet, "A10", "Address")
	_ = f.SetCellValue(summarySheet, "B10", record.Address)
	if record.InstallationDate != nil {
		_ = f.SetCellValue(summarySheet, "A11", "Installed")
		_ = f.SetCellValue(summarySheet, "B11", record.InstallationDate.Format("2006-01-02"))
	}
	if record.CommissioningDate != nil {
		_ = f.SetCellValue(summarySheet, "A12", "Commissioned")
		_ = f.SetCellValue(summarySheet, "B12", record.CommissioningDate.Format("2006-01-02"))
	}

	_ = f.SetCellValue(checklistSheet, "A1", "Checklist")
	_ = f.SetCellValue(checklistSheet, "B1", "Phase")
	_ = f.SetCellValue(checklistSheet, "C1", "Item")
	_ = f.SetCellValue(checklistSheet, "D1", "Required")
	_ = f.SetCellValue(checklistSheet, "E1", "Completed")
	_ = f.SetCellValue(checklistSheet, "F1", "Completed At")
	_ = f.SetCellValue(checklistSheet, "G1", "Photos")
	_ = f.SetCellValue(checklistSheet, "H1", "Notes")
	row := 2
	for _, tracker := range trackers {
		for _, item := range tracker.TemplateItems {
			_ = f.SetCellValue(checklistSheet, fmt.Sprintf("A%d", row), tracker.TemplateName)
			_ = f.SetCellValue(checklistSheet, fmt.Sprintf("B%d", row), tracker.Phase)
			_ = f.SetCellValue(checklistSheet, fmt.Sprintf("C%d", row), item.Title)
			_ = f.SetCellValue(checklistSheet, fmt.Sprintf("D%d", row), item.Required)
			evidence, ok := tracker.Evidence[item.ItemID]
			_ = f.SetCellValue(checklistSheet, fmt.Sprintf("E%d", row), ok && evidence.Completed)
			if ok && !evidence.CompletedAt.IsZero() {
				_ = f.SetCellValue(checklistSheet, fmt.Sprintf("F%d", row), evidence.CompletedAt.Format(time.RFC3339))
			}
			if ok {
				_ = f.SetCellValue(checklistSheet, fmt.Sprintf("G%d", row), len(evidence.PhotoRefs))
				_ = f.SetCellValue(checklistSheet, fmt.Sprintf("H%d", row), evidence.Notes)
			}
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
