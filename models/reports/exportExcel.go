package reports

import (
	"context"
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
)

// BuildDeltaReportWorkbook lays out the delta pipeline report as a workbook,
// one row per claim.
func BuildDeltaReportWorkbook(data []*ClaimDeltaSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}

	headings := []string{
		"ClaimNumber", "Carrier", "Stage",
		"TotalDeltas", "Identified", "Approved", "Denied", "Included",
		"ApprovedValue", "TotalEstimatedValue",
	}
	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheet, string(col)+"1", h)
		col++
	}

	for i, d := range data {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, d.ClaimNumber)
		f.SetCellValue(sheet, "B"+row, d.CarrierName)
		f.SetCellValue(sheet, "C"+row, d.CurrentStage)
		f.SetCellValue(sheet, "D"+row, d.TotalDeltas)
		f.SetCellValue(sheet, "E"+row, d.IdentifiedCount)
		f.SetCellValue(sheet, "F"+row, d.ApprovedCount)
		f.SetCellValue(sheet, "G"+row, d.DeniedCount)
		f.SetCellValue(sheet, "H"+row, d.IncludedCount)
		f.SetCellValue(sheet, "I"+row, d.ApprovedValue.String())
		f.SetCellValue(sheet, "J"+row, d.TotalEstimatedValue.String())
	}

	return f, nil
}

// ExportDeltaReportExcel streams the report as an xlsx download.
func ExportDeltaReportExcel(ctx context.Context, businessId string, w http.ResponseWriter) error {
	data, err := GetDeltaPipelineReport(ctx, businessId)
	if err != nil {
		return err
	}

	f, err := BuildDeltaReportWorkbook(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=delta-report.xlsx")
	return f.Write(w)
}

// SaveDeltaReportExcel writes the report to a local file. Used by the
// delta-report command line tool.
func SaveDeltaReportExcel(ctx context.Context, businessId string, filename string) error {
	data, err := GetDeltaPipelineReport(ctx, businessId)
	if err != nil {
		return err
	}

	f, err := BuildDeltaReportWorkbook(data)
	if err != nil {
		return err
	}
	return f.SaveAs(filename)
}
