// Package export renders the alert queue as downloadable XLSX or CSV files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/linnemanlabs/caseq/internal/alerts"
)

// Header is the exported column set, in order.
var Header = []string{
	"Code",
	"Title",
	"Typology",
	"Risk Score",
	"Status",
	"Assigned Analyst",
	"Resolution",
	"Flagged Amount",
	"Flagged Transactions",
	"Triggered",
	"Closed",
}

const sheetName = "Alert Queue"

// Workbook renders alerts as an XLSX workbook with a styled header row.
func Workbook(list []alerts.Alert) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so Close only on error paths.

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, header := range Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header style: %w", err)
		}
	}

	for i := range list {
		for col, val := range row(&list[i]) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// CSV renders alerts as a CSV file with the same columns as Workbook.
func CSV(list []alerts.Alert) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i := range list {
		if err := w.Write(row(&list[i])); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func row(a *alerts.Alert) []string {
	analyst := ""
	if a.AssignedAnalyst != nil {
		analyst = *a.AssignedAnalyst
	}
	resolution := ""
	if a.Resolution != nil {
		resolution = *a.Resolution
	}
	amount := ""
	if a.FlaggedAmount != nil {
		amount = a.FlaggedAmount.StringFixed(2)
	}
	closed := ""
	if a.ClosedAt != nil {
		closed = a.ClosedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		a.Code,
		a.Title,
		a.Typology,
		strconv.Itoa(a.RiskScore),
		string(a.Status),
		analyst,
		resolution,
		amount,
		strconv.Itoa(a.FlaggedTxCount),
		a.TriggeredAt.UTC().Format(time.RFC3339),
		closed,
	}
}
