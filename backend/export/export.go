// Package export renders complaint reports for the admin dashboard.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"cleanstreet/backend/server/api"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Complaints"

var headers = []string{
	"Complaint ID", "Title", "Description", "Status", "Priority",
	"Reported By", "Reporter Email", "Assigned To", "Address",
	"Created Date", "Updated Date", "Upvotes", "Downvotes",
}

var columnWidths = []float64{38, 30, 50, 15, 10, 20, 25, 20, 40, 15, 15, 10, 10}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("Jan 2, 2006")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func row(c *api.Complaint) []any {
	reporter, reporterEmail := "N/A", "N/A"
	if c.Reporter != nil {
		reporter, reporterEmail = orNA(c.Reporter.Name), orNA(c.Reporter.Email)
	}
	assignee := "Unassigned"
	if c.Assignee != nil && c.Assignee.Name != "" {
		assignee = c.Assignee.Name
	}
	return []any{
		c.Id, orNA(c.Title), orNA(c.Description), string(c.Status), string(c.Priority),
		reporter, reporterEmail, assignee, orNA(c.Address),
		formatDate(c.CreatedAt), formatDate(c.UpdatedAt), c.Upvotes, c.Downvotes,
	}
}

// WriteCSV writes one header line and one line per complaint.
func WriteCSV(w io.Writer, complaints []*api.Complaint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, c := range complaints {
		values := row(c)
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = fmt.Sprint(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", c.Id, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Excel builds an .xlsx workbook with a frozen, styled header row.
func Excel(complaints []*api.Complaint) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#10B981"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, c := range complaints {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := row(c)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row for %s: %w", c.Id, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
