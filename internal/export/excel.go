// Package export renders reservation reports as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"slotbook/internal/model"
)

var reportColumns = []string{
	"ID", "Code", "Date", "Start", "Duration (min)", "Status",
	"Client", "Phone", "Notes", "Created",
}

// WriteReservationReport writes a business's reservations as an xlsx
// workbook to w, one row per reservation, ordered as given.
func WriteReservationReport(w io.Writer, businessID int64, reservations []model.Reservation) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("Business %d", businessID)
	if len(sheet) > 31 {
		sheet = sheet[:31] // Excel sheet name limit
	}
	f.SetSheetName("Sheet1", sheet)

	for i, col := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for row, r := range reservations {
		values := []any{
			r.ID,
			r.Code,
			r.Date.Format("2006-01-02"),
			r.StartTime,
			r.DurationMin,
			string(r.Status),
			r.ClientName,
			r.ClientPhone,
			r.Notes,
			r.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
