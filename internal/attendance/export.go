package attendance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ExportHeader is the first row of every export.
var ExportHeader = []string{"Date", "Time", "Student Name"}

// Export writes the records to an xlsx workbook at path, one row per record
// in log order below the header. The workbook is written to a temporary file
// next to path and renamed over it, so a failed export leaves any previous
// file intact. Failures wrap domain.ErrIOFailure.
func Export(path string, records []Record) error {
	f, err := buildWorkbook(records)
	if err != nil {
		return fmt.Errorf("export %s: %w: %w", path, domain.ErrIOFailure, err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("export %s: %w: %w", path, domain.ErrIOFailure, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export %s: write workbook: %w: %w", path, domain.ErrIOFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export %s: sync: %w: %w", path, domain.ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export %s: close: %w: %w", path, domain.ErrIOFailure, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("export %s: replace: %w: %w", path, domain.ErrIOFailure, err)
	}

	log.WithFields(logrus.Fields{"path": path, "records": len(records)}).Info("attendance exported")
	return nil
}

func buildWorkbook(records []Record) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := constants.ExportSheetName

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(ExportHeader))
	for i, h := range ExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(sheet, "A1", "C1", bold)
	}
	_ = f.SetColWidth(sheet, "A", "B", 12)
	_ = f.SetColWidth(sheet, "C", "C", 30)

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		row := []any{rec.Date, rec.Time, rec.Name}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f, nil
}

// ReadExport loads the rows of an exported workbook, header included.
func ReadExport(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, domain.ErrIOFailure, err)
	}
	defer f.Close()

	rows, err := f.GetRows(constants.ExportSheetName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, domain.ErrIOFailure, err)
	}
	return rows, nil
}
