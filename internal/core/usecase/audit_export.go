package usecase

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

const (
	auditSheet      = "Audit"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var auditHeadings = []string{"id", "dataHora", "entidade", "entidadeId", "acaoRealizada", "detalhe", "ator"}

// WriteAuditWorkbook renders entries as a single-sheet workbook, one row per
// entry in the order given.
func WriteAuditWorkbook(w io.Writer, entries []domain.AuditEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", auditSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range auditHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(auditSheet, cell, h); err != nil {
			return err
		}
	}

	for i, e := range entries {
		row := []any{
			e.ID,
			e.At.UTC().Format(time.RFC3339),
			string(e.EntityKind),
			e.EntityID,
			string(e.Action),
			e.Detail,
			e.Actor,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(auditSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(auditSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
