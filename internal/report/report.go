// Package report renders lots, events and reconciliation results as text
// tables and xlsx workbooks.
package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"

	"github.com/albardn2/karma-sub001/internal/ledger"
	"github.com/albardn2/karma-sub001/internal/model"
)

// Sheet names in exported workbooks.
const (
	SheetLots   = "Lots"
	SheetEvents = "Events"
)

var (
	lotHeader = []any{
		"uuid", "material_uuid", "warehouse_uuid", "unit", "currency",
		"cost_per_unit", "current_quantity", "original_quantity", "initial_quantity",
		"is_active", "is_deleted", "created_at",
	}
	eventHeader = []any{
		"uuid", "inventory_uuid", "material_uuid", "event_type", "quantity",
		"original_delta", "affect_original", "reference", "notes", "is_deleted", "created_at",
	}
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// LotsTable writes one row per lot.
func LotsTable(w io.Writer, lots []model.Inventory) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "UUID\tMATERIAL\tWAREHOUSE\tCURRENT\tORIGINAL\tCOST\tSTATUS")
	for _, lot := range lots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			lot.UUID,
			lot.MaterialUUID,
			orDash(lot.WarehouseUUID),
			lot.CurrentQuantity.String(),
			lot.OriginalQuantity.String(),
			lot.CostPerUnit.String(),
			lotStatus(lot),
		)
	}
	return tw.Flush()
}

// DiscrepancyTable writes one row per lot whose balances disagree with its
// events.
func DiscrepancyTable(w io.Writer, ds []ledger.Discrepancy) error {
	if len(ds) == 0 {
		_, err := fmt.Fprintln(w, "no discrepancies")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "INVENTORY\tMATERIAL\tCURRENT\tEXPECTED\tORIGINAL\tEXPECTED")
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.InventoryUUID,
			d.MaterialUUID,
			d.ActualCurrent.String(),
			d.ExpectedCurrent.String(),
			d.ActualOriginal.String(),
			d.ExpectedOriginal.String(),
		)
	}
	return tw.Flush()
}

// ExecutionTable writes an execution summary line followed by one row per
// task, in position order.
func ExecutionTable(w io.Writer, exec model.WorkflowExecution) error {
	fmt.Fprintf(w, "execution %s  workflow %s  status %s\n", exec.UUID, exec.WorkflowUUID, exec.Status)
	tw := newTable(w)
	fmt.Fprintln(tw, "POS\tTASK\tOPERATOR\tSTATUS\tCOMPLETED_BY")
	for _, t := range exec.TaskExecutions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			t.Position,
			t.Name,
			t.Operator,
			t.Status,
			orDash(t.CompletedByUUID),
		)
	}
	return tw.Flush()
}

// WriteWorkbook writes lots and events as two sheets of an xlsx workbook.
func WriteWorkbook(w io.Writer, lots []model.Inventory, events []model.InventoryEvent) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	first := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(first, SheetLots); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetEvents); err != nil {
		return fmt.Errorf("report: add sheet: %w", err)
	}

	lotRows := make([][]any, 0, len(lots))
	for _, lot := range lots {
		lotRows = append(lotRows, []any{
			lot.UUID, lot.MaterialUUID, lot.WarehouseUUID, lot.Unit, lot.Currency,
			lot.CostPerUnit.String(), lot.CurrentQuantity.String(),
			lot.OriginalQuantity.String(), lot.InitialQuantity.String(),
			lot.IsActive, lot.IsDeleted, lot.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	if err := writeSheet(f, SheetLots, lotHeader, lotRows); err != nil {
		return err
	}

	eventRows := make([][]any, 0, len(events))
	for _, ev := range events {
		eventRows = append(eventRows, []any{
			ev.UUID, ev.InventoryUUID, ev.MaterialUUID, string(ev.EventType),
			ev.Quantity.String(), ev.OriginalDelta.String(), ev.AffectOriginal,
			eventReference(ev), ev.Notes, ev.IsDeleted,
			ev.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	if err := writeSheet(f, SheetEvents, eventHeader, eventRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("report: %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("report: %s row %d: %w", sheet, i, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: %s row %d: %w", sheet, i, err)
		}
	}
	return nil
}

func eventReference(ev model.InventoryEvent) string {
	switch {
	case ev.PurchaseOrderItemUUID != "":
		return "purchase_order_item:" + ev.PurchaseOrderItemUUID
	case ev.CustomerOrderItemUUID != "":
		return "customer_order_item:" + ev.CustomerOrderItemUUID
	case ev.ProcessUUID != "":
		return "process:" + ev.ProcessUUID
	}
	return ""
}

func lotStatus(lot model.Inventory) string {
	switch {
	case lot.IsDeleted:
		return "deleted"
	case !lot.IsActive:
		return "inactive"
	}
	return "active"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FormatCount renders n with a noun, e.g. "1 lot", "3 lots".
func FormatCount(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
