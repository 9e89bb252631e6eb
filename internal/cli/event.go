package cli

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/albardn2/karma-sub001/internal/model"
)

// EventCreateOptions holds flags for the event create command.
type EventCreateOptions struct {
	*RootOptions
	Inventory         string
	Quantity          string
	Type              string
	AffectOriginal    bool
	Notes             string
	CreatedBy         string
	PurchaseOrderItem string
	CustomerOrderItem string
	Process           string
	DebitNoteItem     string
	CreditNoteItem    string
}

// NewEventCommand creates the event command group.
func NewEventCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Post and reverse inventory events",
	}
	cmd.AddCommand(newEventCreateCommand(rootOpts))
	cmd.AddCommand(newEventDeleteCommand(rootOpts))
	return cmd
}

func newEventCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post an inventory event against a lot",
		Long: `Post one signed quantity change against a lot.

The event type selects which reference is required:
  sale            --customer-order-item
  purchase_order  --purchase-order-item
  process         --process
  adjustment      optional customer or purchase order item
  manual          none

Examples:
  karma event create --inventory inv-1 --quantity -5 --type manual --notes "spillage"
  karma event create --inventory inv-1 --quantity 20 --type purchase_order \
      --purchase-order-item poi-7 --affect-original`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEventCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Inventory, "inventory", "", "lot UUID (required)")
	cmd.Flags().StringVar(&opts.Quantity, "quantity", "", "signed quantity change (required)")
	cmd.Flags().StringVar(&opts.Type, "type", string(model.EventManual), "event type")
	cmd.Flags().BoolVar(&opts.AffectOriginal, "affect-original", false, "also move the lot's original quantity")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&opts.CreatedBy, "created-by", "", "user UUID")
	cmd.Flags().StringVar(&opts.PurchaseOrderItem, "purchase-order-item", "", "purchase order item UUID")
	cmd.Flags().StringVar(&opts.CustomerOrderItem, "customer-order-item", "", "customer order item UUID")
	cmd.Flags().StringVar(&opts.Process, "process", "", "process UUID")
	cmd.Flags().StringVar(&opts.DebitNoteItem, "debit-note-item", "", "debit note item UUID")
	cmd.Flags().StringVar(&opts.CreditNoteItem, "credit-note-item", "", "credit note item UUID")
	_ = cmd.MarkFlagRequired("inventory")
	_ = cmd.MarkFlagRequired("quantity")

	return cmd
}

func runEventCreate(opts *EventCreateOptions, cmd *cobra.Command) error {
	qty, err := decimal.NewFromString(opts.Quantity)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --quantity", err)
	}

	svc, _, err := opts.openService(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer closeService(svc)

	f := opts.formatter(cmd)
	ev, err := svc.CreateEvent(cmd.Context(), model.InventoryEventCreate{
		InventoryUUID:         opts.Inventory,
		Quantity:              qty,
		EventType:             model.EventType(opts.Type),
		AffectOriginal:        opts.AffectOriginal,
		PurchaseOrderItemUUID: opts.PurchaseOrderItem,
		CustomerOrderItemUUID: opts.CustomerOrderItem,
		ProcessUUID:           opts.Process,
		DebitNoteItemUUID:     opts.DebitNoteItem,
		CreditNoteItemUUID:    opts.CreditNoteItem,
		Notes:                 opts.Notes,
		CreatedByUUID:         opts.CreatedBy,
	})
	if err != nil {
		return reportError(f, "event rejected", err)
	}

	return f.Done(ev, "Posted %s event %s: %s on %s", ev.EventType, ev.UUID, ev.Quantity, ev.InventoryUUID)
}

func newEventDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <event-uuid>",
		Short: "Reverse a manual event",
		Long: `Soft-delete a manual event and undo its effect on the lot.
Only manual events can be deleted.

Example:
  karma event delete inv-0042`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := rootOpts.openService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeService(svc)

			f := rootOpts.formatter(cmd)
			ev, err := svc.DeleteEvent(cmd.Context(), args[0])
			if err != nil {
				return reportError(f, "delete rejected", err)
			}
			return f.Done(ev, "Reversed event %s on %s", ev.UUID, ev.InventoryUUID)
		},
	}
}
