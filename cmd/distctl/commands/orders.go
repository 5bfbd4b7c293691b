package commands

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bbdist/internal/model"
)

func ordersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Work with distribution orders",
	}
	cmd.AddCommand(ordersListCmd(a), ordersGetCmd(a), ordersCreateCmd(a), ordersStatusCmd(a))
	return cmd
}

func ordersListCmd(a *app) *cobra.Command {
	var status string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			orders, err := api.ListOrders(cmd.Context(), strings.ToUpper(status))
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(orders)
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNUMBER\tFACILITY\tPRIORITY\tSTATUS\tUNITS")
			for _, o := range orders {
				units := 0
				for _, it := range o.Items {
					units += it.Quantity
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", o.ID, o.Number, o.Facility, o.Priority, o.Status, units)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (OPEN, IN_PROGRESS, COMPLETED, CANCELLED)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func ordersGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			order, err := api.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(order)
		},
	}
}

func ordersCreateCmd(a *app) *cobra.Command {
	var (
		facility string
		priority string
		items    []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order",
		Example: `  distctl orders create --facility "St. Mary" --priority STAT \
    --item RED_BLOOD_CELLS:O-:2 --item PLASMA:AB+:1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := parseItems(items)
			if err != nil {
				return err
			}
			api, err := a.api()
			if err != nil {
				return err
			}
			order, err := api.CreateOrder(cmd.Context(), facility, model.Priority(strings.ToUpper(priority)), lines)
			if err != nil {
				return err
			}
			a.log.Info("order created", "id", order.ID, "number", order.Number)
			return a.printJSON(order)
		},
	}
	cmd.Flags().StringVar(&facility, "facility", "", "receiving facility")
	cmd.Flags().StringVar(&priority, "priority", string(model.PriorityRoutine), "ROUTINE, ASAP or STAT")
	cmd.Flags().StringArrayVar(&items, "item", nil, "FAMILY:BLOODTYPE:QTY, repeatable")
	_ = cmd.MarkFlagRequired("facility")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func ordersStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move an order to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			order, err := api.SetOrderStatus(cmd.Context(), args[0], model.OrderStatus(strings.ToUpper(args[1])))
			if err != nil {
				return err
			}
			return a.printJSON(order)
		},
	}
}

// parseItems reads FAMILY:BLOODTYPE:QTY triples.
func parseItems(raw []string) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(raw))
	for _, r := range raw {
		parts := strings.Split(r, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("item %q: want FAMILY:BLOODTYPE:QTY", r)
		}
		qty, err := strconv.Atoi(parts[2])
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("item %q: quantity must be a positive number", r)
		}
		items = append(items, model.OrderItem{
			ProductFamily: strings.ToUpper(strings.TrimSpace(parts[0])),
			BloodType:     strings.ToUpper(strings.TrimSpace(parts[1])),
			Quantity:      qty,
		})
	}
	return items, nil
}
