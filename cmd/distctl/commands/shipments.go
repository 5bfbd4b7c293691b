package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bbdist/internal/model"
)

func shipmentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shipments",
		Short: "Pick lists, shipment status and labels",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <order-id>",
			Short: "Create a shipment with a pick list for an order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				sh, err := api.CreateShipment(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printJSON(sh)
			},
		},
		&cobra.Command{
			Use:   "status <shipment-id> <PICKING|PACKED|SHIPPED>",
			Short: "Advance a shipment",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				sh, err := api.SetShipmentStatus(cmd.Context(), args[0], model.ShipmentStatus(strings.ToUpper(args[1])))
				if err != nil {
					return err
				}
				return a.printJSON(sh)
			},
		},
		&cobra.Command{
			Use:   "label <shipment-id>",
			Short: "Print the shipping label",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				text, err := api.ShipmentLabel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(a.out, text)
				return err
			},
		},
	)
	return cmd
}
