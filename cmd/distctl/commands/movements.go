package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bbdist/internal/model"
)

func parseKind(raw string) (model.MovementKind, error) {
	kind := model.MovementKind(strings.TrimSuffix(strings.ToUpper(raw), "S"))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown movement kind %q (return, import, transfer)", raw)
	}
	return kind, nil
}

func movementsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movements",
		Short: "Returns, imports and transfers of blood units",
	}

	list := &cobra.Command{
		Use:   "list <return|import|transfer>",
		Short: "List recorded movements of one kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			api, err := a.api()
			if err != nil {
				return err
			}
			list, err := api.ListMovements(cmd.Context(), kind)
			if err != nil {
				return err
			}
			return a.printJSON(list)
		},
	}

	var m model.Movement
	record := &cobra.Command{
		Use:   "record <return|import|transfer>",
		Short: "Record a movement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			m.Kind = kind
			if err := m.Validate(); err != nil {
				return err
			}
			api, err := a.api()
			if err != nil {
				return err
			}
			out, err := api.RecordMovement(cmd.Context(), m)
			if err != nil {
				return err
			}
			return a.printJSON(out)
		},
	}
	record.Flags().StringVar(&m.UnitNumber, "unit", "", "donation unit number")
	record.Flags().StringVar(&m.ProductCode, "product", "", "product code")
	record.Flags().StringVar(&m.From, "from", "", "origin facility or location")
	record.Flags().StringVar(&m.To, "to", "", "destination (transfers)")
	record.Flags().StringVar(&m.Reason, "reason", "", "return reason")

	cmd.AddCommand(list, record)
	return cmd
}
