// Package label lays out printable shipment labels.
package label

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"bbdist/internal/model"
)

const width = 48

func Render(w io.Writer, sh model.Shipment, order model.Order) error {
	rule := strings.Repeat("=", width)
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, center("BLOOD COMPONENTS - HANDLE WITH CARE"))
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "SHIP TO:   %s\n", order.Facility)
	fmt.Fprintf(&b, "ORDER:     %s\n", order.Number)
	fmt.Fprintf(&b, "PRIORITY:  %s\n", order.Priority)
	fmt.Fprintf(&b, "SHIPMENT:  %s\n", sh.ID)
	fmt.Fprintf(&b, "STATUS:    %s\n", sh.Status)
	fmt.Fprintf(&b, "PACKED:    %s\n", sh.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintln(&b, strings.Repeat("-", width))

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tABO/RH\tQTY")
	total := 0
	for _, it := range sh.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", it.ProductFamily, it.BloodType, it.Quantity)
		total += it.Quantity
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(&b, strings.Repeat("-", width))
	fmt.Fprintf(&b, "TOTAL UNITS: %d\n", total)
	if order.Priority == model.PrioritySTAT {
		fmt.Fprintln(&b, center("*** STAT ***"))
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func center(s string) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", (width-len(s))/2) + s
}
