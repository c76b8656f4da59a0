package reconcile

import (
	"fmt"
	"io"
)

// WriteUnmatchedReport prints the consolidated unmatched-orders report.
// Informational only; nothing is persisted.
func (r *Result) WriteUnmatchedReport(w io.Writer) {
	if len(r.Unmatched) == 0 {
		return
	}
	fmt.Fprintln(w, "Unmatched orders, or orders that were already matched:")
	for _, rec := range r.Unmatched {
		fmt.Fprintf(w, "Order Date: %s, Delivery Date: %s, Description: %s, Total Cost: $%s\n",
			rec.OrderDate, rec.DeliveryDate, rec.Description, rec.TotalCost.StringFixed(2))
	}
}
