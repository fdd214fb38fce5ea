package cli

import (
	"fmt"
	"io"
	"strings"

	"shop-admin/internal/ai"
	"shop-admin/internal/core"
)

func printProducts(w io.Writer, title string, products []core.Product) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	if len(products) == 0 {
		fmt.Fprintln(w, "  No products found.")
		fmt.Fprintln(w, strings.Repeat("=", 72))
		return
	}
	fmt.Fprintf(w, "  %-6s %-34s %12s %10s\n", "ID", "NAME", "PRICE", "STOCK")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, p := range products {
		fmt.Fprintf(w, "  %-6d %-34s %12s %10d\n", p.ID, truncate(p.Name, 34), p.Price.StringFixed(2), p.Quantity)
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func printProduct(w io.Writer, p *core.Product) {
	fmt.Fprintf(w, "\nPRODUCT #%d: %s\n", p.ID, p.Name)
	fmt.Fprintf(w, "  Price       : %s\n", p.Price.StringFixed(2))
	if p.CostPrice.Valid {
		fmt.Fprintf(w, "  Cost price  : %s\n", p.CostPrice.Decimal.StringFixed(2))
	}
	fmt.Fprintf(w, "  Stock       : %d\n", p.Quantity)
	if p.Barcode != "" {
		fmt.Fprintf(w, "  Barcode     : %s\n", p.Barcode)
	}
	if p.Description != "" {
		fmt.Fprintf(w, "  Description : %s\n", p.Description)
	}
	if p.IsDeleted() {
		fmt.Fprintf(w, "  Deleted at  : %s\n", p.DeletedAt.Format("2006-01-02 15:04"))
	}
}

func printHistory(w io.Writer, productID int, entries []core.HistoryEntry) {
	fmt.Fprintf(w, "\nHISTORY product #%d\n", productID)
	fmt.Fprintln(w, strings.Repeat("-", 72))
	if len(entries) == 0 {
		fmt.Fprintln(w, "  No history.")
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %s  %-14s", e.CreatedAt.Format("2006-01-02 15:04"), e.Action)
		switch {
		case e.Action == core.ActionUpdated:
			line += " fields: " + e.FieldName
		case e.OldValue != nil && e.NewValue != nil && e.OldValue.Kind == core.HistoryScalar:
			line += fmt.Sprintf(" %s -> %s", e.OldValue.Scalar, e.NewValue.Scalar)
		}
		if e.Note != "" {
			line += "  (" + e.Note + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func printOrders(w io.Writer, orders []core.Order) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "  %-6s %-12s %-24s %-16s %12s\n", "ID", "STATUS", "RECIPIENT", "CREATED", "TOTAL")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	if len(orders) == 0 {
		fmt.Fprintln(w, "  No orders found.")
	}
	for _, o := range orders {
		fmt.Fprintf(w, "  %-6d %-12s %-24s %-16s %12s\n",
			o.ID, o.Status, truncate(o.RecipientName, 24), o.CreatedAt.Format("2006-01-02 15:04"), o.TotalPrice.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func printOrder(w io.Writer, o *core.Order) {
	fmt.Fprintf(w, "\nORDER #%d  [%s]\n", o.ID, o.Status)
	if o.PreviousStatus != "" {
		fmt.Fprintf(w, "  Was         : %s\n", o.PreviousStatus)
	}
	fmt.Fprintf(w, "  Contact     : %s\n", o.FBName)
	fmt.Fprintf(w, "  Recipient   : %s, %s\n", o.RecipientName, o.Phone)
	fmt.Fprintf(w, "  Address     : %s\n", o.Address)
	if o.Comment != "" {
		fmt.Fprintf(w, "  Comment     : %s\n", o.Comment)
	}
	fmt.Fprintln(w, "  ITEMS:")
	for _, it := range o.Items {
		fmt.Fprintf(w, "    %-30s %4d x %10s + %8s = %10s\n",
			truncate(it.ProductName, 30), it.Quantity, it.UnitPrice.StringFixed(2),
			it.CourierPrice.StringFixed(2), it.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(w, "  TOTAL       : %s\n", o.TotalPrice.StringFixed(2))
}

// PrintDraft renders an extracted order draft for operator review.
func PrintDraft(w io.Writer, token string, d *ai.OrderDraft) {
	fmt.Fprintf(w, "\nDRAFT %s\n", token)
	fmt.Fprintf(w, "  Contact     : %s\n", d.FBName)
	fmt.Fprintf(w, "  Recipient   : %s, %s\n", d.RecipientName, d.Phone)
	fmt.Fprintf(w, "  Address     : %s\n", d.Address)
	if d.Comment != "" {
		fmt.Fprintf(w, "  Comment     : %s\n", d.Comment)
	}
	fmt.Fprintln(w, "  ITEMS:")
	for _, it := range d.Items {
		fmt.Fprintf(w, "    product #%-6d %4d x %10s + %8s\n", it.ProductID, it.Quantity, it.UnitPrice, it.CourierPrice)
	}
	fmt.Fprintf(w, "  CONFIDENCE  : %.2f\n", d.Confidence)
	if d.Notes != "" {
		fmt.Fprintf(w, "  NOTES       : %s\n", d.Notes)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
