package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"deenice_finds/internal/domain"
	"deenice_finds/internal/notify"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// itemsFlag collects repeated -item "title:price[:quantity]" values.
type itemsFlag []domain.OrderItem

func (f *itemsFlag) String() string {
	parts := make([]string, len(*f))
	for i, it := range *f {
		parts[i] = fmt.Sprintf("%s:%g:%d", it.Title, it.Price, it.Quantity)
	}
	return strings.Join(parts, ",")
}

func (f *itemsFlag) Set(value string) error {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("item %q: want title:price[:quantity]", value)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return fmt.Errorf("item %q: bad price: %w", value, err)
	}
	qty := 1
	if len(parts) == 3 {
		if qty, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
			return fmt.Errorf("item %q: bad quantity: %w", value, err)
		}
	}
	*f = append(*f, domain.OrderItem{Title: strings.TrimSpace(parts[0]), Price: price, Quantity: qty})
	return nil
}

// formatTotal prefers the total the shop charged over the sum of the lines.
func formatTotal(o *domain.Order) string {
	total := notify.ItemsTotal(o)
	if o.TotalAmount != nil {
		total = decimal.NewFromFloat(*o.TotalAmount)
	}
	currency := o.Currency
	if currency == "" {
		currency = notify.DefaultOptions().DefaultCurrency
	}
	return currency + " " + total.StringFixed(2)
}

func orderRows(orders []domain.Order) [][]string {
	rows := make([][]string, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		rows = append(rows, []string{
			o.ID,
			o.OrderDate.Local().Format("2006-01-02 15:04"),
			string(o.Status),
			o.Customer.Name,
			strconv.Itoa(len(o.Items)),
			formatTotal(o),
		})
	}
	return rows
}

func renderOrders(w io.Writer, orders []domain.Order) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Placed", "Status", "Customer", "Items", "Total")
	if err := table.Bulk(orderRows(orders)); err != nil {
		return err
	}
	return table.Render()
}
