// Package notify builds pre-filled WhatsApp links for order status changes.
// Nothing here sends a message; callers hand the link to a human.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"deenice_finds/internal/domain"

	"github.com/shopspring/decimal"
)

const waBaseURL = "https://wa.me/"

type Options struct {
	StoreName       string
	DefaultCurrency string
	CountryCode     string
}

func DefaultOptions() Options {
	return Options{StoreName: "Deenice Finds", DefaultCurrency: "KES", CountryCode: "254"}
}

// NormalizePhone returns the international digits for a phone number, or "" when unusable.
func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case len(digits) == 9 && (digits[0] == '7' || digits[0] == '1'):
		return countryCode + digits
	case len(digits) >= 10 && len(digits) <= 15:
		return digits
	default:
		return ""
	}
}

// ItemsTotal sums price*quantity over the order lines.
func ItemsTotal(order *domain.Order) decimal.Decimal {
	total := decimal.Zero
	for _, item := range order.Items {
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func itemCount(order *domain.Order) int {
	n := 0
	for _, item := range order.Items {
		n += item.Quantity
	}
	return n
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

func deliveryLine(order *domain.Order, status domain.OrderStatus) string {
	if order.Delivery == nil {
		return ""
	}
	switch order.Delivery.Method {
	case domain.DeliveryPickup:
		switch status {
		case domain.StatusProcessing:
			if order.Delivery.PickupCode != "" {
				return fmt.Sprintf("Your pickup code is %s. We will let you know when it is ready for collection.", order.Delivery.PickupCode)
			}
			return "We will let you know when it is ready for collection."
		case domain.StatusCompleted:
			return "Thank you for picking up your order."
		}
	case domain.DeliveryHome:
		switch status {
		case domain.StatusProcessing:
			return fmt.Sprintf("We are preparing it for delivery to %s.", order.Customer.City)
		case domain.StatusCompleted:
			return fmt.Sprintf("It has been delivered to you in %s.", order.Customer.City)
		}
	}
	return ""
}

// Message renders the status template, or returns false when the status has none.
func Message(order *domain.Order, status domain.OrderStatus, opts Options) (string, bool) {
	currency := order.Currency
	if currency == "" {
		currency = opts.DefaultCurrency
	}
	summary := fmt.Sprintf("Order %s (%d item(s), %s %s)",
		order.ID, itemCount(order), currency, ItemsTotal(order).StringFixed(2))
	name := firstName(order.Customer.Name)

	var lines []string
	switch status {
	case domain.StatusProcessing:
		lines = []string{
			fmt.Sprintf("Hi %s, great news from %s!", name, opts.StoreName),
			summary + " is now being processed.",
		}
	case domain.StatusCompleted:
		lines = []string{
			fmt.Sprintf("Hi %s, your order from %s is complete.", name, opts.StoreName),
			summary + " has been fulfilled.",
		}
	case domain.StatusCancelled:
		lines = []string{
			fmt.Sprintf("Hi %s, this is %s.", name, opts.StoreName),
			summary + " has been cancelled. Reply to this message if you have any questions.",
		}
	default:
		return "", false
	}
	if d := deliveryLine(order, status); d != "" {
		lines = append(lines, d)
	}
	lines = append(lines, "Thank you for shopping with us.")
	return strings.Join(lines, "\n"), true
}

// BuildWhatsAppLink returns a wa.me link with the status message pre-filled.
// ok is false when the order has no usable phone or the status has no template.
func BuildWhatsAppLink(order *domain.Order, status domain.OrderStatus, opts Options) (string, bool) {
	phone := NormalizePhone(order.Customer.Phone, opts.CountryCode)
	if phone == "" {
		return "", false
	}
	msg, ok := Message(order, status, opts)
	if !ok {
		return "", false
	}
	// wa.me shows a literal '+' for form-encoded spaces
	text := strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
	return waBaseURL + phone + "?text=" + text, true
}
