package notify

import (
	"net/url"
	"strings"
	"testing"

	"deenice_finds/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"0712 345 678", "254712345678"},
		{"712345678", "254712345678"},
		{"110345678", "254110345678"},
		{"+254 712-345-678", "254712345678"},
		{"+1 (415) 555-0100", "14155550100"},
		{"12345", ""},
		{"٠٧١٢٣٤٥٦٧٨", ""},
		{"0712 ३४५ 678", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.raw, "254"), tt.raw)
	}
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:       "DFK1ABCXYZ",
		Customer: domain.Customer{Name: "Jane Wanjiku", City: "Nairobi", Phone: "0712345678"},
		Items: []domain.OrderItem{
			{Title: "Case", Price: 500, Quantity: 2},
			{Title: "Charger", Price: 1250.5, Quantity: 1},
		},
		Delivery: &domain.Delivery{Method: domain.DeliveryPickup, PickupCode: "PK42"},
	}
}

func TestBuildWhatsAppLink(t *testing.T) {
	link, ok := BuildWhatsAppLink(testOrder(), domain.StatusProcessing, DefaultOptions())
	require.True(t, ok)
	require.True(t, strings.HasPrefix(link, "https://wa.me/254712345678?text="))

	u, err := url.Parse(link)
	require.NoError(t, err)
	text := u.Query().Get("text")
	assert.Contains(t, text, "Hi Jane")
	assert.Contains(t, text, "DFK1ABCXYZ")
	assert.Contains(t, text, "KES 2250.50")
	assert.Contains(t, text, "pickup code is PK42")

	query := strings.TrimPrefix(link, "https://wa.me/254712345678?text=")
	assert.Contains(t, query, "Hi%20Jane")
	assert.NotContains(t, query, "+", "spaces are sent as %20")
}

func TestBuildWhatsAppLink_NoTemplateOrPhone(t *testing.T) {
	_, ok := BuildWhatsAppLink(testOrder(), domain.StatusPending, DefaultOptions())
	assert.False(t, ok)

	o := testOrder()
	o.Customer.Phone = ""
	_, ok = BuildWhatsAppLink(o, domain.StatusCompleted, DefaultOptions())
	assert.False(t, ok)
}

func TestMessage_HomeDeliveryMentionsCity(t *testing.T) {
	o := testOrder()
	o.Delivery = &domain.Delivery{Method: domain.DeliveryHome}
	o.Currency = "USD"

	msg, ok := Message(o, domain.StatusCompleted, DefaultOptions())
	require.True(t, ok)
	assert.Contains(t, msg, "delivered to you in Nairobi")
	assert.Contains(t, msg, "USD 2250.50")

	msg, ok = Message(o, domain.StatusCancelled, DefaultOptions())
	require.True(t, ok)
	assert.Contains(t, msg, "has been cancelled")
}

func TestItemsTotal(t *testing.T) {
	o := &domain.Order{Items: []domain.OrderItem{{Title: "Case", Price: 500, Quantity: 2}}}
	assert.Equal(t, "1000", ItemsTotal(o).String())
}
