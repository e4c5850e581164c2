package notify

// Event names published to the notifications topic. The realtime
// gateway consumes the order/product events; the mailer consumes the
// email events. Both are external collaborators.
const (
	EventOrderCreated   = "order:created"
	EventOrderShipped   = "order:shipped"
	EventOrderDelivered = "order:delivered"
	EventOrderCancelled = "order:cancelled"
	EventLowStock       = "product:low_stock"

	EventEmailOrderConfirmation = "email:order_confirmation"
	EventEmailOrderShipped      = "email:order_shipped"
	EventEmailOrderDelivered    = "email:order_delivered"
)

// OrderEvent is the payload for order lifecycle events. VendorIDs lists
// every distinct fulfilling vendor so the consumer can fan out to each.
type OrderEvent struct {
	OrderID    string   `json:"orderId"`
	CustomerID string   `json:"customerId"`
	VendorIDs  []string `json:"vendorIds"`
	Status     string   `json:"status"`
	Total      string   `json:"total"`

	TrackingNumber string `json:"trackingNumber,omitempty"`
}
