package domain

import "time"

type OrderEventType string

const (
	OrderEventPlaced        OrderEventType = "order.placed"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

type OrderEvent struct {
	ID         string         `json:"id"`
	Type       OrderEventType `json:"type"`
	OrderID    string         `json:"orderId"`
	UserID     string         `json:"userId"`
	Status     OrderStatus    `json:"status"`
	Total      string         `json:"total,omitempty"`
	ItemCount  int            `json:"itemCount,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}
