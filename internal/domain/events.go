package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// AggregateTypeOrder — тип агрегата для событий заказа в outbox.
	AggregateTypeOrder = "order"
	// EventTypeOrderCreated публикуется после успешного оформления заказа.
	EventTypeOrderCreated = "order.created"
)

// OrderCreatedEvent — полезная нагрузка события order.created.
type OrderCreatedEvent struct {
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id"`
	Total      decimal.Decimal        `json:"total"`
	Items      []OrderCreatedItemView `json:"items"`
	CreatedAt  time.Time              `json:"created_at"`
}

// OrderCreatedItemView — позиция заказа в событии.
type OrderCreatedItemView struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// NewOrderCreatedMessage собирает outbox-сообщение для созданного заказа.
func NewOrderCreatedMessage(order Order) (OutboxMessage, error) {
	items := make([]OrderCreatedItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderCreatedItemView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	payload, err := json.Marshal(OrderCreatedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total,
		Items:      items,
		CreatedAt:  order.CreatedAt,
	})
	if err != nil {
		return OutboxMessage{}, err
	}

	return OutboxMessage{
		AggregateType: AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     EventTypeOrderCreated,
		Payload:       payload,
	}, nil
}
