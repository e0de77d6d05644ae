package main

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

func newProductView(p domain.Product) productView {
	return productView{ID: p.ID, Name: p.Name, Price: p.Price.StringFixed(2), Quantity: p.Quantity}
}

type customerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newCustomerView(c domain.Customer) customerView {
	return customerView{ID: c.ID, Name: c.Name, Email: c.Email}
}

type orderItemView struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
	Subtotal  string `json:"subtotal"`
}

type orderView struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Customer   *customerView   `json:"customer,omitempty"`
	Items      []orderItemView `json:"items"`
	Total      string          `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}

func newOrderView(o domain.Order) orderView {
	view := orderView{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Items:      make([]orderItemView, 0, len(o.Items)),
		Total:      o.Total.StringFixed(2),
		CreatedAt:  o.CreatedAt.UTC(),
	}
	if o.Customer.ID != "" {
		c := newCustomerView(o.Customer)
		view.Customer = &c
	}
	for _, item := range o.Items {
		view.Items = append(view.Items, orderItemView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
			Subtotal:  item.Subtotal().StringFixed(2),
		})
	}
	return view
}
