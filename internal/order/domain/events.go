package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderAdmitted = "OrderAdmitted"

type OrderAdmitted struct {
	OrderID   string          `json:"order_id"`
	LineItems []LineItem      `json:"line_items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewOrderAdmitted(o Order) OrderAdmitted {
	return OrderAdmitted{
		OrderID:   o.ID,
		LineItems: o.LineItems,
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
	}
}
