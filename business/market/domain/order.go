package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the order execution type.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus is the lifecycle state of an order as reported by the
// exchange. The set is closed: any value outside it is a protocol
// violation, never a state to guess around.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
)

// ParseOrderStatus validates a raw status string. Unknown statuses are an
// error: acting on a misread order state risks real funds.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch OrderStatus(raw) {
	case OrderStatusNew, OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCanceled:
		return OrderStatus(raw), nil
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// IsTerminal reports whether the order can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCanceled
}

// Order is an exchange order report.
type Order struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string
	Side          Side
	Type          OrderType
	Status        OrderStatus
	Price         decimal.Decimal
	OrigQty       decimal.Decimal
	ExecutedQty   decimal.Decimal
	CumQuoteQty   decimal.Decimal
	TransactTime  time.Time
}

// RemainingQty returns the unfilled base quantity.
func (o Order) RemainingQty() decimal.Decimal {
	return o.OrigQty.Sub(o.ExecutedQty)
}

// IsFilled reports whether the order filled completely.
func (o Order) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// HasFills reports whether any base quantity executed.
func (o Order) HasFills() bool {
	return o.ExecutedQty.IsPositive()
}
