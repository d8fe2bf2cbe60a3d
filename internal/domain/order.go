package domain

import "time"

// Direction indicates long or short exposure.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Offset indicates whether an order opens or closes a position.
type Offset string

const (
	OffsetOpen  Offset = "OPEN"
	OffsetClose Offset = "CLOSE"
)

// OrderType distinguishes resting limit orders from stop triggers.
type OrderType string

const (
	OrderTypeLimit OrderType = "LIMIT"
	OrderTypeStop  OrderType = "STOP"
)

// OrderStatus tracks the order lifecycle.
//
// SUBMITTING -> NOTTRADED -> ALLTRADED | CANCELLED. PARTTRADED and
// REJECTED are declared for a finer-grained fill model and are never
// produced by the crossing rule.
type OrderStatus string

const (
	OrderStatusSubmitting OrderStatus = "SUBMITTING"
	OrderStatusNotTraded  OrderStatus = "NOTTRADED"
	OrderStatusPartTraded OrderStatus = "PARTTRADED"
	OrderStatusAllTraded  OrderStatus = "ALLTRADED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRejected   OrderStatus = "REJECTED"
)

// Finished reports whether the status is terminal.
func (s OrderStatus) Finished() bool {
	switch s {
	case OrderStatusAllTraded, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// Order is a simulated order. IDs are monotonic per run, with limit
// and stop orders numbered in separate namespaces. Strategies receive
// value copies on each transition and must never mutate the original.
type Order struct {
	ID          int64       `json:"orderId"`
	Symbol      string      `json:"symbol"`
	Direction   Direction   `json:"direction"`
	Offset      Offset      `json:"offset"`
	Type        OrderType   `json:"type"`
	Price       float64     `json:"price"`
	Volume      float64     `json:"volume"`
	Traded      float64     `json:"traded"`
	AvgPrice    float64     `json:"avgPrice"`
	LastPrice   float64     `json:"lastPrice"`
	LastVolume  float64     `json:"lastVolume"`
	Status      OrderStatus `json:"status"`
	SubmittedAt time.Time   `json:"submittedAt"`
}
