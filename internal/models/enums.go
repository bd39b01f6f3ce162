package models

import "fmt"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleCustomer:
		return RoleCustomer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderShipped   OrderStatus = "Shipped"
	OrderDelivered OrderStatus = "Delivered"
	OrderCancelled OrderStatus = "Cancelled"
)

// AllOrderStatuses is ordered along the fulfilment path, Cancelled last.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled}
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range AllOrderStatuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// step is the position on the fulfilment path; -1 for statuses off the path.
func (s OrderStatus) step() int {
	switch s {
	case OrderPending:
		return 0
	case OrderConfirmed:
		return 1
	case OrderShipped:
		return 2
	case OrderDelivered:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo allows forward moves along the fulfilment path (skipping is fine)
// and cancellation from any non-terminal status.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || s == next {
		return false
	}
	if next == OrderCancelled {
		return true
	}
	from, to := s.step(), next.step()
	return from >= 0 && to > from
}

// NonTerminalStatuses are the statuses an order may still leave.
func NonTerminalStatuses() []OrderStatus {
	return []OrderStatus{OrderPending, OrderConfirmed, OrderShipped}
}
