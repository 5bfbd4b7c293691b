package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderOpen       OrderStatus = "OPEN"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

type Priority string

const (
	PriorityRoutine Priority = "ROUTINE"
	PriorityASAP    Priority = "ASAP"
	PrioritySTAT    Priority = "STAT"
)

var bloodTypes = map[string]bool{
	"O-": true, "O+": true, "A-": true, "A+": true,
	"B-": true, "B+": true, "AB-": true, "AB+": true,
}

type Order struct {
	ID        string      `json:"id"`
	Number    string      `json:"number"`
	Facility  string      `json:"facility"`
	Priority  Priority    `json:"priority"`
	Status    OrderStatus `json:"status"`
	Items     []OrderItem `json:"items"`
	CreatedBy string      `json:"createdBy,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type OrderItem struct {
	ProductFamily string `json:"productFamily"`
	BloodType     string `json:"bloodType"`
	Quantity      int    `json:"quantity"`
}

func (o *Order) Validate() error {
	var errs []error
	if strings.TrimSpace(o.Facility) == "" {
		errs = append(errs, errors.New("facility: required"))
	}
	switch o.Priority {
	case PriorityRoutine, PriorityASAP, PrioritySTAT:
	default:
		errs = append(errs, fmt.Errorf("priority: unknown value %q", o.Priority))
	}
	if len(o.Items) == 0 {
		errs = append(errs, errors.New("items: must contain at least 1 item"))
	}
	for i, it := range o.Items {
		if strings.TrimSpace(it.ProductFamily) == "" {
			errs = append(errs, fmt.Errorf("items[%d].productFamily: required", i))
		}
		if !bloodTypes[it.BloodType] {
			errs = append(errs, fmt.Errorf("items[%d].bloodType: unknown value %q", i, it.BloodType))
		}
		if it.Quantity <= 0 {
			errs = append(errs, fmt.Errorf("items[%d].quantity: must be more than zero", i))
		}
	}
	return errors.Join(errs...)
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderOpen:       {OrderInProgress, OrderCancelled},
	OrderInProgress: {OrderCompleted, OrderCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderOpen, OrderInProgress, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
