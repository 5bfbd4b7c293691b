package model

import (
	"sort"
	"time"
)

type ShipmentStatus string

const (
	ShipmentPicking ShipmentStatus = "PICKING"
	ShipmentPacked  ShipmentStatus = "PACKED"
	ShipmentShipped ShipmentStatus = "SHIPPED"
)

var shipmentRank = map[ShipmentStatus]int{
	ShipmentPicking: 1,
	ShipmentPacked:  2,
	ShipmentShipped: 3,
}

type Shipment struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"orderId"`
	Status    ShipmentStatus `json:"status"`
	Items     []PickItem     `json:"items"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// PickItem is one line of a shipment pick list.
type PickItem struct {
	ProductFamily string `json:"productFamily"`
	BloodType     string `json:"bloodType"`
	Quantity      int    `json:"quantity"`
}

func (s ShipmentStatus) Valid() bool {
	return shipmentRank[s] > 0
}

// CanAdvance allows shipments to move forward only, one or more steps.
func CanAdvance(from, to ShipmentStatus) bool {
	return to.Valid() && shipmentRank[to] > shipmentRank[from]
}

// BuildPickList merges order items by product family and blood type.
func BuildPickList(items []OrderItem) []PickItem {
	type key struct{ family, bloodType string }
	totals := make(map[key]int)
	for _, it := range items {
		totals[key{it.ProductFamily, it.BloodType}] += it.Quantity
	}

	out := make([]PickItem, 0, len(totals))
	for k, qty := range totals {
		if qty <= 0 {
			continue
		}
		out = append(out, PickItem{ProductFamily: k.family, BloodType: k.bloodType, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductFamily != out[j].ProductFamily {
			return out[i].ProductFamily < out[j].ProductFamily
		}
		return out[i].BloodType < out[j].BloodType
	})
	return out
}
