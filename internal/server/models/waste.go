package models

import (
	"math"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/common"
)

// Weights are per-category measurements in kilograms.
type Weights struct {
	Organic    float64 `json:"organic"`
	Recyclable float64 `json:"recyclable"`
	Hazardous  float64 `json:"hazardous"`
}

// MaxWeightKg caps a single category in one upload. Together with MaxRate it
// keeps RateTable.Reward well inside int64.
const MaxWeightKg = 10000

// Validate rejects negative, NaN, infinite and oversized weights.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Organic, w.Recyclable, w.Hazardous} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) || v > MaxWeightKg {
			return common.ErrInvalidWeights
		}
	}
	return nil
}

func (w Weights) Total() float64 {
	return w.Organic + w.Recyclable + w.Hazardous
}

// RateTable holds reward points per kilogram for each category.
type RateTable struct {
	Organic    int64 `json:"organic"`
	Recyclable int64 `json:"recyclable"`
	Hazardous  int64 `json:"hazardous"`
}

// MaxRate is the largest accepted points-per-kilogram rate.
const MaxRate = 1_000_000

// DefaultRates is the stock reward table.
var DefaultRates = RateTable{Organic: 10, Recyclable: 15, Hazardous: 5}

// Reward truncates each category's points to a whole number and sums them.
// w must already be valid.
func (r RateTable) Reward(w Weights) int64 {
	return int64(w.Organic*float64(r.Organic)) +
		int64(w.Recyclable*float64(r.Recyclable)) +
		int64(w.Hazardous*float64(r.Hazardous))
}

// WasteRecord is one accepted upload.
type WasteRecord struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	AccountID string    `json:"account_id"`
	Weights   Weights   `json:"weights"`
	Reward    int64     `json:"reward"`
	CreatedAt time.Time `json:"created_at"`
}

// RecyclableEntry is a buyer-facing view of an upload with recyclable content.
type RecyclableEntry struct {
	RecordID   string    `json:"waste_id"`
	Recyclable float64   `json:"recyclable_weight"`
	UserName   string    `json:"user_name"`
	UserEmail  string    `json:"user_email"`
	CreatedAt  time.Time `json:"timestamp"`
}

// MonthlyWeight is a recyclable total for one calendar month ("2006-01").
type MonthlyWeight struct {
	Month  string  `json:"month"`
	Weight float64 `json:"total_weight"`
}

// RecyclableStats summarises recyclable uploads for buyers.
type RecyclableStats struct {
	TotalWeight  float64         `json:"total_recyclable_weight"`
	TotalEntries int64           `json:"total_entries"`
	Monthly      []MonthlyWeight `json:"monthly_stats"`
}

// Totals aggregates weights over a set of records.
type Totals struct {
	Weights Weights `json:"weights"`
	Entries int64   `json:"total_entries"`
}

// Overview is the admin dashboard summary.
type Overview struct {
	Totals
	EndUsers int64 `json:"total_users"`
	Devices  int64 `json:"total_devices"`
}
