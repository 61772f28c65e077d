// Package analytics derives dashboard and report view data from the item
// collection. Every function is pure and leaves its input untouched.
package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"inventoflow/internal/domain"
)

const (
	// LowStockThreshold is the exclusive upper bound for low stock.
	LowStockThreshold = 10

	// AllCategories matches every category in Filter.
	AllCategories = "All"

	// Uncategorized labels items without a category.
	Uncategorized = "Uncategorized"
)

// StockStatus classifies an item's quantity.
type StockStatus int

const (
	InStock StockStatus = iota
	LowStock
	OutOfStock
)

func (s StockStatus) String() string {
	switch s {
	case OutOfStock:
		return "Out of Stock"
	case LowStock:
		return "Low Stock"
	default:
		return "In Stock"
	}
}

// Classify returns the stock status for quantity.
func Classify(quantity int) StockStatus {
	switch {
	case quantity <= 0:
		return OutOfStock
	case quantity < LowStockThreshold:
		return LowStock
	default:
		return InStock
	}
}

// Summary holds the dashboard headline numbers.
type Summary struct {
	TotalItems      int             `json:"totalItems"`
	LowStockCount   int             `json:"lowStockCount"`
	OutOfStockCount int             `json:"outOfStockCount"`
	InStockCount    int             `json:"inStockCount"`
	TotalValue      decimal.Decimal `json:"totalValue"`
}

// Summarize computes counts per stock status and the total stock value.
func Summarize(items []domain.InventoryItem) Summary {
	s := Summary{TotalItems: len(items), TotalValue: decimal.Zero}
	for _, item := range items {
		switch Classify(item.Quantity) {
		case OutOfStock:
			s.OutOfStockCount++
		case LowStock:
			s.LowStockCount++
		default:
			s.InStockCount++
		}
		s.TotalValue = s.TotalValue.Add(item.Value())
	}
	return s
}

// CategoryQuantity is the summed quantity of one category.
type CategoryQuantity struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// CategoryOf returns the item category or Uncategorized.
func CategoryOf(category string) string {
	if category == "" {
		return Uncategorized
	}
	return category
}

// CategoryBreakdown sums quantities per category in first-encounter order.
func CategoryBreakdown(items []domain.InventoryItem) []CategoryQuantity {
	index := make(map[string]int)
	var out []CategoryQuantity
	for _, item := range items {
		name := CategoryOf(item.Category)
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, CategoryQuantity{Name: name})
		}
		out[i].Quantity += item.Quantity
	}
	return out
}

// Categories lists the distinct non-empty categories in first-encounter order.
func Categories(items []domain.InventoryItem) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		if item.Category == "" || seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		out = append(out, item.Category)
	}
	return out
}

// Filter keeps items in category (AllCategories or empty for any) whose
// name, description or id contains query case-insensitively. The result is
// ordered by last update, newest first.
func Filter(items []domain.InventoryItem, query, category string) []domain.InventoryItem {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.InventoryItem, 0, len(items))
	for _, item := range items {
		if category != "" && category != AllCategories && item.Category != category {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(item.Name), q) &&
			!strings.Contains(strings.ToLower(item.Description), q) &&
			!strings.Contains(strings.ToLower(item.ItemID), q) {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt.Time)
	})
	return out
}

// LowStockItems returns up to limit items classified as low stock, in input
// order.
func LowStockItems(items []domain.InventoryItem, limit int) []domain.InventoryItem {
	var out []domain.InventoryItem
	for _, item := range items {
		if len(out) == limit {
			break
		}
		if Classify(item.Quantity) == LowStock {
			out = append(out, item)
		}
	}
	return out
}

// FindItem returns the item with id.
func FindItem(items []domain.InventoryItem, id string) (domain.InventoryItem, bool) {
	for _, item := range items {
		if item.ItemID == id {
			return item, true
		}
	}
	return domain.InventoryItem{}, false
}
