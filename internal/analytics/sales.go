package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"inventoflow/internal/domain"
)

// TopProductsLimit caps TopProducts on the sales report.
const TopProductsLimit = 5

// EnrichedSale is a sale annotated with the item it belongs to.
type EnrichedSale struct {
	domain.Sale
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Category string `json:"category"`
}

// FlattenSales expands every item's sales history, newest sale first.
func FlattenSales(items []domain.InventoryItem) []EnrichedSale {
	var out []EnrichedSale
	for _, item := range items {
		for _, sale := range item.SalesHistory {
			out = append(out, EnrichedSale{
				Sale:     sale,
				ItemID:   item.ItemID,
				ItemName: item.Name,
				Category: CategoryOf(item.Category),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out
}

// SearchSales keeps sales whose item name or category contains query,
// ignoring case.
func SearchSales(sales []EnrichedSale, query string) []EnrichedSale {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return sales
	}
	var out []EnrichedSale
	for _, s := range sales {
		if strings.Contains(strings.ToLower(s.ItemName), q) ||
			strings.Contains(strings.ToLower(s.Category), q) {
			out = append(out, s)
		}
	}
	return out
}

// SalesTotals aggregates a set of sales.
type SalesTotals struct {
	Revenue      decimal.Decimal `json:"revenue"`
	UnitsSold    int             `json:"unitsSold"`
	Transactions int             `json:"transactions"`
}

// Totals sums revenue and units over sales.
func Totals(sales []EnrichedSale) SalesTotals {
	t := SalesTotals{Revenue: decimal.Zero, Transactions: len(sales)}
	for _, s := range sales {
		t.Revenue = t.Revenue.Add(s.Total)
		t.UnitsSold += s.QuantitySold
	}
	return t
}

// DailyRevenue is the revenue of one UTC calendar date.
type DailyRevenue struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// RevenueOverTime sums sale totals per UTC date, oldest date first.
func RevenueOverTime(sales []EnrichedSale) []DailyRevenue {
	byDate := make(map[string]decimal.Decimal)
	for _, s := range sales {
		day := s.Date.UTC().Format("2006-01-02")
		byDate[day] = byDate[day].Add(s.Total)
	}
	out := make([]DailyRevenue, 0, len(byDate))
	for day, revenue := range byDate {
		out = append(out, DailyRevenue{Date: day, Revenue: revenue})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ProductUnits is the number of units sold for one item name.
type ProductUnits struct {
	Name      string `json:"name"`
	UnitsSold int    `json:"unitsSold"`
}

// TopProducts ranks item names by units sold and keeps the first limit.
// Ties keep first-encounter order.
func TopProducts(sales []EnrichedSale, limit int) []ProductUnits {
	index := make(map[string]int)
	var out []ProductUnits
	for _, s := range sales {
		i, ok := index[s.ItemName]
		if !ok {
			i = len(out)
			index[s.ItemName] = i
			out = append(out, ProductUnits{Name: s.ItemName})
		}
		out[i].UnitsSold += s.QuantitySold
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UnitsSold > out[j].UnitsSold })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CategoryRevenue is one slice of the revenue-by-category chart.
type CategoryRevenue struct {
	Name    string          `json:"name"`
	Revenue decimal.Decimal `json:"revenue"`
	Share   float64         `json:"share"`
}

// RevenueByCategory sums sale totals per category, largest first, and fills
// in each category's share of the overall revenue.
func RevenueByCategory(sales []EnrichedSale) []CategoryRevenue {
	index := make(map[string]int)
	var out []CategoryRevenue
	total := decimal.Zero
	for _, s := range sales {
		name := CategoryOf(s.Category)
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, CategoryRevenue{Name: name, Revenue: decimal.Zero})
		}
		out[i].Revenue = out[i].Revenue.Add(s.Total)
		total = total.Add(s.Total)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue.GreaterThan(out[j].Revenue) })
	if total.IsPositive() {
		for i := range out {
			out[i].Share = out[i].Revenue.Div(total).InexactFloat64()
		}
	}
	return out
}
