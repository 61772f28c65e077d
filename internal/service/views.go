package service

import (
	"context"

	"inventoflow/internal/analytics"
	"inventoflow/internal/domain"
)

// DashboardLowStockLimit caps the dashboard's low stock panel.
const DashboardLowStockLimit = 5

// DashboardView is everything the dashboard renders.
type DashboardView struct {
	Items      []domain.InventoryItem       `json:"-"`
	Summary    analytics.Summary            `json:"summary"`
	Categories []analytics.CategoryQuantity `json:"categories"`
	LowStock   []domain.InventoryItem       `json:"lowStock"`
}

// InventoryView is the filtered list with its selected item.
type InventoryView struct {
	Items      []domain.InventoryItem
	Filtered   []domain.InventoryItem
	Categories []string
	Query      string
	Category   string
	Selected   *domain.InventoryItem
}

// SalesReportView holds the sales table and its charts.
type SalesReportView struct {
	Query             string                      `json:"query"`
	Sales             []analytics.EnrichedSale    `json:"sales"`
	Totals            analytics.SalesTotals       `json:"totals"`
	RevenueOverTime   []analytics.DailyRevenue    `json:"revenueOverTime"`
	TopProducts       []analytics.ProductUnits    `json:"topProducts"`
	RevenueByCategory []analytics.CategoryRevenue `json:"revenueByCategory"`
}

func (s *InventoryService) Dashboard(ctx context.Context) (DashboardView, error) {
	items, err := s.Refresh(ctx)
	if err != nil {
		return DashboardView{}, err
	}
	return BuildDashboard(items), nil
}

func BuildDashboard(items []domain.InventoryItem) DashboardView {
	return DashboardView{
		Items:      items,
		Summary:    analytics.Summarize(items),
		Categories: analytics.CategoryBreakdown(items),
		LowStock:   analytics.LowStockItems(items, DashboardLowStockLimit),
	}
}

func (s *InventoryService) Inventory(ctx context.Context, query, category, selectedID string) (InventoryView, error) {
	items, err := s.Refresh(ctx)
	if err != nil {
		return InventoryView{}, err
	}
	return BuildInventory(items, query, category, selectedID), nil
}

// BuildInventory filters items and selects selectedID, falling back to the
// first filtered item.
func BuildInventory(items []domain.InventoryItem, query, category, selectedID string) InventoryView {
	if category == "" {
		category = analytics.AllCategories
	}
	view := InventoryView{
		Items:      items,
		Filtered:   analytics.Filter(items, query, category),
		Categories: analytics.Categories(items),
		Query:      query,
		Category:   category,
	}
	if selectedID != "" {
		if item, ok := analytics.FindItem(view.Filtered, selectedID); ok {
			view.Selected = &item
		}
	}
	if view.Selected == nil && len(view.Filtered) > 0 {
		first := view.Filtered[0]
		view.Selected = &first
	}
	return view
}

// SalesReport builds the report. Charts and totals cover every sale; only
// the table follows the search query.
func (s *InventoryService) SalesReport(ctx context.Context, query string) (SalesReportView, error) {
	items, err := s.Refresh(ctx)
	if err != nil {
		return SalesReportView{}, err
	}
	return BuildSalesReport(items, query), nil
}

func BuildSalesReport(items []domain.InventoryItem, query string) SalesReportView {
	all := analytics.FlattenSales(items)
	filtered := analytics.SearchSales(all, query)
	return SalesReportView{
		Query:             query,
		Sales:             filtered,
		Totals:            analytics.Totals(all),
		RevenueOverTime:   analytics.RevenueOverTime(all),
		TopProducts:       analytics.TopProducts(all, analytics.TopProductsLimit),
		RevenueByCategory: analytics.RevenueByCategory(all),
	}
}
