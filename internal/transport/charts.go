package transport

import (
	"strconv"

	"github.com/shopspring/decimal"

	"inventoflow/internal/analytics"
)

// chartBar is one row of a horizontal bar chart. Width is a percentage of
// the largest value in the chart.
type chartBar struct {
	Label string
	Value string
	Width int
}

func widthOf(value, max decimal.Decimal) int {
	if !max.IsPositive() || !value.IsPositive() {
		return 0
	}
	return int(value.Div(max).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

func categoryBars(categories []analytics.CategoryQuantity) []chartBar {
	max := decimal.Zero
	for _, c := range categories {
		max = decimal.Max(max, decimal.NewFromInt(int64(c.Quantity)))
	}
	bars := make([]chartBar, 0, len(categories))
	for _, c := range categories {
		bars = append(bars, chartBar{
			Label: c.Name,
			Value: strconv.Itoa(c.Quantity),
			Width: widthOf(decimal.NewFromInt(int64(c.Quantity)), max),
		})
	}
	return bars
}

func revenueBars(days []analytics.DailyRevenue) []chartBar {
	max := decimal.Zero
	for _, d := range days {
		max = decimal.Max(max, d.Revenue)
	}
	bars := make([]chartBar, 0, len(days))
	for _, d := range days {
		bars = append(bars, chartBar{Label: d.Date, Value: formatMoney(d.Revenue), Width: widthOf(d.Revenue, max)})
	}
	return bars
}

func productBars(products []analytics.ProductUnits) []chartBar {
	max := decimal.Zero
	for _, p := range products {
		max = decimal.Max(max, decimal.NewFromInt(int64(p.UnitsSold)))
	}
	bars := make([]chartBar, 0, len(products))
	for _, p := range products {
		units := decimal.NewFromInt(int64(p.UnitsSold))
		bars = append(bars, chartBar{Label: p.Name, Value: strconv.Itoa(p.UnitsSold), Width: widthOf(units, max)})
	}
	return bars
}
