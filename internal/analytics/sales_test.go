package analytics

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"inventoflow/internal/domain"
)

func sale(id string, date time.Time, qty int, total int64) domain.Sale {
	return domain.Sale{
		SaleID:       id,
		Date:         domain.NewTimestamp(date),
		QuantitySold: qty,
		PricePerItem: decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(qty))),
		Total:        decimal.NewFromInt(total),
	}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 10, 0, 0, 0, time.UTC)
}

func TestRevenueOverTime_Scenario(t *testing.T) {
	items := []domain.InventoryItem{
		{ItemID: "1", Name: "Lamp", Category: "Home", SalesHistory: []domain.Sale{
			sale("s1", day(1), 1, 100),
			sale("s2", day(1).Add(3*time.Hour), 1, 50),
		}},
		{ItemID: "2", Name: "Mug", SalesHistory: []domain.Sale{
			sale("s3", day(2), 2, 20),
		}},
	}

	sales := FlattenSales(items)
	got := RevenueOverTime(sales)

	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %v", got)
	}
	if got[0].Date != "2024-01-01" || !got[0].Revenue.Equal(decimal.NewFromInt(150)) {
		t.Errorf("day 1: %+v", got[0])
	}
	if got[1].Date != "2024-01-02" || !got[1].Revenue.Equal(decimal.NewFromInt(20)) {
		t.Errorf("day 2: %+v", got[1])
	}
	if totals := Totals(sales); !totals.Revenue.Equal(decimal.NewFromInt(170)) || totals.Transactions != 3 || totals.UnitsSold != 4 {
		t.Errorf("totals: %+v", totals)
	}
}

func TestFlattenSales(t *testing.T) {
	items := []domain.InventoryItem{
		{ItemID: "1", Name: "Lamp", Category: "Home", SalesHistory: []domain.Sale{sale("s1", day(3), 1, 10)}},
		{ItemID: "2", Name: "Mug", SalesHistory: []domain.Sale{sale("s2", day(5), 1, 10), sale("s3", day(1), 1, 10)}},
		{ItemID: "3", Name: "Unsold"},
	}

	got := FlattenSales(items)
	if len(got) != 3 {
		t.Fatalf("expected 3 sales, got %d", len(got))
	}
	if got[0].SaleID != "s2" || got[1].SaleID != "s1" || got[2].SaleID != "s3" {
		t.Errorf("not newest first: %s %s %s", got[0].SaleID, got[1].SaleID, got[2].SaleID)
	}
	if got[0].Category != Uncategorized || got[0].ItemName != "Mug" || got[0].ItemID != "2" {
		t.Errorf("sale not enriched: %+v", got[0])
	}
}

func TestSearchSales(t *testing.T) {
	sales := []EnrichedSale{
		{ItemName: "Desk Lamp", Category: "Home"},
		{ItemName: "Mug", Category: "Kitchen"},
	}
	if got := SearchSales(sales, "lamp"); len(got) != 1 || got[0].ItemName != "Desk Lamp" {
		t.Errorf("name search: %v", got)
	}
	if got := SearchSales(sales, "KITCH"); len(got) != 1 || got[0].ItemName != "Mug" {
		t.Errorf("category search: %v", got)
	}
	if got := SearchSales(sales, " "); len(got) != 2 {
		t.Errorf("blank search should keep everything: %v", got)
	}
}

func TestTopProducts_TiesKeepOrder(t *testing.T) {
	sales := []EnrichedSale{
		{ItemName: "A", Sale: domain.Sale{QuantitySold: 3}},
		{ItemName: "B", Sale: domain.Sale{QuantitySold: 5}},
		{ItemName: "C", Sale: domain.Sale{QuantitySold: 3}},
		{ItemName: "A", Sale: domain.Sale{QuantitySold: 1}},
	}
	got := TopProducts(sales, TopProductsLimit)
	want := []ProductUnits{{"B", 5}, {"A", 4}, {"C", 3}}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rank %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRevenueByCategory(t *testing.T) {
	sales := []EnrichedSale{
		{Category: "Home", Sale: domain.Sale{Total: decimal.NewFromInt(25)}},
		{Category: "Kitchen", Sale: domain.Sale{Total: decimal.NewFromInt(75)}},
	}
	got := RevenueByCategory(sales)
	if len(got) != 2 || got[0].Name != "Kitchen" || got[0].Share != 0.75 || got[1].Share != 0.25 {
		t.Fatalf("unexpected slices: %+v", got)
	}
	if empty := RevenueByCategory(nil); len(empty) != 0 {
		t.Fatalf("expected no slices, got %v", empty)
	}
}

func genSales() gopter.Gen {
	return gen.SliceOf(gen.Struct(reflectSaleInput, map[string]gopter.Gen{
		"Day":   gen.IntRange(1, 28),
		"Qty":   gen.IntRange(1, 20),
		"Total": gen.IntRange(0, 10000),
		"Name":  gen.OneConstOf("Lamp", "Mug", "Desk", "Chair", "Rug", "Vase", "Pen"),
	}))
}

type saleInput struct {
	Day   int
	Qty   int
	Total int
	Name  string
}

var reflectSaleInput = reflect.TypeOf(saleInput{})

func toSales(inputs []saleInput) []EnrichedSale {
	out := make([]EnrichedSale, len(inputs))
	for i, in := range inputs {
		out[i] = EnrichedSale{
			Sale:     sale(fmt.Sprintf("s%d", i), day(in.Day), in.Qty, int64(in.Total)),
			ItemName: in.Name,
			Category: in.Name[:1],
		}
	}
	return out
}

// Feature: inventory-console, Property 5: Revenue series is ordered and sums to total revenue
func TestProperty_RevenueSeriesOrderedAndComplete(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("dates ascend and revenues sum to the total", prop.ForAll(
		func(inputs []saleInput) bool {
			sales := toSales(inputs)
			series := RevenueOverTime(sales)
			sum := decimal.Zero
			for i, point := range series {
				if i > 0 && series[i-1].Date >= point.Date {
					return false
				}
				sum = sum.Add(point.Revenue)
			}
			return sum.Equal(Totals(sales).Revenue)
		},
		genSales(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: inventory-console, Property 6: Top products are bounded, sorted and drawn from the input
func TestProperty_TopProductsBoundedAndSorted(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("at most five distinct names in descending order", prop.ForAll(
		func(inputs []saleInput) bool {
			sales := toSales(inputs)
			top := TopProducts(sales, TopProductsLimit)
			if len(top) > TopProductsLimit {
				return false
			}
			names := make(map[string]bool)
			for _, s := range sales {
				names[s.ItemName] = true
			}
			seen := make(map[string]bool)
			for i, p := range top {
				if !names[p.Name] || seen[p.Name] {
					return false
				}
				seen[p.Name] = true
				if i > 0 && top[i-1].UnitsSold < p.UnitsSold {
					return false
				}
			}
			return true
		},
		genSales(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: inventory-console, Property 7: Category shares sum to one
func TestProperty_CategorySharesSumToOne(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("shares of a positive revenue add up to 1", prop.ForAll(
		func(inputs []saleInput) bool {
			sales := toSales(inputs)
			slices := RevenueByCategory(sales)
			if !Totals(sales).Revenue.IsPositive() {
				return true
			}
			total := 0.0
			for _, s := range slices {
				total += s.Share
			}
			return total > 0.999999 && total < 1.000001
		},
		genSales(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
