package domain

import (
	"github.com/shopspring/decimal"
)

// InventoryItem is a product record as held by the remote item store.
type InventoryItem struct {
	ItemID       string          `json:"itemId"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category,omitempty"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	CreatedAt    Timestamp       `json:"createdAt"`
	UpdatedAt    Timestamp       `json:"updatedAt"`
	SalesHistory []Sale          `json:"salesHistory,omitempty"`
}

// Value returns price multiplied by quantity.
func (i InventoryItem) Value() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Sale is a historical transaction embedded in an item. Read-only on this side.
type Sale struct {
	SaleID       string          `json:"saleId"`
	Date         Timestamp       `json:"date"`
	QuantitySold int             `json:"quantitySold"`
	PricePerItem decimal.Decimal `json:"pricePerItem"`
	Total        decimal.Decimal `json:"total"`
}

// ItemDraft is the payload for creating an item. The store assigns the
// identifier and timestamps.
type ItemDraft struct {
	Name        string
	Description string
	Quantity    int
	Price       decimal.Decimal
	Category    string
	ImageURL    string
}

// ItemPatch carries an item identifier and the fields to replace. Nil fields
// are left untouched by the store.
type ItemPatch struct {
	ItemID      string
	Name        *string
	Description *string
	Quantity    *int
	Price       *decimal.Decimal
	Category    *string
	ImageURL    *string
}

// PatchFromItem builds a patch that replaces every editable field of item.
func PatchFromItem(item InventoryItem) ItemPatch {
	return ItemPatch{
		ItemID:      item.ItemID,
		Name:        &item.Name,
		Description: &item.Description,
		Quantity:    &item.Quantity,
		Price:       &item.Price,
		Category:    &item.Category,
		ImageURL:    &item.ImageURL,
	}
}
