package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"inventoflow/internal/alerts"
	"inventoflow/internal/analytics"
	"inventoflow/internal/domain"
	"inventoflow/internal/itemstore"
)

// ErrNegativeStock rejects a stock adjustment whose result would be below zero.
var ErrNegativeStock = errors.New("quantity cannot be negative")

// ItemStore is the remote item collection.
type ItemStore interface {
	ListItems(ctx context.Context) ([]domain.InventoryItem, error)
	CreateItem(ctx context.Context, draft domain.ItemDraft) (itemstore.Result, error)
	UpdateItem(ctx context.Context, patch domain.ItemPatch) (itemstore.Result, error)
	DeleteItem(ctx context.Context, itemID string) (itemstore.Result, error)
}

// InventoryService runs the screen-level inventory operations. Every read
// refetches the whole collection.
type InventoryService struct {
	store     ItemStore
	publisher alerts.Publisher
	logger    *zap.Logger
}

func NewInventoryService(store ItemStore, publisher alerts.Publisher, logger *zap.Logger) *InventoryService {
	return &InventoryService{store: store, publisher: publisher, logger: logger}
}

// Refresh fetches the current item collection.
func (s *InventoryService) Refresh(ctx context.Context) ([]domain.InventoryItem, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Inventory refreshed", zap.Int("items", len(items)))
	return items, nil
}

func (s *InventoryService) Create(ctx context.Context, draft domain.ItemDraft) (itemstore.Result, error) {
	res, err := s.store.CreateItem(ctx, draft)
	if err != nil {
		return nil, err
	}
	itemID := res.ItemID()
	s.logger.Info("Item created", zap.String("name", draft.Name), zap.String("item_id", itemID))
	s.checkLowStock(ctx, itemID, draft.Name, draft.Quantity)
	return res, nil
}

// Update replaces every editable field of item.
func (s *InventoryService) Update(ctx context.Context, item domain.InventoryItem) (itemstore.Result, error) {
	res, err := s.store.UpdateItem(ctx, domain.PatchFromItem(item))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Item updated", zap.String("item_id", item.ItemID))
	s.checkLowStock(ctx, item.ItemID, item.Name, item.Quantity)
	return res, nil
}

// AdjustStock applies a signed change to the item's quantity. A negative
// result is rejected without contacting the store.
func (s *InventoryService) AdjustStock(ctx context.Context, item domain.InventoryItem, change int) (int, error) {
	quantity := item.Quantity + change
	if quantity < 0 {
		return item.Quantity, ErrNegativeStock
	}

	_, err := s.store.UpdateItem(ctx, domain.ItemPatch{ItemID: item.ItemID, Quantity: &quantity})
	if err != nil {
		return item.Quantity, err
	}
	s.logger.Info("Stock adjusted",
		zap.String("item_id", item.ItemID),
		zap.Int("change", change),
		zap.Int("quantity", quantity),
	)
	s.checkLowStock(ctx, item.ItemID, item.Name, quantity)
	return quantity, nil
}

func (s *InventoryService) Delete(ctx context.Context, itemID string) error {
	if _, err := s.store.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	s.logger.Info("Item deleted", zap.String("item_id", itemID))
	return nil
}

// Find refreshes the collection and returns the item with itemID.
func (s *InventoryService) Find(ctx context.Context, itemID string) (domain.InventoryItem, []domain.InventoryItem, error) {
	items, err := s.Refresh(ctx)
	if err != nil {
		return domain.InventoryItem{}, nil, err
	}
	item, ok := analytics.FindItem(items, itemID)
	if !ok {
		return domain.InventoryItem{}, items, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return item, items, nil
}

// ErrItemNotFound is returned by Find for an unknown identifier.
var ErrItemNotFound = errors.New("item not found")

func (s *InventoryService) checkLowStock(ctx context.Context, itemID, name string, quantity int) {
	if quantity >= analytics.LowStockThreshold {
		return
	}
	alert := alerts.NewLowStockAlert(itemID, name, quantity, analytics.LowStockThreshold)
	if err := s.publisher.PublishLowStock(ctx, alert); err != nil {
		s.logger.Warn("Low stock alert not delivered", zap.String("item", name), zap.Error(err))
	}
}
