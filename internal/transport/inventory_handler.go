package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"inventoflow/internal/domain"
	"inventoflow/internal/itemstore"
	"inventoflow/internal/middleware"
	"inventoflow/internal/report"
	"inventoflow/internal/service"
	"inventoflow/internal/session"
)

// Advisor answers questions about the inventory.
type Advisor interface {
	Ask(ctx context.Context, items []domain.InventoryItem, question string) string
}

// ItemRequest is the add and edit item form.
type ItemRequest struct {
	Name        string          `validate:"required,max=200" label:"Name"`
	Description string          `validate:"max=2000" label:"Description"`
	Quantity    int             `validate:"gte=0" label:"Quantity"`
	Category    string          `validate:"max=100" label:"Category"`
	ImageURL    string          `validate:"omitempty,url" label:"Image URL"`
	Price       decimal.Decimal `validate:"-"`
}

// StockRequest is the stock adjustment form.
type StockRequest struct {
	Change int `validate:"ne=0" label:"Change"`
}

// InsightRequest is a question for the insight assistant.
type InsightRequest struct {
	Question string `validate:"required,max=1000" label:"Question"`
}

// SalesQuery is the sales report search.
type SalesQuery struct {
	Q string `validate:"max=200" label:"Search"`
}

// itemFormPage is what item_form.gohtml renders. Numbers stay as typed so
// a rejected form comes back unchanged.
type itemFormPage struct {
	Action      string
	ItemID      string
	Name        string
	Description string
	Quantity    string
	Price       string
	Category    string
	ImageURL    string
}

type dashboardPage struct {
	View         service.DashboardView
	CategoryBars []chartBar
	Chat         []session.ChatMessage
}

type inventoryPage struct {
	View service.InventoryView
}

type salesReportPage struct {
	View        service.SalesReportView
	RevenueBars []chartBar
	ProductBars []chartBar
}

// InventoryHandler serves the authenticated application pages and the JSON
// chart endpoints.
type InventoryHandler struct {
	inventory *service.InventoryService
	advisor   Advisor
	renderer  *Renderer
	logger    *zap.Logger
}

func NewInventoryHandler(inventory *service.InventoryService, advisor Advisor, renderer *Renderer, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventory: inventory,
		advisor:   advisor,
		renderer:  renderer,
		logger:    logger,
	}
}

// RegisterRoutes registers the application pages and JSON endpoints behind
// requireAuth. insightLimit wraps the insight question endpoint.
func (h *InventoryHandler) RegisterRoutes(r chi.Router, requireAuth, insightLimit func(http.Handler) http.Handler) {
	r.Route("/app", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/dashboard", h.Dashboard)
		r.With(insightLimit).Post("/dashboard/insights", h.AskInsight)

		r.Get("/inventory", h.Inventory)
		r.Get("/inventory/{itemID}/edit", h.EditItemPage)
		r.Post("/inventory/{itemID}/edit", h.EditItem)
		r.Post("/inventory/{itemID}/stock", h.AdjustStock)
		r.Post("/inventory/{itemID}/delete", h.DeleteItem)

		r.Get("/add-item", h.AddItemPage)
		r.Post("/add-item", h.AddItem)

		r.Get("/sales-report", h.SalesReport)
		r.Get("/sales-report/export.xlsx", h.ExportSales)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/dashboard", h.DashboardJSON)
		r.Get("/sales-report", h.SalesReportJSON)
	})
}

func (h *InventoryHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	view, err := h.inventory.Dashboard(r.Context())
	page := Page{Title: "Dashboard", Nav: "dashboard"}
	if err != nil {
		page.Error = h.failureMessage("Failed to fetch dashboard data.", err)
	}
	page.Content = dashboardPage{
		View:         view,
		CategoryBars: categoryBars(view.Categories),
		Chat:         sess.Chat,
	}
	h.renderer.Render(w, r, statusFor(err), "dashboard", page)
}

// AskInsight records the question and the assistant's reply in the session
// transcript. The reply is computed against a fresh copy of the inventory.
func (h *InventoryHandler) AskInsight(w http.ResponseWriter, r *http.Request) {
	req := InsightRequest{Question: formValue(r, "question")}
	sess := mustSession(r)
	if err := middleware.ValidateRequest(req); err != nil {
		sess.Flash = middleware.FirstValidationMessage(err)
		http.Redirect(w, r, "/app/dashboard#insights", http.StatusSeeOther)
		return
	}

	now := time.Now().UTC()
	sess.AppendChat(session.ChatMessage{Sender: session.SenderUser, Text: req.Question, At: now})

	items, err := h.inventory.Refresh(r.Context())
	if err != nil {
		h.logger.Warn("Inventory unavailable for insight question", zap.Error(err))
		items = nil
	}
	answer := h.advisor.Ask(r.Context(), items, req.Question)
	sess.AppendChat(session.ChatMessage{Sender: session.SenderAssistant, Text: answer, At: time.Now().UTC()})

	http.Redirect(w, r, "/app/dashboard#insights", http.StatusSeeOther)
}

// InsightLimited answers a rate limited insight question inside the chat.
func (h *InventoryHandler) InsightLimited(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	sess.AppendChat(session.ChatMessage{
		Sender: session.SenderAssistant,
		Text:   "You are asking questions too quickly. Please wait a moment and try again.",
		At:     time.Now().UTC(),
	})
	http.Redirect(w, r, "/app/dashboard#insights", http.StatusSeeOther)
}

func (h *InventoryHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	h.renderInventory(w, r, http.StatusOK, "")
}

// renderInventory re-fetches and renders the inventory page with message
// as its error. A failed fetch replaces status and message.
func (h *InventoryHandler) renderInventory(w http.ResponseWriter, r *http.Request, status int, message string) {
	q := r.URL.Query()
	selected := q.Get("selected")
	if selected == "" {
		selected = chi.URLParam(r, "itemID")
	}

	view, err := h.inventory.Inventory(r.Context(), q.Get("q"), q.Get("category"), selected)
	if err != nil {
		status = statusFor(err)
		message = h.failureMessage("Failed to fetch inventory items.", err)
	}
	page := Page{Title: "Inventory", Nav: "inventory", Error: message, Content: inventoryPage{View: view}}
	h.renderer.Render(w, r, status, "inventory", page)
}

func (h *InventoryHandler) EditItemPage(w http.ResponseWriter, r *http.Request) {
	item, _, err := h.inventory.Find(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		h.renderInventory(w, r, statusFor(err), h.failureMessage("Failed to fetch item details.", err))
		return
	}
	form := itemFormPage{
		Action:      "/app/inventory/" + url.PathEscape(item.ItemID) + "/edit",
		ItemID:      item.ItemID,
		Name:        item.Name,
		Description: item.Description,
		Quantity:    strconv.Itoa(item.Quantity),
		Price:       item.Price.String(),
		Category:    item.Category,
		ImageURL:    item.ImageURL,
	}
	h.renderer.Render(w, r, http.StatusOK, "item_form", Page{Title: "Edit Item", Nav: "inventory", Content: form})
}

// EditItem replaces the item's editable fields. The current item is
// fetched first so the update carries its identifier.
func (h *InventoryHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	form := itemFormFromRequest(r)
	form.Action = "/app/inventory/" + url.PathEscape(itemID) + "/edit"
	form.ItemID = itemID

	req, message := parseItemRequest(form)
	if message != "" {
		h.renderItemForm(w, r, http.StatusBadRequest, "Edit Item", form, message)
		return
	}

	item, _, err := h.inventory.Find(r.Context(), itemID)
	if err != nil {
		h.renderItemForm(w, r, statusFor(err), "Edit Item", form, h.failureMessage("Failed to update item.", err))
		return
	}
	item.Name = req.Name
	item.Description = req.Description
	item.Quantity = req.Quantity
	item.Price = req.Price
	item.Category = req.Category
	item.ImageURL = req.ImageURL

	if _, err := h.inventory.Update(r.Context(), item); err != nil {
		h.renderItemForm(w, r, statusFor(err), "Edit Item", form, h.failureMessage("Failed to update item.", err))
		return
	}

	mustSession(r).Flash = "Item updated successfully."
	http.Redirect(w, r, "/app/inventory?selected="+url.QueryEscape(itemID), http.StatusSeeOther)
}

func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	change, err := strconv.Atoi(formValue(r, "change"))
	if err != nil {
		h.renderInventory(w, r, http.StatusBadRequest, "Change must be a whole number.")
		return
	}
	if err := middleware.ValidateRequest(StockRequest{Change: change}); err != nil {
		h.renderInventory(w, r, http.StatusBadRequest, middleware.FirstValidationMessage(err))
		return
	}

	item, _, err := h.inventory.Find(r.Context(), itemID)
	if err != nil {
		h.renderInventory(w, r, statusFor(err), h.failureMessage("Failed to update item.", err))
		return
	}

	quantity, err := h.inventory.AdjustStock(r.Context(), item, change)
	if err != nil {
		h.renderInventory(w, r, statusFor(err), h.failureMessage("Failed to update item.", err))
		return
	}

	mustSession(r).Flash = fmt.Sprintf("Stock for %s is now %d.", item.Name, quantity)
	http.Redirect(w, r, "/app/inventory?selected="+url.QueryEscape(itemID), http.StatusSeeOther)
}

func (h *InventoryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.Delete(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		h.renderInventory(w, r, statusFor(err), h.failureMessage("Failed to delete item.", err))
		return
	}
	mustSession(r).Flash = "Item deleted successfully."
	http.Redirect(w, r, "/app/inventory", http.StatusSeeOther)
}

func (h *InventoryHandler) AddItemPage(w http.ResponseWriter, r *http.Request) {
	form := itemFormPage{Action: "/app/add-item", Quantity: "0", Price: "0"}
	h.renderer.Render(w, r, http.StatusOK, "item_form", Page{Title: "Add Item", Nav: "add-item", Content: form})
}

func (h *InventoryHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	form := itemFormFromRequest(r)
	form.Action = "/app/add-item"

	req, message := parseItemRequest(form)
	if message != "" {
		h.renderItemForm(w, r, http.StatusBadRequest, "Add Item", form, message)
		return
	}

	res, err := h.inventory.Create(r.Context(), domain.ItemDraft{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		h.renderItemForm(w, r, statusFor(err), "Add Item", form, h.failureMessage("Failed to create item. Please try again.", err))
		return
	}

	flash := res.Message()
	if flash == "" {
		flash = "Item created successfully."
	}
	mustSession(r).Flash = flash
	http.Redirect(w, r, "/app/inventory", http.StatusSeeOther)
}

func (h *InventoryHandler) renderItemForm(w http.ResponseWriter, r *http.Request, status int, title string, form itemFormPage, message string) {
	nav := "inventory"
	if form.ItemID == "" {
		nav = "add-item"
	}
	h.renderer.Render(w, r, status, "item_form", Page{Title: title, Nav: nav, Error: message, Content: form})
}

func (h *InventoryHandler) SalesReport(w http.ResponseWriter, r *http.Request) {
	view, err := h.inventory.SalesReport(r.Context(), r.URL.Query().Get("q"))
	page := Page{Title: "Sales Report", Nav: "sales-report"}
	if err != nil {
		page.Error = h.failureMessage("Failed to fetch sales data.", err)
	}
	page.Content = salesReportPage{
		View:        view,
		RevenueBars: revenueBars(view.RevenueOverTime),
		ProductBars: productBars(view.TopProducts),
	}
	h.renderer.Render(w, r, statusFor(err), "sales_report", page)
}

// ExportSales downloads the searched sales table as a workbook.
func (h *InventoryHandler) ExportSales(w http.ResponseWriter, r *http.Request) {
	view, err := h.inventory.SalesReport(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		middleware.RespondWithError(w, statusFor(err), h.failureMessage("Failed to fetch sales data.", err))
		return
	}

	var buf bytes.Buffer
	if err := report.WriteSalesWorkbook(&buf, view.Sales); err != nil {
		h.logger.Error("Failed to build sales workbook", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	filename := fmt.Sprintf("sales-report-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *InventoryHandler) DashboardJSON(w http.ResponseWriter, r *http.Request) {
	view, err := h.inventory.Dashboard(r.Context())
	if err != nil {
		middleware.RespondWithError(w, statusFor(err), h.failureMessage("Failed to fetch dashboard data.", err))
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

func (h *InventoryHandler) SalesReportJSON(w http.ResponseWriter, r *http.Request) {
	query := SalesQuery{Q: strings.TrimSpace(r.URL.Query().Get("q"))}
	if err := middleware.ValidateRequest(query); err != nil {
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return
	}

	view, err := h.inventory.SalesReport(r.Context(), query.Q)
	if err != nil {
		middleware.RespondWithError(w, statusFor(err), h.failureMessage("Failed to fetch sales data.", err))
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// failureMessage turns a service error into the text shown on the page.
// Remote failures keep the store's message after the screen's summary.
func (h *InventoryHandler) failureMessage(summary string, err error) string {
	var remoteErr *itemstore.RemoteError
	var formatErr *itemstore.FormatError
	switch {
	case errors.Is(err, service.ErrNegativeStock):
		return "Quantity cannot be negative."
	case errors.Is(err, service.ErrItemNotFound):
		return "Item not found."
	case errors.Is(err, itemstore.ErrMissingItemID):
		return "Cannot update: item identifier is missing."
	case errors.As(err, &remoteErr):
		h.logger.Warn("Item store request failed", zap.Error(err))
		if remoteErr.Message != "" {
			return summary + " " + remoteErr.Message
		}
		return summary
	case errors.As(err, &formatErr):
		h.logger.Error("Item store returned an unexpected response", zap.Error(err))
		return summary
	default:
		h.logger.Error("Request failed", zap.Error(err))
		return summary
	}
}

// statusFor maps a service error to the page's status code.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrNegativeStock), errors.Is(err, itemstore.ErrMissingItemID):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrItemNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func itemFormFromRequest(r *http.Request) itemFormPage {
	return itemFormPage{
		Name:        formValue(r, "name"),
		Description: formValue(r, "description"),
		Quantity:    formValue(r, "quantity"),
		Price:       formValue(r, "price"),
		Category:    formValue(r, "category"),
		ImageURL:    formValue(r, "image_url"),
	}
}

// parseItemRequest converts and validates the item form. It returns the
// first problem as a user-facing message.
func parseItemRequest(form itemFormPage) (ItemRequest, string) {
	req := ItemRequest{
		Name:        form.Name,
		Description: form.Description,
		Category:    form.Category,
		ImageURL:    form.ImageURL,
	}

	quantity, err := strconv.Atoi(form.Quantity)
	if err != nil {
		return req, "Quantity must be a whole number."
	}
	req.Quantity = quantity

	price, err := decimal.NewFromString(form.Price)
	if err != nil {
		return req, "Price must be a number."
	}
	if price.IsNegative() {
		return req, "Price cannot be negative."
	}
	req.Price = price

	if err := middleware.ValidateRequest(req); err != nil {
		return req, middleware.FirstValidationMessage(err)
	}
	return req, ""
}
