// Package itemstore is the HTTP client for the remote inventory item store.
package itemstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"inventoflow/internal/domain"
)

// Result is a parsed mutation response, returned as the store sent it.
type Result map[string]any

// Message returns the "message" field of the result, if any.
func (r Result) Message() string {
	msg, _ := r["message"].(string)
	return msg
}

// ItemID returns the identifier of the item a mutation touched. The store
// reports it either at the top level or inside the echoed "item" object.
func (r Result) ItemID() string {
	if id, ok := r["itemId"].(string); ok && id != "" {
		return id
	}
	if item, ok := r["item"].(map[string]any); ok {
		id, _ := item["itemId"].(string)
		return id
	}
	return ""
}

// TokenFunc returns the bearer token for the caller of ctx, if it holds a
// valid credential.
type TokenFunc func(ctx context.Context) (string, bool)

// Client talks to the item store's /items resource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenFunc
	logger     *zap.Logger
}

// NewClient creates a client for baseURL. token may be nil, in which case
// every request is sent unauthenticated.
func NewClient(baseURL string, httpClient *http.Client, token TokenFunc, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// ListItems fetches every item in the store.
func (c *Client) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	const op = "list items"

	body, err := c.do(ctx, op, http.MethodGet, c.baseURL+"/items", nil)
	if err != nil {
		return nil, err
	}
	return decodeItems(op, body)
}

// CreateItem stores a new item.
func (c *Client) CreateItem(ctx context.Context, draft domain.ItemDraft) (Result, error) {
	const op = "create item"

	payload := itemPayload{
		Name:        &draft.Name,
		Description: &draft.Description,
		Quantity:    &draft.Quantity,
		Price:       number(draft.Price.String()),
		Category:    &draft.Category,
		ImageURL:    &draft.ImageURL,
	}
	body, err := c.do(ctx, op, http.MethodPost, c.baseURL+"/items", payload)
	if err != nil {
		return nil, err
	}
	return parseResult(body), nil
}

// UpdateItem replaces the fields set in patch. The identifier is required.
func (c *Client) UpdateItem(ctx context.Context, patch domain.ItemPatch) (Result, error) {
	const op = "update item"

	if patch.ItemID == "" {
		return nil, &RemoteError{Op: op, Message: ErrMissingItemID.Error(), Err: ErrMissingItemID}
	}
	payload := itemPayload{
		ItemID:      patch.ItemID,
		Name:        patch.Name,
		Description: patch.Description,
		Quantity:    patch.Quantity,
		Category:    patch.Category,
		ImageURL:    patch.ImageURL,
	}
	if patch.Price != nil {
		payload.Price = number(patch.Price.String())
	}
	body, err := c.do(ctx, op, http.MethodPut, c.baseURL+"/items", payload)
	if err != nil {
		return nil, err
	}
	return parseResult(body), nil
}

// DeleteItem removes the item with itemID.
func (c *Client) DeleteItem(ctx context.Context, itemID string) (Result, error) {
	const op = "delete item"

	target := c.baseURL + "/items?" + url.Values{"itemId": {itemID}}.Encode()
	body, err := c.do(ctx, op, http.MethodDelete, target, nil)
	if err != nil {
		return nil, err
	}
	return parseResult(body), nil
}

type itemPayload struct {
	ItemID      string       `json:"itemId,omitempty"`
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Quantity    *int         `json:"quantity,omitempty"`
	Price       *json.Number `json:"price,omitempty"`
	Category    *string      `json:"category,omitempty"`
	ImageURL    *string      `json:"imageUrl,omitempty"`
}

func number(s string) *json.Number {
	n := json.Number(s)
	return &n
}

func (c *Client) do(ctx context.Context, op, method, target string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &RemoteError{Op: op, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if token, ok := c.token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Item store request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, &RemoteError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remoteErr := &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body, resp.StatusCode)}
		c.logger.Warn("Item store rejected request",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", remoteErr.Message),
		)
		return nil, remoteErr
	}

	c.logger.Debug("Item store request succeeded",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

// errorMessage prefers the body's message field, then the body itself, then
// the status text.
func errorMessage(body []byte, status int) string {
	var parsed any
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &parsed) != nil {
		return http.StatusText(status)
	}
	if obj, ok := parsed.(map[string]any); ok {
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	compact, err := json.Marshal(parsed)
	if err != nil {
		return http.StatusText(status)
	}
	return string(compact)
}

func parseResult(body []byte) Result {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return Result{}
	}
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		var other any
		if json.Unmarshal(body, &other) == nil {
			return Result{"success": true, "data": other}
		}
		return Result{"success": true, "message": text}
	}
	if result == nil {
		return Result{}
	}
	return result
}

func decodeItems(op string, body []byte) ([]domain.InventoryItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &FormatError{Op: op, Detail: "empty body"}
	}

	var raw json.RawMessage = trimmed
	if trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, &FormatError{Op: op, Detail: err.Error()}
		}
		found := false
		for _, key := range []string{"Items", "items"} {
			if v, ok := envelope[key]; ok && isArray(v) {
				raw, found = v, true
				break
			}
		}
		if !found {
			return nil, &FormatError{Op: op, Detail: "no item array in response object"}
		}
	} else if !isArray(trimmed) {
		return nil, &FormatError{Op: op, Detail: "response is neither an array nor an object"}
	}

	var items []domain.InventoryItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &FormatError{Op: op, Detail: err.Error()}
	}
	if items == nil {
		items = []domain.InventoryItem{}
	}
	return items, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
