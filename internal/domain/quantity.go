package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// wholeNumber reads a JSON number that must hold an integral value. The item
// store encodes every number as a float, so 5 arrives as 5.0.
func wholeNumber(field string, raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", field, raw)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s: %s is not a whole number", field, d.String())
	}
	return int(d.IntPart()), nil
}

func (i *InventoryItem) UnmarshalJSON(data []byte) error {
	type plain InventoryItem
	aux := struct {
		*plain
		Quantity json.RawMessage `json:"quantity"`
	}{plain: (*plain)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	q, err := wholeNumber("quantity", aux.Quantity)
	if err != nil {
		return err
	}
	i.Quantity = q
	return nil
}

func (s *Sale) UnmarshalJSON(data []byte) error {
	type plain Sale
	aux := struct {
		*plain
		QuantitySold json.RawMessage `json:"quantitySold"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	q, err := wholeNumber("quantitySold", aux.QuantitySold)
	if err != nil {
		return err
	}
	s.QuantitySold = q
	return nil
}
