package itemstore

import (
	"errors"
	"fmt"
)

// ErrMissingItemID is returned by UpdateItem when the patch has no identifier.
var ErrMissingItemID = errors.New("item id is required for update")

// RemoteError reports a non-success response from the item store, or a
// request that could not be sent.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: item store responded %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// FormatError reports a success response whose body has an unexpected shape.
type FormatError struct {
	Op     string
	Detail string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: unexpected response format: %s", e.Op, e.Detail)
}
