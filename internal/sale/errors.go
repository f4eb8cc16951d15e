package sale

import (
	"errors"
	"fmt"

	"store-pos/internal/backend"
	"store-pos/internal/cart"
	"store-pos/internal/catalog"
	"store-pos/internal/search"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrCommitInProgress = errors.New("bill is being saved")
	ErrUnsavedCart      = errors.New("cart has unsaved lines")
	ErrCommitRejected   = errors.New("bill was not saved")
)

// CommitError is a failed bill submission. The cart is left as it was.
type CommitError struct {
	Message string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit rejected: %s", e.Message)
}

func (e *CommitError) Unwrap() error { return e.Err }

func (e *CommitError) Is(target error) bool {
	return target == ErrCommitRejected
}

func commitError(err error) *CommitError {
	msg := "Error saving bill"
	if apiErr, ok := backend.Rejected(err); ok {
		msg = apiErr.Message
	}
	return &CommitError{Message: msg, Err: err}
}

// Message turns any error out of the session into the one-line notice shown
// to the operator.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var stockErr *cart.StockError
	var commitErr *CommitError
	switch {
	case errors.As(err, &stockErr):
		return fmt.Sprintf("Insufficient stock! Available: %d", stockErr.Available)
	case errors.As(err, &commitErr):
		return commitErr.Message
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "Quantity must be at least 1"
	case errors.Is(err, ErrEmptyCart):
		return "Cart is empty!"
	case errors.Is(err, ErrCommitInProgress):
		return "Saving the bill, please wait"
	case errors.Is(err, ErrUnsavedCart):
		return "Save or cancel the current bill before ending the day"
	case errors.Is(err, catalog.ErrProductNotFound):
		return "Product not found"
	case errors.Is(err, search.ErrNoCandidate):
		return "No matching product"
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		return "Catalog is unavailable, showing the last loaded products"
	}

	if apiErr, ok := backend.Rejected(err); ok {
		return apiErr.Message
	}
	if errors.Is(err, backend.ErrUnavailable) {
		return "Backend is not reachable"
	}
	return err.Error()
}
