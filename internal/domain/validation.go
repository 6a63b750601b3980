package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrAmountTooLarge  = fmt.Errorf("%w: amount exceeds maximum allowed", ErrInvalidInput)
	ErrAmountTooSmall  = fmt.Errorf("%w: amount below minimum allowed", ErrInvalidInput)
	ErrAmountPrecision = fmt.Errorf("%w: amount has more than two decimal places", ErrInvalidInput)
	ErrInvalidIDFormat = fmt.Errorf("%w: invalid ID format", ErrInvalidInput)
	ErrInvalidDistance = fmt.Errorf("%w: distance must not be negative", ErrInvalidInput)
	ErrInvalidPlace    = fmt.Errorf("%w: invalid place", ErrInvalidInput)
)

// Validation constants
const (
	MaxIDLength       = 128
	MaxPlaceName      = 255
	MaxAmount         = "100000" // per entry, RM
	MinAmount         = "0.01"
	MaxReferenceBytes = 255
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9_\-:.]+$`)

// ValidateID validates an account or order identifier.
func ValidateID(id string) error {
	if id == "" || len(id) > MaxIDLength || !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIDFormat, id)
	}
	return nil
}

// ValidateAmount validates a ledger or order amount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	minAmount, _ := decimal.NewFromString(MinAmount)
	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinAmount)
	}

	maxAmount, _ := decimal.NewFromString(MaxAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	if !amount.Equal(amount.Truncate(2)) {
		return ErrAmountPrecision
	}

	return nil
}

// ValidateReference validates a caller-supplied idempotency token.
func ValidateReference(ref string) error {
	if len(ref) > MaxReferenceBytes {
		return fmt.Errorf("%w: reference exceeds %d bytes", ErrInvalidInput, MaxReferenceBytes)
	}
	return nil
}

// ValidatePlace validates an origin or destination.
func ValidatePlace(p Place) error {
	if p.IsZero() {
		return ErrMissingPlace
	}
	if len(p.Name) > MaxPlaceName || len(p.Address) > MaxPlaceName {
		return fmt.Errorf("%w: name or address exceeds %d characters", ErrInvalidPlace, MaxPlaceName)
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidPlace)
	}
	return nil
}

// ValidateDistance validates a trip distance in kilometres.
func ValidateDistance(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrInvalidDistance
	}
	return nil
}

// NormalizePlace trims user-entered text.
func NormalizePlace(p Place) Place {
	p.Name = strings.TrimSpace(p.Name)
	p.Address = strings.TrimSpace(p.Address)
	return p
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
