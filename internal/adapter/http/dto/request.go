package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/usecase"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a request's struct tags. Failures wrap domain.ErrInvalidInput.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, err.Error())
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(fields, "; "))
}

// CreateAccountRequest registers a wallet for the authenticated caller. An
// empty role falls back to the role asserted by the identity provider.
type CreateAccountRequest struct {
	Role string `json:"role" validate:"omitempty,oneof=passenger driver"`
}

// TopUpRequest is a payment processor confirmation.
type TopUpRequest struct {
	Amount string `json:"amount" validate:"required"`
	Token  string `json:"token" validate:"required,max=128"`
}

// WithdrawRequest moves funds out of a wallet.
type WithdrawRequest struct {
	Amount    string `json:"amount" validate:"required"`
	Reference string `json:"reference,omitempty" validate:"omitempty,max=128"`
}

// PlaceRequest is an origin or destination.
type PlaceRequest struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Address string  `json:"address,omitempty" validate:"max=255"`
	Lat     float64 `json:"lat,omitempty" validate:"gte=-90,lte=90"`
	Lng     float64 `json:"lng,omitempty" validate:"gte=-180,lte=180"`
}

func (p PlaceRequest) toDomain() domain.Place {
	return domain.Place{Name: p.Name, Address: p.Address, Lat: p.Lat, Lng: p.Lng}
}

// PlaceOrderRequest is a ride request. A zero or missing distance is
// estimated from the route when a mapping service is configured.
type PlaceOrderRequest struct {
	Origin      PlaceRequest `json:"origin" validate:"required"`
	Destination PlaceRequest `json:"destination" validate:"required"`
	Distance    string       `json:"distance,omitempty"`
	Price       string       `json:"price" validate:"required"`
}

// ToUseCaseInput converts to use case input for passengerID.
func (r *PlaceOrderRequest) ToUseCaseInput(passengerID string) (usecase.PlaceOrderInput, error) {
	price, err := ParseAmount("price", r.Price)
	if err != nil {
		return usecase.PlaceOrderInput{}, err
	}

	distance := decimal.Zero
	if r.Distance != "" {
		distance, err = ParseAmount("distance", r.Distance)
		if err != nil {
			return usecase.PlaceOrderInput{}, err
		}
	}

	return usecase.PlaceOrderInput{
		PassengerID: passengerID,
		Origin:      r.Origin.toDomain(),
		Destination: r.Destination.toDomain(),
		Distance:    distance,
		Price:       price,
	}, nil
}

// ParseAmount parses a decimal string field.
func ParseAmount(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a decimal number", domain.ErrInvalidInput, field)
	}
	return d, nil
}
