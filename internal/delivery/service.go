// Package delivery quotes distance-based delivery fees.
package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/agriconnect/agriconnect-backend/pkg/config"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/geo"
	"github.com/agriconnect/agriconnect-backend/pkg/money"
)

// Quote is a fee estimate between two addresses.
type Quote struct {
	Pickup     geo.Point `json:"pickup"`
	Drop       geo.Point `json:"drop"`
	DistanceKm string    `json:"distance_km"`
	FeeCents   int64     `json:"fee_cents"`
	Fee        string    `json:"fee"`
	BaseCents  int64     `json:"base_fee_cents"`
	PerKmCents int64     `json:"per_km_fee_cents"`
}

// Service resolves addresses and prices the trip between them.
type Service interface {
	ResolveCoordinates(ctx context.Context, address string) (geo.Point, error)
	QuoteFee(ctx context.Context, pickup, drop string) (*Quote, error)
}

type service struct {
	geocoder   geo.Geocoder
	baseCents  int64
	perKmCents int64
}

// NewService parses the rupee fee formula once at startup.
func NewService(geocoder geo.Geocoder, cfg config.DeliveryConfig) (Service, error) {
	if geocoder == nil {
		return nil, fmt.Errorf("geocoder required")
	}
	base, err := money.ParseRupees(cfg.BaseFee)
	if err != nil {
		return nil, fmt.Errorf("delivery base fee: %w", err)
	}
	perKm, err := money.ParseRupees(cfg.PerKmFee)
	if err != nil {
		return nil, fmt.Errorf("delivery per km fee: %w", err)
	}
	if base < 0 || perKm < 0 {
		return nil, fmt.Errorf("delivery fees cannot be negative")
	}
	return &service{geocoder: geocoder, baseCents: base, perKmCents: perKm}, nil
}

func (s *service) ResolveCoordinates(ctx context.Context, address string) (geo.Point, error) {
	if strings.TrimSpace(address) == "" {
		return geo.Point{}, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}
	return s.geocoder.Geocode(ctx, address)
}

// QuoteFee prices a trip as base + perKm * km, rounded to the paisa.
func (s *service) QuoteFee(ctx context.Context, pickup, drop string) (*Quote, error) {
	if strings.TrimSpace(pickup) == "" || strings.TrimSpace(drop) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup and drop addresses are required")
	}
	from, err := s.ResolveCoordinates(ctx, pickup)
	if err != nil {
		return nil, err
	}
	to, err := s.ResolveCoordinates(ctx, drop)
	if err != nil {
		return nil, err
	}

	km := decimal.NewFromFloat(geo.HaversineKm(from, to))
	fee := money.FromPaise(s.baseCents).Add(money.FromPaise(s.perKmCents).Mul(km))
	feeCents := money.ToPaise(fee)
	return &Quote{
		Pickup:     from,
		Drop:       to,
		DistanceKm: km.StringFixed(2),
		FeeCents:   feeCents,
		Fee:        money.Format(feeCents),
		BaseCents:  s.baseCents,
		PerKmCents: s.perKmCents,
	}, nil
}
