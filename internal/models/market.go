package models

import (
	"time"

	"github.com/google/uuid"
)

// MarketStatus represents the trading state of a market
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusSuspended MarketStatus = "suspended"
	MarketStatusSettled   MarketStatus = "settled"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Market represents a binary outcome market listed on a venue
type Market struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	VenueID        uuid.UUID    `db:"venue_id" json:"venue_id"`
	ExternalID     string       `db:"external_id" json:"external_id"`
	Title          string       `db:"title" json:"title"`
	Description    *string      `db:"description" json:"description,omitempty"`
	Category       *string      `db:"category" json:"category,omitempty"`
	EventDate      *time.Time   `db:"event_date" json:"event_date,omitempty"`
	ResolutionDate *time.Time   `db:"resolution_date" json:"resolution_date,omitempty"`
	YesPrice       *float64     `db:"yes_price" json:"yes_price,omitempty"`
	NoPrice        *float64     `db:"no_price" json:"no_price,omitempty"`
	YesLiquidity   float64      `db:"yes_liquidity" json:"yes_liquidity"`
	NoLiquidity    float64      `db:"no_liquidity" json:"no_liquidity"`
	Volume24h      float64      `db:"volume_24h" json:"volume_24h"`
	TickSize       float64      `db:"tick_size" json:"tick_size"`
	MarketURL      *string      `db:"market_url" json:"market_url,omitempty"`
	Status         MarketStatus `db:"status" json:"status"`
	LastUpdated    time.Time    `db:"last_updated" json:"last_updated"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`

	// Joined from venues
	VenueName string    `db:"venue_name" json:"venue_name"`
	VenueType VenueType `db:"venue_type" json:"venue_type"`
}
