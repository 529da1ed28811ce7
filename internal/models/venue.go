package models

import (
	"time"

	"github.com/google/uuid"
)

// VenueType classifies a trading venue
type VenueType string

const (
	VenueTypePredictionMarket VenueType = "prediction_market"
	VenueTypeSportsBetting    VenueType = "sports_betting"
	VenueTypeCryptoExchange   VenueType = "crypto_exchange"
)

// VenueStatus represents the operational state of a venue
type VenueStatus string

const (
	VenueStatusActive      VenueStatus = "active"
	VenueStatusPaused      VenueStatus = "paused"
	VenueStatusDisabled    VenueStatus = "disabled"
	VenueStatusMaintenance VenueStatus = "maintenance"
)

// Venue represents an exchange or book that lists markets
type Venue struct {
	ID                uuid.UUID   `db:"id" json:"id"`
	Name              string      `db:"name" json:"name" validate:"required,min=1,max=100"`
	VenueType         VenueType   `db:"venue_type" json:"venue_type" validate:"required,oneof=prediction_market sports_betting crypto_exchange"`
	APIURL            *string     `db:"api_url" json:"api_url,omitempty"`
	WebsocketURL      *string     `db:"websocket_url" json:"websocket_url,omitempty"`
	FeeBps            int         `db:"fee_bps" json:"fee_bps" validate:"gte=0,lte=10000"`
	MinTradeSize      float64     `db:"min_trade_size" json:"min_trade_size"`
	MaxTradeSize      *float64    `db:"max_trade_size" json:"max_trade_size,omitempty"`
	SupportsWebsocket bool        `db:"supports_websocket" json:"supports_websocket"`
	RequiresAuth      bool        `db:"requires_auth" json:"requires_auth"`
	GeoRestrictions   []string    `db:"geo_restrictions" json:"geo_restrictions"`
	Status            VenueStatus `db:"status" json:"status"`
	LastSyncAt        *time.Time  `db:"last_sync_at" json:"last_sync_at,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}
