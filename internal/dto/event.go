package dto

import (
	"encoding/json"
	"time"
)

// PortfolioEvent is published to the event stream after a document change.
type PortfolioEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	UserID        string    `json:"user_id"`
	Origin        string    `json:"origin"`
	Holdings      int       `json:"holdings"`
	TotalOpenRisk float64   `json:"total_open_risk"`
	TotalInvested float64   `json:"total_invested"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChangeNotification is the payload pushed through a change notifier.
// Document is only carried by transports without a payload size limit.
type ChangeNotification struct {
	UserID   string          `json:"user_id"`
	Origin   string          `json:"origin"`
	Document json.RawMessage `json:"document,omitempty"`
}
