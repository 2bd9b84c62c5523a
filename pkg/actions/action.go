// Package actions defines the unit of deferred work in linksync: a write
// (score, photo, or food/beverage order) recorded on the course while the
// device may be offline, queued for later delivery to the round service.
package actions

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags a queued action and selects the payload shape.
type Type string

const (
	TypeScore Type = "score"
	TypePhoto Type = "photo"
	TypeOrder Type = "order"
)

// DefaultMaxRetries is the delivery attempt ceiling applied when the caller
// does not configure one.
const DefaultMaxRetries = 3

// QueuedAction is a deferred write awaiting delivery to the round service.
// Payload holds the type-specific record exactly as it will be sent.
//
// Timestamp is the natural FIFO order key: a drain delivers actions strictly
// in Timestamp order so hole 3's score never races ahead of hole 2's.
// RetryCount only ever increases; an action leaves the queue exactly once,
// either on successful delivery or when its retry budget is exhausted.
type QueuedAction struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`

	// NextAttemptAt gates retries: a drain skips the action until this
	// instant has passed. Zero means due immediately.
	NextAttemptAt time.Time `json:"next_attempt_at,omitzero"`
}

// Due reports whether the action is eligible for a delivery attempt at now.
func (a QueuedAction) Due(now time.Time) bool {
	return a.NextAttemptAt.IsZero() || !now.Before(a.NextAttemptAt)
}

// New wraps a payload into a QueuedAction with a fresh ID and the current
// time as its FIFO key.
func New(t Type, payload any, maxRetries int) (QueuedAction, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return QueuedAction{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return QueuedAction{
		ID:         uuid.New().String(),
		Type:       t,
		Payload:    data,
		Timestamp:  time.Now(),
		MaxRetries: maxRetries,
	}, nil
}

// Coordinate is a GPS fix attached to scores and photos recorded on-course.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ScorePayload records strokes (and optionally putts) for one hole.
type ScorePayload struct {
	PlayerID   string      `json:"player_id"`
	GameID     string      `json:"game_id"`
	HoleNumber int         `json:"hole_number"`
	Strokes    int         `json:"strokes"`
	Putts      *int        `json:"putts,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Location   *Coordinate `json:"location,omitempty"`
}

// PhotoPayload records a photo captured during a round. URL may carry a
// large inline-encoded image when the upload has not happened yet.
type PhotoPayload struct {
	PlayerID   string      `json:"player_id"`
	GameID     string      `json:"game_id"`
	URL        string      `json:"url"`
	Caption    string      `json:"caption,omitempty"`
	HoleNumber int         `json:"hole_number,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Location   *Coordinate `json:"location,omitempty"`
}

// OrderItem is a single line of a food/beverage order.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderPayload records a food/beverage order placed from the course.
type OrderPayload struct {
	PlayerID            string      `json:"player_id"`
	GameID              string      `json:"game_id"`
	CourseID            string      `json:"course_id"`
	Items               []OrderItem `json:"items"`
	TotalAmount         float64     `json:"total_amount"`
	DeliveryLocation    string      `json:"delivery_location"`
	HoleNumber          int         `json:"hole_number,omitempty"`
	Timestamp           time.Time   `json:"timestamp"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
}
