package transcript

import (
	"context"
	"time"

	"github.com/boristopalov/sciworld/pkg/core"
)

// Record is a persisted episode transcript.
type Record struct {
	ID        string         `json:"id"`
	Task      string         `json:"task"`
	Variation int            `json:"variation"`
	Style     string         `json:"style"`
	Steps     int            `json:"steps"`
	Complete  bool           `json:"complete"`
	Score     float64        `json:"score"`
	Messages  []core.Message `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Repository stores episode transcripts keyed by episode id.
type Repository interface {
	// Save persists rec, overwriting any record with the same id.
	Save(ctx context.Context, rec *Record) error
	// Load returns nil and no error when the id is unknown.
	Load(ctx context.Context, id string) (*Record, error)
	// List returns every record ordered by creation time, without messages.
	List(ctx context.Context) ([]*Record, error)
}
