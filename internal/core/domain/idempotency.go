package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord caches a completed executor result so a retried request
// returns the original outcome instead of re-running the side effect. The
// record is written in the same database transaction as the journal entry.
type IdempotencyRecord struct {
	Key           string    `json:"key"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"`
	CreatedAt     time.Time `json:"created_at"`
}
