package domain

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseStatus represents the state of a purchase.
type PurchaseStatus string

const (
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusDisputed  PurchaseStatus = "disputed"
)

// Purchase is the minimal record the dispute workflow needs: the parties and
// the amount originally paid. Catalog, checkout and fulfilment live outside
// this service.
type Purchase struct {
	ID         uuid.UUID      `json:"id"`
	SellerID   uuid.UUID      `json:"seller_id"`
	ProviderID uuid.UUID      `json:"provider_id"`
	Amount     Money          `json:"amount"`
	Status     PurchaseStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}
