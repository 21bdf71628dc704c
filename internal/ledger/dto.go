package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
)

// EntryInput describes one wallet movement.
type EntryInput struct {
	UserID      uuid.UUID
	AmountCents int64
	Description string
	OrderID     *uuid.UUID
	Actor       *outbox.ActorRef
}

// EntryDTO is the transport shape of a ledger entry.
type EntryDTO struct {
	ID          uuid.UUID             `json:"id"`
	Type        enums.LedgerEntryType `json:"type"`
	AmountCents int64                 `json:"amount_cents"`
	Description string                `json:"description"`
	OrderID     *uuid.UUID            `json:"order_id,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// EntryList is a page of ledger entries, newest first.
type EntryList struct {
	Entries []EntryDTO `json:"entries"`
	Cursor  string     `json:"cursor,omitempty"`
}

// Wallet is the balance plus the most recent entries.
type Wallet struct {
	UserID       uuid.UUID `json:"user_id"`
	BalanceCents int64     `json:"balance_cents"`
	EntryList
}

// Reconciliation compares the stored balance against the entry sum.
type Reconciliation struct {
	UserID         uuid.UUID `json:"user_id"`
	BalanceCents   int64     `json:"balance_cents"`
	LedgerSumCents int64     `json:"ledger_sum_cents"`
	Consistent     bool      `json:"consistent"`
}

// ToEntryDTO maps a ledger row for transport.
func ToEntryDTO(e models.LedgerEntry) EntryDTO {
	return EntryDTO{
		ID:          e.ID,
		Type:        e.Type,
		AmountCents: e.AmountCents,
		Description: e.Description,
		OrderID:     e.OrderID,
		CreatedAt:   e.CreatedAt,
	}
}
