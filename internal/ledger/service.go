package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/payloads"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

// Service appends wallet movements. Credit and Debit run inside the caller's
// transaction so they commit together with the state change that caused them.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.LedgerEntry, error)
	Debit(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.LedgerEntry, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amountCents int64) (*models.LedgerEntry, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	Entries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*EntryList, error)
	Wallet(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Wallet, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error)
}

type service struct {
	repo   Repository
	tx     db.TxRunner
	outbox outbox.Emitter
}

// NewService wires a ledger service.
func NewService(repo Repository, tx db.TxRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter}, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.LedgerEntry, error) {
	return s.apply(ctx, tx, enums.LedgerEntryCredit, input)
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.LedgerEntry, error) {
	return s.apply(ctx, tx, enums.LedgerEntryDebit, input)
}

func (s *service) Withdraw(ctx context.Context, userID uuid.UUID, amountCents int64) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.Debit(ctx, tx, EntryInput{
			UserID:      userID,
			AmountCents: amountCents,
			Description: "Wallet withdrawal",
			Actor:       &outbox.ActorRef{UserID: userID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, entryType enums.LedgerEntryType, input EntryInput) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger writes require a transaction")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}

	repo := s.repo.WithTx(tx)
	var ok bool
	var err error
	if entryType == enums.LedgerEntryDebit {
		ok, err = repo.SubtractFromBalance(ctx, input.UserID, input.AmountCents)
	} else {
		ok, err = repo.AddToBalance(ctx, input.UserID, input.AmountCents)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}
	if !ok {
		return nil, s.explainRejected(ctx, repo, entryType, input.UserID)
	}

	entry := &models.LedgerEntry{
		UserID:      input.UserID,
		Type:        entryType,
		AmountCents: input.AmountCents,
		Description: description,
		OrderID:     input.OrderID,
	}
	if err := repo.Append(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}

	balance, err := repo.Balance(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read wallet balance")
	}

	eventType := enums.EventWalletCredited
	if entryType == enums.LedgerEntryDebit {
		eventType = enums.EventWalletDebited
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateWallet,
		AggregateID:   input.UserID,
		Actor:         input.Actor,
		Data: payloads.WalletEvent{
			UserID:       input.UserID,
			EntryID:      entry.ID,
			Type:         entryType,
			AmountCents:  input.AmountCents,
			BalanceCents: balance,
			OrderID:      input.OrderID,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit wallet event")
	}
	return entry, nil
}

func (s *service) explainRejected(ctx context.Context, repo Repository, entryType enums.LedgerEntryType, userID uuid.UUID) error {
	if _, err := repo.Balance(ctx, userID); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if entryType == enums.LedgerEntryDebit {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance is lower than the requested amount")
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "wallet balance was not updated")
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet balance")
	}
	return balance, nil
}

func (s *service) Entries(ctx context.Context, userID uuid.UUID, params pagination.Params) (*EntryList, error) {
	page, err := params.Window()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListEntries(ctx, userID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	rows, next := pagination.Trim(page, rows, func(e models.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	out := &EntryList{Entries: make([]EntryDTO, len(rows)), Cursor: next}
	for i, row := range rows {
		out.Entries[i] = ToEntryDTO(row)
	}
	return out, nil
}

func (s *service) Wallet(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Wallet, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.Entries(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	return &Wallet{UserID: userID, BalanceCents: balance, EntryList: *entries}, nil
}

func (s *service) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := s.repo.SumEntries(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger entries")
	}
	return &Reconciliation{
		UserID:         userID,
		BalanceCents:   balance,
		LedgerSumCents: sum,
		Consistent:     balance == sum,
	}, nil
}
