package domain

import (
	"time"

	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// WalletStatus represents the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
	WalletStatusFrozen WalletStatus = "frozen"
	WalletStatusClosed WalletStatus = "closed"
)

// Wallet holds a single user's balance. Credit and Debit are the only write
// paths for the balance; both reject any wallet that is not active. The
// currency is fixed at creation.
//
// Mutations here are in-memory only; persistence is the caller's job, and the
// ledger service always persists a wallet together with its journal entry in
// one database transaction.
type Wallet struct {
	ID        uuid.UUID    `json:"id"`
	OwnerID   uuid.UUID    `json:"owner_id"`
	Balance   Money        `json:"balance"`
	Status    WalletStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewWallet creates an active wallet with a zero balance.
// Each user gets exactly one, created at registration.
func NewWallet(ownerID uuid.UUID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Balance:   ZeroMoney(currency),
		Status:    WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive reports whether the wallet accepts credits and debits.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// StatusError returns the error describing why a non-active wallet rejects
// mutation, or nil for an active wallet.
func (w *Wallet) StatusError() error {
	switch w.Status {
	case WalletStatusFrozen:
		return apperror.ErrWalletFrozen()
	case WalletStatusClosed:
		return apperror.ErrWalletClosed()
	default:
		return nil
	}
}

// Credit increases the balance. The wallet must be active, the amount
// positive and in the wallet's currency. There is no upper bound.
func (w *Wallet) Credit(amount Money) error {
	if err := w.StatusError(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount("must be positive")
	}
	newBalance, err := w.Balance.Add(amount)
	if err != nil {
		return err
	}
	w.Balance = newBalance
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Debit decreases the balance. The wallet must be active, the amount positive
// and in the wallet's currency, and the balance sufficient. A failed debit
// leaves the balance untouched.
func (w *Wallet) Debit(amount Money) error {
	if err := w.StatusError(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount("must be positive")
	}
	short, err := w.Balance.LessThan(amount)
	if err != nil {
		return err
	}
	if short {
		return apperror.ErrInsufficientBalance(amount.String(), w.Balance.String())
	}
	newBalance, err := w.Balance.Sub(amount)
	if err != nil {
		return err
	}
	w.Balance = newBalance
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Freeze suspends an active wallet. Reversible via Unfreeze.
func (w *Wallet) Freeze() error {
	if w.Status == WalletStatusClosed {
		return apperror.ErrWalletClosed()
	}
	if w.Status == WalletStatusFrozen {
		return apperror.ErrInvalidState("wallet is already frozen")
	}
	w.Status = WalletStatusFrozen
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Unfreeze reactivates a frozen wallet.
func (w *Wallet) Unfreeze() error {
	if w.Status == WalletStatusClosed {
		return apperror.ErrWalletClosed()
	}
	if w.Status != WalletStatusFrozen {
		return apperror.ErrInvalidState("wallet is not frozen")
	}
	w.Status = WalletStatusActive
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Close permanently closes the wallet. The balance must already be zero;
// remaining funds are never swept implicitly. Closing is terminal: a closed
// wallet accepts no further transitions.
func (w *Wallet) Close() error {
	if w.Status == WalletStatusClosed {
		return apperror.ErrWalletClosed()
	}
	if !w.Balance.IsZero() {
		return apperror.ErrWalletNotEmpty()
	}
	w.Status = WalletStatusClosed
	w.UpdatedAt = time.Now().UTC()
	return nil
}
