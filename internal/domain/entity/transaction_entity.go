package entity

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTransfer   TransactionType = "transfer"
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionPayment    TransactionType = "payment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTransfer, TransactionDeposit, TransactionWithdrawal, TransactionPayment:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionFailed, TransactionCancelled:
		return true
	}
	return false
}

// Transaction records a movement between accounts. ToAccountID is nil for
// deposits and withdrawals; ReferenceNumber is nil until assigned.
type Transaction struct {
	ID              uuid.UUID
	FromAccountID   uuid.UUID
	ToAccountID     *uuid.UUID
	Type            TransactionType
	Amount          int64
	Currency        string
	Status          TransactionStatus
	Description     string
	ReferenceNumber *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
