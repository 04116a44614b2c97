package entity

import (
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountInvestment AccountType = "investment"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountInvestment:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountBlocked AccountStatus = "blocked"
	AccountClosed  AccountStatus = "closed"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountActive, AccountBlocked, AccountClosed:
		return true
	}
	return false
}

const DefaultCurrency = "USD"

// Account is a bank account owned by a user. Balance is in minor units
// (cents) of Currency. No operation moves money yet.
type Account struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	AccountNumber string
	Type          AccountType
	Balance       int64
	Currency      string
	Status        AccountStatus
	IsPrimary     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
