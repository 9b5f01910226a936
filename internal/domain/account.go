package domain

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus enumerates the account lifecycle states.
type AccountStatus string

const (
	AccountStatusPending   AccountStatus = "PENDING"
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusFrozen    AccountStatus = "FROZEN"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusClosed    AccountStatus = "CLOSED"
)

// ProductType classifies accounts and financial products.
type ProductType string

const (
	ProductCurrentAccount ProductType = "CURRENT_ACCOUNT"
	ProductSavingsAccount ProductType = "SAVINGS_ACCOUNT"
	ProductFixedDeposit   ProductType = "FIXED_DEPOSIT"
	ProductPersonalLoan   ProductType = "PERSONAL_LOAN"
	ProductCreditCard     ProductType = "CREDIT_CARD"
	ProductMortgageLoan   ProductType = "MORTGAGE_LOAN"
)

// Account is the ledger's balance-holding aggregate. Balance and
// AvailableBalance always share one currency and never go negative. Accounts
// are created Pending and only handle funds once activated.
type Account struct {
	Aggregate

	AccountNumber    string          `json:"account_number"`
	CustomerID       string          `json:"customer_id"`
	TenantID         string          `json:"tenant_id"`
	ProductType      ProductType     `json:"product_type"`
	Balance          Money           `json:"balance"`
	AvailableBalance Money           `json:"available_balance"`
	Status           AccountStatus   `json:"status"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	LastInterestDate *time.Time      `json:"last_interest_date,omitempty"`
}

type AccountCreated struct {
	Meta
	AccountID     uuid.UUID `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	CustomerID    string    `json:"customer_id"`
	TenantID      string    `json:"tenant_id"`
}

func (AccountCreated) EventName() string { return "account.created" }

type AccountActivated struct {
	Meta
	AccountID     uuid.UUID `json:"account_id"`
	AccountNumber string    `json:"account_number"`
}

func (AccountActivated) EventName() string { return "account.activated" }

type AccountDeposited struct {
	Meta
	AccountID     uuid.UUID `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	Amount        Money     `json:"amount"`
}

func (AccountDeposited) EventName() string { return "account.deposited" }

type AccountWithdrawn struct {
	Meta
	AccountID     uuid.UUID `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	Amount        Money     `json:"amount"`
}

func (AccountWithdrawn) EventName() string { return "account.withdrawn" }

type AccountFrozen struct {
	Meta
	AccountID     uuid.UUID `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	Reason        string    `json:"reason"`
}

func (AccountFrozen) EventName() string { return "account.frozen" }

type InterestApplied struct {
	Meta
	AccountID     uuid.UUID `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	Amount        Money     `json:"amount"`
}

func (InterestApplied) EventName() string { return "account.interest_applied" }

// NewAccount opens a Pending account with a zero balance in the given
// currency and a generated account number.
func NewAccount(customerID, tenantID string, productType ProductType, currency string, interestRate decimal.Decimal, createdBy string) (*Account, error) {
	if customerID == "" {
		return nil, newError(ErrInvalidArgument, "customer id is required")
	}
	if tenantID == "" {
		return nil, newError(ErrInvalidArgument, "tenant id is required")
	}
	acc := &Account{
		Aggregate:        newAggregate(createdBy),
		AccountNumber:    generateAccountNumber(),
		CustomerID:       customerID,
		TenantID:         tenantID,
		ProductType:      productType,
		Balance:          Zero(currency),
		AvailableBalance: Zero(currency),
		Status:           AccountStatusPending,
		InterestRate:     interestRate,
	}
	acc.record(AccountCreated{
		Meta:          newMeta(),
		AccountID:     acc.ID,
		AccountNumber: acc.AccountNumber,
		CustomerID:    customerID,
		TenantID:      tenantID,
	})
	return acc, nil
}

// Activate moves a Pending account to Active.
func (a *Account) Activate(performedBy string) error {
	if a.Status != AccountStatusPending {
		return newError(ErrIllegalStateTransition, "only pending accounts can be activated, account is %s", a.Status)
	}
	a.Status = AccountStatusActive
	a.touch(performedBy)
	a.record(AccountActivated{Meta: newMeta(), AccountID: a.ID, AccountNumber: a.AccountNumber})
	return nil
}

// Deposit credits both balances. The account must be Active.
func (a *Account) Deposit(amount Money, performedBy string) error {
	if a.Status != AccountStatusActive {
		return newError(ErrAccountNotActive, "account must be active for deposits, account is %s", a.Status)
	}
	balance, err := a.Balance.Add(amount)
	if err != nil {
		return err
	}
	available, err := a.AvailableBalance.Add(amount)
	if err != nil {
		return err
	}
	a.Balance = balance
	a.AvailableBalance = available
	a.touch(performedBy)
	a.record(AccountDeposited{Meta: newMeta(), AccountID: a.ID, AccountNumber: a.AccountNumber, Amount: amount})
	return nil
}

// Withdraw debits both balances symmetrically. The account must be Active and
// the available balance must cover the amount.
func (a *Account) Withdraw(amount Money, performedBy string) error {
	if a.Status != AccountStatusActive {
		return newError(ErrAccountNotActive, "account must be active for withdrawals, account is %s", a.Status)
	}
	short, err := a.AvailableBalance.LessThan(amount)
	if err != nil {
		return err
	}
	if short {
		return newError(ErrInsufficientFunds, "available balance %s is less than %s", a.AvailableBalance, amount)
	}
	balance, err := a.Balance.Subtract(amount)
	if err != nil {
		return err
	}
	available, err := a.AvailableBalance.Subtract(amount)
	if err != nil {
		return err
	}
	a.Balance = balance
	a.AvailableBalance = available
	a.touch(performedBy)
	a.record(AccountWithdrawn{Meta: newMeta(), AccountID: a.ID, AccountNumber: a.AccountNumber, Amount: amount})
	return nil
}

// Freeze marks the account Frozen. It has no precondition: any state,
// including Closed, may be frozen.
func (a *Account) Freeze(reason, performedBy string) {
	a.Status = AccountStatusFrozen
	a.touch(performedBy)
	a.record(AccountFrozen{Meta: newMeta(), AccountID: a.ID, AccountNumber: a.AccountNumber, Reason: reason})
}

// ApplyInterest credits one month of interest from the annual percentage
// rate. A non-positive rate is a no-op.
func (a *Account) ApplyInterest(performedBy string) error {
	if !a.InterestRate.IsPositive() {
		return nil
	}
	monthlyRate := a.InterestRate.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(12))
	interest, err := a.Balance.MultiplyBy(monthlyRate)
	if err != nil {
		return err
	}
	balance, err := a.Balance.Add(interest)
	if err != nil {
		return err
	}
	available, err := a.AvailableBalance.Add(interest)
	if err != nil {
		return err
	}
	a.Balance = balance
	a.AvailableBalance = available
	now := time.Now().UTC()
	a.LastInterestDate = &now
	a.touch(performedBy)
	a.record(InterestApplied{Meta: newMeta(), AccountID: a.ID, AccountNumber: a.AccountNumber, Amount: interest})
	return nil
}

func generateAccountNumber() string {
	return fmt.Sprintf("62%08d", rand.Intn(100000000))
}
