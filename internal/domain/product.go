package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinancialProduct defines the pricing and eligibility rules a loan or
// account is sold under. ProductCode is unique per tenant.
type FinancialProduct struct {
	Aggregate

	TenantID       string            `json:"tenant_id"`
	ProductCode    string            `json:"product_code"`
	ProductName    string            `json:"product_name"`
	ProductType    ProductType       `json:"product_type"`
	Description    string            `json:"description"`
	InterestRate   decimal.Decimal   `json:"interest_rate"`
	MinimumBalance decimal.Decimal   `json:"minimum_balance"`
	MaximumBalance decimal.Decimal   `json:"maximum_balance"`
	MonthlyFee     Money             `json:"monthly_fee"`
	TermMonths     int               `json:"term_months"`
	IsActive       bool              `json:"is_active"`
	Features       map[string]string `json:"features"`
}

type ProductCreated struct {
	Meta
	ProductID   uuid.UUID   `json:"product_id"`
	ProductCode string      `json:"product_code"`
	ProductName string      `json:"product_name"`
	ProductType ProductType `json:"product_type"`
}

func (ProductCreated) EventName() string { return "product.created" }

type ProductInterestRateChanged struct {
	Meta
	ProductID   uuid.UUID       `json:"product_id"`
	ProductCode string          `json:"product_code"`
	OldRate     decimal.Decimal `json:"old_rate"`
	NewRate     decimal.Decimal `json:"new_rate"`
}

func (ProductInterestRateChanged) EventName() string { return "product.interest_rate_changed" }

type ProductFeeChanged struct {
	Meta
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code"`
	OldFee      Money     `json:"old_fee"`
	NewFee      Money     `json:"new_fee"`
}

func (ProductFeeChanged) EventName() string { return "product.fee_changed" }

type ProductActivated struct {
	Meta
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code"`
}

func (ProductActivated) EventName() string { return "product.activated" }

type ProductDeactivated struct {
	Meta
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code"`
}

func (ProductDeactivated) EventName() string { return "product.deactivated" }

type ProductFeatureAdded struct {
	Meta
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
}

func (ProductFeatureAdded) EventName() string { return "product.feature_added" }

// NewProduct creates an active product. The balance band must be well formed.
func NewProduct(tenantID, productCode, productName string, productType ProductType, description string, interestRate, minimumBalance, maximumBalance decimal.Decimal, monthlyFee Money, termMonths int, features map[string]string, createdBy string) (*FinancialProduct, error) {
	if tenantID == "" {
		return nil, newError(ErrInvalidArgument, "tenant id is required")
	}
	if productCode == "" {
		return nil, newError(ErrInvalidArgument, "product code is required")
	}
	if interestRate.IsNegative() {
		return nil, newError(ErrInvalidArgument, "interest rate cannot be negative")
	}
	if !maximumBalance.GreaterThan(minimumBalance) {
		return nil, newError(ErrInvalidArgument, "maximum balance must exceed minimum balance")
	}
	if features == nil {
		features = map[string]string{}
	}
	p := &FinancialProduct{
		Aggregate:      newAggregate(createdBy),
		TenantID:       tenantID,
		ProductCode:    productCode,
		ProductName:    productName,
		ProductType:    productType,
		Description:    description,
		InterestRate:   interestRate,
		MinimumBalance: minimumBalance,
		MaximumBalance: maximumBalance,
		MonthlyFee:     monthlyFee,
		TermMonths:     termMonths,
		IsActive:       true,
		Features:       features,
	}
	p.record(ProductCreated{Meta: newMeta(), ProductID: p.ID, ProductCode: productCode, ProductName: productName, ProductType: productType})
	return p, nil
}

// IsEligible reports whether a balance falls inside the product's band. Pure
// predicate, no side effects.
func (p *FinancialProduct) IsEligible(balance decimal.Decimal) bool {
	return p.IsActive &&
		balance.GreaterThanOrEqual(p.MinimumBalance) &&
		balance.LessThanOrEqual(p.MaximumBalance)
}

// UpdateInterestRate replaces the rate. Negative rates are rejected.
func (p *FinancialProduct) UpdateInterestRate(newRate decimal.Decimal, updatedBy string) error {
	if newRate.IsNegative() {
		return newError(ErrInvalidArgument, "interest rate cannot be negative")
	}
	oldRate := p.InterestRate
	p.InterestRate = newRate
	p.touch(updatedBy)
	p.record(ProductInterestRateChanged{Meta: newMeta(), ProductID: p.ID, ProductCode: p.ProductCode, OldRate: oldRate, NewRate: newRate})
	return nil
}

// UpdateFees replaces the monthly fee.
func (p *FinancialProduct) UpdateFees(newFee Money, updatedBy string) {
	oldFee := p.MonthlyFee
	p.MonthlyFee = newFee
	p.touch(updatedBy)
	p.record(ProductFeeChanged{Meta: newMeta(), ProductID: p.ID, ProductCode: p.ProductCode, OldFee: oldFee, NewFee: newFee})
}

func (p *FinancialProduct) Activate(activatedBy string) {
	p.IsActive = true
	p.touch(activatedBy)
	p.record(ProductActivated{Meta: newMeta(), ProductID: p.ID, ProductCode: p.ProductCode})
}

func (p *FinancialProduct) Deactivate(deactivatedBy string) {
	p.IsActive = false
	p.touch(deactivatedBy)
	p.record(ProductDeactivated{Meta: newMeta(), ProductID: p.ID, ProductCode: p.ProductCode})
}

func (p *FinancialProduct) AddFeature(key, value, updatedBy string) {
	if p.Features == nil {
		p.Features = map[string]string{}
	}
	p.Features[key] = value
	p.touch(updatedBy)
	p.record(ProductFeatureAdded{Meta: newMeta(), ProductID: p.ID, ProductCode: p.ProductCode, Key: key, Value: value})
}
