package service

import (
	"context"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductService manages the financial product catalog.
type ProductService struct {
	store QueryStore
	audit *AuditService
}

func NewProductService(store QueryStore) *ProductService {
	return &ProductService{
		store: store,
		audit: NewAuditService(store),
	}
}

type CreateProductCmd struct {
	TenantID       string
	ProductCode    string
	ProductName    string
	ProductType    domain.ProductType
	Description    string
	InterestRate   decimal.Decimal
	MinimumBalance decimal.Decimal
	MaximumBalance decimal.Decimal
	MonthlyFee     domain.Money
	TermMonths     int
	Features       map[string]string
	Actor          string
}

func (s *ProductService) CreateProduct(ctx context.Context, cmd CreateProductCmd) (*domain.FinancialProduct, error) {
	product, err := domain.NewProduct(cmd.TenantID, cmd.ProductCode, cmd.ProductName, cmd.ProductType, cmd.Description,
		cmd.InterestRate, cmd.MinimumBalance, cmd.MaximumBalance, cmd.MonthlyFee, cmd.TermMonths, cmd.Features, cmd.Actor)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(q *repository.Queries) error {
		if err := q.CreateProduct(ctx, product); err != nil {
			if repository.IsUniqueViolation(err, "products_tenant_code_key") {
				return domain.NewError(domain.ErrAlreadyExists, "product code %s already exists for tenant", cmd.ProductCode)
			}
			return err
		}
		return s.audit.Write(ctx, q, product.TenantID, "product", product.ID, cmd.Actor, "product_created", "", "", nil)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) UpdateInterestRate(ctx context.Context, productID uuid.UUID, newRate decimal.Decimal, actor string) (*domain.FinancialProduct, error) {
	return s.mutateProduct(ctx, productID, actor, "interest_rate_changed", func(p *domain.FinancialProduct) error {
		return p.UpdateInterestRate(newRate, actor)
	})
}

func (s *ProductService) UpdateFees(ctx context.Context, productID uuid.UUID, newFee domain.Money, actor string) (*domain.FinancialProduct, error) {
	return s.mutateProduct(ctx, productID, actor, "fee_changed", func(p *domain.FinancialProduct) error {
		p.UpdateFees(newFee, actor)
		return nil
	})
}

func (s *ProductService) ActivateProduct(ctx context.Context, productID uuid.UUID, actor string) (*domain.FinancialProduct, error) {
	return s.mutateProduct(ctx, productID, actor, "product_activated", func(p *domain.FinancialProduct) error {
		p.Activate(actor)
		return nil
	})
}

func (s *ProductService) DeactivateProduct(ctx context.Context, productID uuid.UUID, actor string) (*domain.FinancialProduct, error) {
	return s.mutateProduct(ctx, productID, actor, "product_deactivated", func(p *domain.FinancialProduct) error {
		p.Deactivate(actor)
		return nil
	})
}

func (s *ProductService) AddFeature(ctx context.Context, productID uuid.UUID, key, value, actor string) (*domain.FinancialProduct, error) {
	return s.mutateProduct(ctx, productID, actor, "feature_added", func(p *domain.FinancialProduct) error {
		p.AddFeature(key, value, actor)
		return nil
	})
}

func (s *ProductService) mutateProduct(ctx context.Context, productID uuid.UUID, actor, action string, op func(*domain.FinancialProduct) error) (*domain.FinancialProduct, error) {
	var product *domain.FinancialProduct
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var err error
		product, err = q.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := op(product); err != nil {
			return err
		}
		if err := q.SaveProduct(ctx, product); err != nil {
			return err
		}
		return s.audit.Write(ctx, q, product.TenantID, "product", product.ID, actor, action, "", "", nil)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.FinancialProduct, error) {
	return s.store.Queries().GetProduct(ctx, productID)
}

func (s *ProductService) GetProductByCode(ctx context.Context, tenantID, productCode string) (*domain.FinancialProduct, error) {
	return s.store.Queries().GetProductByCode(ctx, tenantID, productCode)
}

func (s *ProductService) ListProducts(ctx context.Context, tenantID string, page, pageSize int) ([]*domain.FinancialProduct, error) {
	limit, offset := pagination(page, pageSize)
	return s.store.Queries().ListProducts(ctx, tenantID, limit, offset)
}

// CheckEligibility reports whether a balance qualifies for the product.
func (s *ProductService) CheckEligibility(ctx context.Context, productID uuid.UUID, balance decimal.Decimal) (bool, error) {
	product, err := s.store.Queries().GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return product.IsEligible(balance), nil
}
