package service

import (
	"context"
	"testing"

	"github.com/atlasbank/ledger/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestComplianceCheckReview(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	compliance := NewComplianceService(store)

	check, err := compliance.RaiseCheck(ctx, RaiseCheckCmd{
		TenantID:   "tenant-1",
		EntityID:   "cust-1",
		EntityType: "customer",
		CheckType:  domain.CheckKYC,
		Actor:      "system",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ComplianceStatusPending, check.Status)

	check, err = compliance.UpdateRiskScore(ctx, check.ID, 35, "analyst")
	require.NoError(t, err)
	require.Equal(t, 35, check.RiskScore)

	_, err = compliance.UpdateRiskScore(ctx, check.ID, 300, "analyst")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	check, err = compliance.ApproveCheck(ctx, check.ID, "documents verified", "analyst")
	require.NoError(t, err)
	require.Equal(t, domain.ComplianceStatusApproved, check.Status)
	require.NotNil(t, check.ReviewedBy)
	require.Equal(t, "analyst", *check.ReviewedBy)

	listed, err := compliance.ListChecksForEntity(ctx, "tenant-1", "cust-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// Other tenants never see the check.
	listed, err = compliance.ListChecksForEntity(ctx, "tenant-2", "cust-1")
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestComplianceCheckRejection(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	compliance := NewComplianceService(store)

	check, err := compliance.RaiseCheck(ctx, RaiseCheckCmd{
		TenantID:   "tenant-1",
		EntityID:   "cust-2",
		EntityType: "customer",
		CheckType:  domain.CheckSanctions,
		Actor:      "system",
	})
	require.NoError(t, err)

	check, err = compliance.RejectCheck(ctx, check.ID, "sanctions list match", "analyst")
	require.NoError(t, err)
	require.Equal(t, domain.ComplianceStatusRejected, check.Status)
	require.NotNil(t, check.Notes)
	require.Equal(t, "sanctions list match", *check.Notes)
}
