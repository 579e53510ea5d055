package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eventAt := time.Date(2026, 5, 2, 19, 30, 0, 0, time.UTC)

	p, err := f.projects.CreateProject(ctx, models.ProjectRequest{Name: " Launch ", OwnerID: "o1", EventDate: &eventAt}, t0)
	require.NoError(t, err)
	assert.Equal(t, "Launch", p.Name)
	assert.True(t, p.Active)
	require.NotNil(t, p.EventDate)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), *p.EventDate)

	_, err = f.projects.CreateProject(ctx, models.ProjectRequest{Name: "x"}, t0)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.projects.CreateProject(ctx, models.ProjectRequest{Name: "x", OwnerID: "o1", ClientTotal: decimal.NewFromInt(-1)}, t0)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFinancials_RollsUpCosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.projects.CreateProject(ctx, models.ProjectRequest{
		Name:        "Conference",
		OwnerID:     "o1",
		ClientTotal: decimal.NewFromInt(20000),
	}, t0)
	require.NoError(t, err)

	costs := []struct{ estimated, actual int64 }{{1000, 950}, {1500, 1600}}
	for i, c := range costs {
		actual := decimal.NewFromInt(c.actual)
		_, err := f.assignments.CreateAssignment(ctx, models.AssignmentRequest{
			ProjectID:       p.ID,
			VendorID:        "v" + string(rune('1'+i)),
			ServiceCategory: "catering",
			EstimatedCost:   decimal.NewFromInt(c.estimated),
			ActualCost:      &actual,
		}, "o1", t0)
		require.NoError(t, err)
	}

	fin, err := f.projects.Financials(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fin.AssignmentCount)
	assert.Equal(t, "2500", fin.TotalEstimatedCost.String())
	assert.Equal(t, "2550", fin.TotalActualCost.String())
	assert.Equal(t, "50", fin.CostVariance.String())
	assert.Equal(t, "17450", fin.Margin.String())
	assert.Equal(t, "87.25", fin.MarginPercent.String())
}

func TestFinancials_RecomputedAfterCostChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssignment(t, "catering", 1000)

	fin, err := f.projects.Financials(ctx, f.project.ID)
	require.NoError(t, err)
	assert.True(t, fin.TotalActualCost.IsZero())

	actual := decimal.NewFromInt(1200)
	_, err = f.assignments.UpdateCosts(ctx, a.ID, models.CostsRequest{ActualCost: &actual}, t0)
	require.NoError(t, err)

	fin, err = f.projects.Financials(ctx, f.project.ID)
	require.NoError(t, err)
	assert.True(t, fin.TotalActualCost.Equal(actual))
	assert.True(t, fin.Margin.Equal(decimal.NewFromInt(8800)))

	_, err = f.projects.Financials(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteProjectCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent, _ := f.sentAssignment(t, "catering")
	f.newAssignment(t, "florist", 200)
	rfq, invites := f.sentRFQ(t, "v1", "v2")
	_, err := f.rfqs.SubmitQuote(ctx, rfq.ID, quote("v1", "100"), t0)
	require.NoError(t, err)

	other, err := f.projects.CreateProject(ctx, models.ProjectRequest{Name: "Other", OwnerID: "o2"}, t0)
	require.NoError(t, err)

	result, err := f.projects.DeleteProjectCascade(ctx, f.project.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Assignments)
	assert.Equal(t, int64(1), result.RFQs)
	assert.Equal(t, int64(3), result.Tokens)

	_, err = f.projects.GetProject(ctx, f.project.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.rfqs.GetRFQ(ctx, rfq.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.rfqs.PortalRFQ(ctx, rfq.ID, "v1", invites["v1"], t0)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
	_, err = f.tokenRepo.GetToken(ctx, sent.TokenOwner())
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.projects.GetProject(ctx, other.ID)
	assert.NoError(t, err)

	_, err = f.projects.DeleteProjectCascade(ctx, f.project.ID, "admin")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
