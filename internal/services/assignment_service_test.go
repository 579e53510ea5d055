package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/notify"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssignment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	negative := decimal.NewFromInt(-1)

	tests := []struct {
		name string
		req  models.AssignmentRequest
		kind error
	}{
		{
			name: "missing vendor",
			req:  models.AssignmentRequest{ProjectID: f.project.ID, ServiceCategory: "catering"},
			kind: models.ErrValidation,
		},
		{
			name: "negative estimate",
			req:  models.AssignmentRequest{ProjectID: f.project.ID, VendorID: "v1", ServiceCategory: "catering", EstimatedCost: negative},
			kind: models.ErrValidation,
		},
		{
			name: "negative actual",
			req:  models.AssignmentRequest{ProjectID: f.project.ID, VendorID: "v1", ServiceCategory: "catering", ActualCost: &negative},
			kind: models.ErrValidation,
		},
		{
			name: "unknown project",
			req:  models.AssignmentRequest{ProjectID: "missing", VendorID: "v1", ServiceCategory: "catering"},
			kind: models.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.assignments.CreateAssignment(ctx, tt.req, "planner-1", t0)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestCreateAssignment_StartsInDraft(t *testing.T) {
	f := newFixture(t)
	a := f.newAssignment(t, "catering", 1000)

	assert.Equal(t, models.AssignmentDraft, a.State)
	assert.Empty(t, a.AccessToken)
	assert.False(t, a.ActualCost.Valid)
	assert.Empty(t, f.notifier.kinds())
}

func TestSendWorkOrder_IssuesToken(t *testing.T) {
	f := newFixture(t)
	sent, token := f.sentAssignment(t, "catering")

	assert.Equal(t, models.AssignmentSent, sent.State)
	require.NotNil(t, sent.TokenExpiry)
	assert.Equal(t, t0.AddDate(0, 0, models.DefaultTokenTTLDays), *sent.TokenExpiry)

	stored, err := f.tokenRepo.GetToken(context.Background(), sent.TokenOwner())
	require.NoError(t, err)
	assert.Equal(t, token, stored.Token)
	assert.Equal(t, []notify.EventKind{notify.EventAssignmentSent}, f.notifier.kinds())
}

func TestSendWorkOrder_RequiresVendorContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.assignments.CreateAssignment(ctx, models.AssignmentRequest{
		ProjectID:       f.project.ID,
		VendorID:        "v1",
		ServiceCategory: "av",
	}, "planner-1", t0)
	require.NoError(t, err)

	_, err = f.assignments.SendWorkOrder(ctx, a.ID, "planner-1", t0)
	assert.ErrorIs(t, err, models.ErrValidation)

	got, err := f.assignments.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentDraft, got.State)
}

func TestSendWorkOrder_OnlyFromDraft(t *testing.T) {
	f := newFixture(t)
	sent, _ := f.sentAssignment(t, "catering")

	_, err := f.assignments.SendWorkOrder(context.Background(), sent.ID, "planner-1", t0)
	assert.ErrorIs(t, err, models.ErrStateConflict)
}

func TestVendorAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent, token := f.sentAssignment(t, "catering")
	signedAt := t0.Add(time.Hour)

	accepted, err := f.assignments.VendorAccept(ctx, sent.ID, token, []byte("signature"), signedAt)
	require.NoError(t, err)

	assert.Equal(t, models.AssignmentAccepted, accepted.State)
	assert.Equal(t, []byte("signature"), accepted.Signature)
	require.NotNil(t, accepted.SignedAt)
	assert.Equal(t, signedAt, *accepted.SignedAt)
	assert.Equal(t, []notify.EventKind{notify.EventAssignmentSent, notify.EventAssignmentAccepted}, f.notifier.kinds())
}

func TestVendorDecline_ThenAcceptConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent, token := f.sentAssignment(t, "catering")

	declined, err := f.assignments.VendorDecline(ctx, sent.ID, token, "unavailable", t0)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentDeclined, declined.State)
	assert.Equal(t, "unavailable", declined.DeclineReason)

	_, err = f.assignments.VendorAccept(ctx, sent.ID, token, nil, t0)
	assert.ErrorIs(t, err, models.ErrStateConflict)
}

func TestVendorDecline_DefaultReason(t *testing.T) {
	f := newFixture(t)
	sent, token := f.sentAssignment(t, "catering")

	declined, err := f.assignments.VendorDecline(context.Background(), sent.ID, token, "   ", t0)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDeclineReason, declined.DeclineReason)
}

func TestVendorResponse_TokenChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent, token := f.sentAssignment(t, "catering")
	other, otherToken := f.sentAssignment(t, "florist")

	tests := []struct {
		name  string
		token string
		now   time.Time
	}{
		{name: "empty", token: "", now: t0},
		{name: "wrong", token: "not-the-token", now: t0},
		{name: "other assignment", token: otherToken, now: t0},
		{name: "expired", token: token, now: t0.AddDate(0, 0, models.DefaultTokenTTLDays)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.assignments.VendorAccept(ctx, sent.ID, tt.token, nil, tt.now)
			assert.ErrorIs(t, err, models.ErrTokenInvalid)

			_, err = f.assignments.VendorDecline(ctx, sent.ID, tt.token, "", tt.now)
			assert.ErrorIs(t, err, models.ErrTokenInvalid)
		})
	}

	got, err := f.assignments.GetAssignment(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSent, got.State)

	_, err = f.assignments.VendorAccept(ctx, other.ID, otherToken, nil, t0)
	assert.NoError(t, err)
}

func TestVendorAccept_BadTokenOnDraftIsTokenError(t *testing.T) {
	f := newFixture(t)
	a := f.newAssignment(t, "catering", 100)

	_, err := f.assignments.VendorAccept(context.Background(), a.ID, "guess", nil, t0)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
	assert.NotErrorIs(t, err, models.ErrStateConflict)
}

func TestVendorAccept_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent, token := f.sentAssignment(t, "catering")

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(accept bool) {
			defer wg.Done()
			var err error
			if accept {
				_, err = f.assignments.VendorAccept(ctx, sent.ID, token, nil, t0)
			} else {
				_, err = f.assignments.VendorDecline(ctx, sent.ID, token, "busy", t0)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case models.KindOf(err) == models.KindStateConflict:
				conflicts++
			}
		}(i%2 == 0)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
}

func TestResend_RotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent, oldToken := f.sentAssignment(t, "catering")

	_, err := f.assignments.Resend(ctx, sent.ID, "planner-1", t0)
	assert.ErrorIs(t, err, models.ErrStateConflict)

	_, err = f.assignments.VendorDecline(ctx, sent.ID, oldToken, "dates", t0)
	require.NoError(t, err)

	resent, err := f.assignments.Resend(ctx, sent.ID, "planner-1", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSent, resent.State)
	assert.NotEqual(t, oldToken, resent.AccessToken)

	_, err = f.assignments.VendorAccept(ctx, sent.ID, oldToken, nil, t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	_, err = f.assignments.VendorAccept(ctx, sent.ID, resent.AccessToken, nil, t0.Add(2*time.Hour))
	assert.NoError(t, err)
}

func TestCancelAndComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.newAssignment(t, "av", 100)
	cancelled, err := f.assignments.Cancel(ctx, draft.ID, "planner-1", t0)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentCancelled, cancelled.State)

	_, err = f.assignments.Cancel(ctx, draft.ID, "planner-1", t0)
	assert.ErrorIs(t, err, models.ErrStateConflict)

	sent, token := f.sentAssignment(t, "catering")
	_, err = f.assignments.MarkCompleted(ctx, sent.ID, "planner-1", t0)
	assert.ErrorIs(t, err, models.ErrStateConflict)

	_, err = f.assignments.VendorAccept(ctx, sent.ID, token, nil, t0)
	require.NoError(t, err)
	completed, err := f.assignments.MarkCompleted(ctx, sent.ID, "planner-1", t0)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentCompleted, completed.State)

	_, err = f.assignments.Cancel(ctx, sent.ID, "planner-1", t0)
	assert.ErrorIs(t, err, models.ErrStateConflict)
}

func TestTransition_NotifierFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errNotifierDown
	a := f.newAssignment(t, "catering", 100)

	sent, err := f.assignments.SendWorkOrder(context.Background(), a.ID, "planner-1", t0)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSent, sent.State)

	got, err := f.assignments.GetAssignment(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentSent, got.State)
}

func TestUpdateCosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAssignment(t, "catering", 1000)
	actual := decimal.NewFromInt(950)
	negative := decimal.NewFromInt(-5)

	_, err := f.assignments.UpdateCosts(ctx, a.ID, models.CostsRequest{}, t0)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.assignments.UpdateCosts(ctx, a.ID, models.CostsRequest{ActualCost: &negative}, t0)
	assert.ErrorIs(t, err, models.ErrValidation)

	updated, err := f.assignments.UpdateCosts(ctx, a.ID, models.CostsRequest{ActualCost: &actual}, t0)
	require.NoError(t, err)
	assert.True(t, updated.ActualCost.Valid)
	assert.True(t, updated.ActualCost.Decimal.Equal(actual))
	assert.True(t, updated.EstimatedCost.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, models.AssignmentDraft, updated.State)

	_, err = f.assignments.Cancel(ctx, a.ID, "planner-1", t0)
	require.NoError(t, err)
	_, err = f.assignments.UpdateCosts(ctx, a.ID, models.CostsRequest{ActualCost: &actual}, t0)
	assert.ErrorIs(t, err, models.ErrStateConflict)
}

func TestPortalAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent, token := f.sentAssignment(t, "catering")

	_, err := f.assignments.PortalAssignment(ctx, sent.ID, "wrong", t0)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	view, err := f.assignments.PortalAssignment(ctx, sent.ID, token, t0)
	require.NoError(t, err)
	assert.Equal(t, "Spring Gala", view.EventName)
	assert.True(t, view.CanRespond)
	require.NotNil(t, view.EventDate)

	_, err = f.assignments.VendorAccept(ctx, sent.ID, token, nil, t0)
	require.NoError(t, err)

	view, err = f.assignments.PortalAssignment(ctx, sent.ID, token, t0)
	require.NoError(t, err)
	assert.False(t, view.CanRespond)
}
