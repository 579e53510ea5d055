package services_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/notify"
	"github.com/senyabanana/vendor-engagement/internal/repository"
	"github.com/senyabanana/vendor-engagement/internal/services"
	"github.com/senyabanana/vendor-engagement/internal/tokens"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// recordingNotifier запоминает события и может возвращать ошибку.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) kinds() []notify.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.EventKind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	store       *repository.MemoryStore
	tokenRepo   *repository.MemoryTokenRepository
	notifier    *recordingNotifier
	assignments *services.AssignmentService
	rfqs        *services.RFQService
	projects    *services.ProjectService
	project     *models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store := repository.NewMemoryStore()
	tokenRepo := repository.NewMemoryTokenRepository()
	tokenService := tokens.NewService(tokenRepo, models.DefaultTokenTTLDays, logger)
	n := &recordingNotifier{}

	f := &fixture{
		store:       store,
		tokenRepo:   tokenRepo,
		notifier:    n,
		assignments: services.NewAssignmentService(store, store, tokenService, n, nil, logger),
		rfqs:        services.NewRFQService(store, store, tokenService, n, nil, logger),
		projects:    services.NewProjectService(store, store, store, tokenService, logger),
	}

	eventDate := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	p, err := f.projects.CreateProject(context.Background(), models.ProjectRequest{
		Name:        "Spring Gala",
		OwnerID:     "planner-1",
		EventDate:   &eventDate,
		ClientTotal: decimal.NewFromInt(10000),
	}, t0)
	require.NoError(t, err)
	f.project = p
	return f
}

func (f *fixture) newAssignment(t *testing.T, category string, estimated int64) *models.VendorAssignment {
	t.Helper()
	a, err := f.assignments.CreateAssignment(context.Background(), models.AssignmentRequest{
		ProjectID:       f.project.ID,
		VendorID:        "vendor-" + category,
		VendorEmail:     category + "@vendor.test",
		ServiceCategory: category,
		EstimatedCost:   decimal.NewFromInt(estimated),
	}, "planner-1", t0)
	require.NoError(t, err)
	return a
}

// sentAssignment возвращает отправленный заказ-наряд и выданный токен.
func (f *fixture) sentAssignment(t *testing.T, category string) (*models.VendorAssignment, string) {
	t.Helper()
	a := f.newAssignment(t, category, 1000)
	sent, err := f.assignments.SendWorkOrder(context.Background(), a.ID, "planner-1", t0)
	require.NoError(t, err)
	require.NotEmpty(t, sent.AccessToken)
	return sent, sent.AccessToken
}

func (f *fixture) sentRFQ(t *testing.T, vendors ...string) (*models.RFQ, map[string]string) {
	t.Helper()
	ctx := context.Background()
	rfq, err := f.rfqs.CreateRFQ(ctx, models.RFQRequest{
		ProjectID:   f.project.ID,
		Description: "Stage lighting",
		Quantity:    decimal.NewFromInt(2),
		VendorIDs:   vendors,
		ClosingDate: t0.AddDate(0, 0, 7),
	}, "planner-1", t0)
	require.NoError(t, err)

	sent, invites, err := f.rfqs.SendRFQ(ctx, rfq.ID, "planner-1", t0)
	require.NoError(t, err)

	byVendor := make(map[string]string, len(invites))
	for _, inv := range invites {
		byVendor[inv.VendorID] = inv.Token
	}
	return sent, byVendor
}

func quote(vendorID string, price string) models.QuoteRequest {
	return models.QuoteRequest{VendorID: vendorID, Price: decimal.RequireFromString(price)}
}

var errNotifierDown = errors.New("smtp unavailable")
