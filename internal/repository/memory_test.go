package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryStore_AssignmentCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := &models.VendorAssignment{ID: "a1", ProjectID: "p1", State: models.AssignmentDraft, Signature: []byte("sig")}
	require.NoError(t, s.CreateAssignment(ctx, a))

	a.Signature[0] = 'X'
	got, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []byte("sig"), got.Signature)

	got.State = models.AssignmentSent
	again, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentDraft, again.State)
}

func TestMemoryStore_UpdateAssignmentErrorWritesNothing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateAssignment(ctx, &models.VendorAssignment{ID: "a1", State: models.AssignmentDraft}))

	boom := errors.New("boom")
	_, err := s.UpdateAssignment(ctx, "a1", func(a *models.VendorAssignment) error {
		a.State = models.AssignmentSent
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentDraft, got.State)
}

func TestMemoryStore_UpdateAssignmentNotFound(t *testing.T) {
	_, err := NewMemoryStore().UpdateAssignment(context.Background(), "missing", func(*models.VendorAssignment) error { return nil })
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_UpdateIsSerializedPerRecord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateAssignment(ctx, &models.VendorAssignment{ID: "a1", EstimatedCost: decimal.Zero}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateAssignment(ctx, "a1", func(a *models.VendorAssignment) error {
				a.EstimatedCost = a.EstimatedCost.Add(decimal.NewFromInt(1))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.EstimatedCost.Equal(decimal.NewFromInt(50)))
	assert.Zero(t, s.records.size())
}

func TestMemoryStore_RecordLocksAreReleased(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, s.CreateAssignment(ctx, &models.VendorAssignment{ID: id}))
		_, err := s.UpdateAssignment(ctx, id, func(*models.VendorAssignment) error { return nil })
		require.NoError(t, err)
	}
	require.NoError(t, s.CreateRFQ(ctx, &models.RFQ{ID: "r1"}))
	_, err := s.UpdateRFQ(ctx, "r1", func(*models.RFQ) error { return errors.New("rejected") })
	require.Error(t, err)
	_, err = s.UpdateRFQ(ctx, "missing", func(*models.RFQ) error { return nil })
	require.ErrorIs(t, err, models.ErrNotFound)

	assert.Zero(t, s.records.size())
}

func TestMemoryStore_UpdateDoesNotRestoreDeletedRecord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateAssignment(ctx, &models.VendorAssignment{ID: "a1", ProjectID: "p1", State: models.AssignmentDraft}))
	require.NoError(t, s.CreateRFQ(ctx, &models.RFQ{ID: "r1", ProjectID: "p1", State: models.RFQDraft}))

	_, err := s.UpdateAssignment(ctx, "a1", func(a *models.VendorAssignment) error {
		_, err := s.DeleteProjectAssignments(ctx, "p1")
		require.NoError(t, err)
		a.State = models.AssignmentSent
		return nil
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetAssignment(ctx, "a1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.UpdateRFQ(ctx, "r1", func(r *models.RFQ) error {
		_, err := s.DeleteProjectRFQs(ctx, "p1")
		require.NoError(t, err)
		r.State = models.RFQInProgress
		return nil
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetRFQ(ctx, "r1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_ListDueRFQs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rfqs := []models.RFQ{
		{ID: "late", State: models.RFQInProgress, ClosingDate: now.Add(-2 * time.Hour)},
		{ID: "later", State: models.RFQInProgress, ClosingDate: now.Add(-time.Hour)},
		{ID: "open", State: models.RFQInProgress, ClosingDate: now.Add(time.Hour)},
		{ID: "exact", State: models.RFQInProgress, ClosingDate: now},
		{ID: "draft", State: models.RFQDraft, ClosingDate: now.Add(-time.Hour)},
		{ID: "done", State: models.RFQDone, ClosingDate: now.Add(-time.Hour)},
	}
	for i := range rfqs {
		require.NoError(t, s.CreateRFQ(ctx, &rfqs[i]))
	}

	due, err := s.ListDueRFQs(ctx, now)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, r := range due {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"late", "later"}, ids)
}

func TestMemoryStore_UpdateRFQKeepsQuotesIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateRFQ(ctx, &models.RFQ{ID: "r1", VendorIDs: []string{"v1"}}))

	updated, err := s.UpdateRFQ(ctx, "r1", func(r *models.RFQ) error {
		r.Quotes = append(r.Quotes, models.VendorQuote{ID: "q1", VendorID: "v1"})
		return nil
	})
	require.NoError(t, err)
	updated.Quotes[0].IsWinner = true
	updated.VendorIDs[0] = "changed"

	got, err := s.GetRFQ(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got.Quotes, 1)
	assert.False(t, got.Quotes[0].IsWinner)
	assert.Equal(t, []string{"v1"}, got.VendorIDs)
}

func TestMemoryStore_ProjectsByEventDate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	evening := day.Add(20 * time.Hour)
	other := day.AddDate(0, 0, 1)

	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p1", Active: true, EventDate: &day}))
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p2", Active: true, EventDate: &evening}))
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p3", Active: false, EventDate: &day}))
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p4", Active: true, EventDate: &other}))
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p5", Active: true}))

	projects, err := s.ListProjectsByEventDate(ctx, day.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "p1", projects[0].ID)
	assert.Equal(t, "p2", projects[1].ID)
}

func TestMemoryStore_DeleteProjectRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p1"}))
	require.NoError(t, s.CreateAssignment(ctx, &models.VendorAssignment{ID: "a1", ProjectID: "p1"}))
	require.NoError(t, s.CreateAssignment(ctx, &models.VendorAssignment{ID: "a2", ProjectID: "p2"}))
	require.NoError(t, s.CreateRFQ(ctx, &models.RFQ{ID: "r1", ProjectID: "p1"}))

	ids, err := s.DeleteProjectAssignments(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids)

	rfqs, err := s.DeleteProjectRFQs(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, rfqs, 1)

	require.NoError(t, s.DeleteProject(ctx, "p1"))
	assert.ErrorIs(t, s.DeleteProject(ctx, "p1"), models.ErrNotFound)

	_, err = s.GetAssignment(ctx, "a2")
	assert.NoError(t, err)
}

func TestMemoryTokenRepository(t *testing.T) {
	r := NewMemoryTokenRepository()
	ctx := context.Background()

	_, err := r.GetToken(ctx, "assignment:1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, r.PutToken(ctx, models.AccessToken{OwnerID: "assignment:1", Token: "a"}))
	require.NoError(t, r.PutToken(ctx, models.AccessToken{OwnerID: "assignment:1", Token: "b"}))

	got, err := r.GetToken(ctx, "assignment:1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Token)

	n, err := r.DeleteTokens(ctx, "assignment:1", "assignment:2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
