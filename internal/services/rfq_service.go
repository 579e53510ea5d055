package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/metrics"
	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/notify"
	"github.com/senyabanana/vendor-engagement/internal/repository"
	"github.com/senyabanana/vendor-engagement/internal/tokens"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// errUnchanged прерывает мутацию без записи.
var errUnchanged = errors.New("rfq unchanged")

// RFQService управляет сбором котировок и выбором победителя.
type RFQService struct {
	Repo     repository.RFQRepository
	Projects repository.ProjectRepository
	Tokens   *tokens.Service
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// NewRFQService создаёт новый экземпляр RFQService.
func NewRFQService(
	repo repository.RFQRepository,
	projects repository.ProjectRepository,
	tokenService *tokens.Service,
	notifier notify.Notifier,
	m *metrics.Metrics,
	logger *log.Logger,
) *RFQService {
	return &RFQService{
		Repo:     repo,
		Projects: projects,
		Tokens:   tokenService,
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
	}
}

func (s *RFQService) notify(ctx context.Context, event notify.Event) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, event); err != nil {
		s.Metrics.NotificationFailed()
		s.Logger.Printf("notification failed kind=%s entity=%s err=%v", event.Kind, event.EntityID, err)
	}
}

func (s *RFQService) reject(err error) error {
	s.Metrics.Rejection("rfq", string(models.KindOf(err)))
	return err
}

// normalizeVendors убирает пробелы и повторы, сохраняя порядок.
func normalizeVendors(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// CreateRFQ создаёт RFQ в статусе draft.
func (s *RFQService) CreateRFQ(ctx context.Context, req models.RFQRequest, actor string, now time.Time) (*models.RFQ, error) {
	vendors := normalizeVendors(req.VendorIDs)
	if len(vendors) == 0 {
		return nil, s.reject(models.NewValidationError("at least one vendor must be invited"))
	}
	if !req.ClosingDate.After(now) {
		return nil, s.reject(models.NewValidationError("closing date must be in the future"))
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" || req.ProjectID == "" {
		return nil, s.reject(models.NewValidationError("projectId and description are required"))
	}
	if req.Quantity.IsNegative() {
		return nil, s.reject(models.NewValidationError("quantity must not be negative"))
	}
	if req.Quantity.IsZero() {
		req.Quantity = decimal.NewFromInt(1)
	}

	if _, err := s.Projects.GetProject(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	rfq := &models.RFQ{
		ID:          uuid.New().String(),
		ProjectID:   req.ProjectID,
		Description: req.Description,
		Quantity:    req.Quantity,
		ClosingDate: req.ClosingDate,
		State:       models.RFQDraft,
		VendorIDs:   vendors,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.CreateRFQ(ctx, rfq); err != nil {
		return nil, err
	}
	s.Logger.Printf("rfq created id=%s project=%s vendors=%d actor=%s", rfq.ID, rfq.ProjectID, len(vendors), actor)
	return rfq, nil
}

// GetRFQ возвращает RFQ вместе с котировками.
func (s *RFQService) GetRFQ(ctx context.Context, id string) (*models.RFQ, error) {
	return s.Repo.GetRFQ(ctx, id)
}

// SendRFQ рассылает приглашения: по одному токену на каждого поставщика.
func (s *RFQService) SendRFQ(ctx context.Context, id, actor string, now time.Time) (*models.RFQ, []models.RFQInvite, error) {
	var invites []models.RFQInvite
	rfq, err := s.Repo.UpdateRFQ(ctx, id, func(r *models.RFQ) error {
		if r.State != models.RFQDraft {
			return models.NewStateConflict("rfq is %s, only draft rfqs can be sent", r.State)
		}
		if len(r.VendorIDs) == 0 {
			return models.NewValidationError("rfq has no invited vendors")
		}

		invites = invites[:0]
		for _, vendorID := range r.VendorIDs {
			ref := models.RFQInviteRef{RFQID: r.ID, VendorID: vendorID}
			tok, err := s.Tokens.Issue(ctx, ref.TokenOwner(), 0, now)
			if err != nil {
				return err
			}
			invites = append(invites, models.RFQInvite{VendorID: vendorID, Token: tok.Token, Expiry: tok.Expiry})
		}

		sentAt := now
		r.SentAt = &sentAt
		r.State = models.RFQInProgress
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, nil, s.reject(err)
	}

	s.Metrics.Transition("rfq", string(models.RFQDraft), string(models.RFQInProgress))
	s.notify(ctx, notify.Event{
		Kind:      notify.EventRFQSent,
		ProjectID: rfq.ProjectRef(),
		EntityID:  rfq.ID,
		Message:   fmt.Sprintf("rfq %q sent to %d vendors", rfq.Description, len(invites)),
	})
	s.Logger.Printf("rfq sent id=%s actor=%s", id, actor)
	return rfq, invites, nil
}

// SubmitQuote добавляет котировку приглашённого поставщика. Предыдущие котировки поставщика сохраняются.
func (s *RFQService) SubmitQuote(ctx context.Context, rfqID string, req models.QuoteRequest, now time.Time) (*models.VendorQuote, error) {
	req.VendorID = strings.TrimSpace(req.VendorID)
	if req.VendorID == "" {
		return nil, s.reject(models.NewValidationError("vendorId is required"))
	}
	if !req.Price.IsPositive() {
		return nil, s.reject(models.NewValidationError("price must be greater than zero"))
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = models.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, s.reject(models.NewValidationError("currency must be a 3-letter code"))
	}

	quote := models.VendorQuote{
		ID:           uuid.New().String(),
		RFQID:        rfqID,
		VendorID:     req.VendorID,
		Price:        req.Price,
		Currency:     currency,
		EstimateDate: req.EstimateDate,
		Note:         strings.TrimSpace(req.Note),
		SubmittedAt:  now,
	}

	rfq, err := s.Repo.UpdateRFQ(ctx, rfqID, func(r *models.RFQ) error {
		if r.State != models.RFQInProgress {
			return models.NewStateConflict("rfq is %s and does not accept quotes", r.State)
		}
		if !r.Invited(req.VendorID) {
			return models.NewStateConflict("vendor %s is not invited to this rfq", req.VendorID)
		}
		r.Quotes = append(r.Quotes, quote)
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.Metrics.QuoteSubmitted()
	s.notify(ctx, notify.Event{
		Kind:      notify.EventQuoteSubmitted,
		ProjectID: rfq.ProjectRef(),
		EntityID:  rfq.ID,
		Message:   fmt.Sprintf("vendor %s quoted %s %s", quote.VendorID, quote.Price.StringFixed(2), quote.Currency),
	})
	return &quote, nil
}

// SubmitPortalQuote проверяет токен приглашения и подаёт котировку от имени поставщика.
func (s *RFQService) SubmitPortalQuote(ctx context.Context, rfqID, vendorID, token string, req models.QuoteRequest, now time.Time) (*models.VendorQuote, error) {
	if !s.Tokens.Validate(ctx, models.RFQInviteTokenOwner(rfqID, vendorID), token, now) {
		return nil, s.reject(models.ErrTokenInvalid)
	}
	req.VendorID = vendorID
	return s.SubmitQuote(ctx, rfqID, req, now)
}

// SelectWinner отмечает выбранную котировку победителем и снимает флаг с остальных.
func (s *RFQService) SelectWinner(ctx context.Context, rfqID, quoteID, actor string, now time.Time) (*models.RFQ, error) {
	rfq, err := s.Repo.UpdateRFQ(ctx, rfqID, func(r *models.RFQ) error {
		if r.State != models.RFQInProgress {
			return models.NewStateConflict("rfq is %s, a winner can only be selected while in progress", r.State)
		}
		chosen := r.Quote(quoteID)
		if chosen == nil {
			return models.NewStateConflict("quote %s does not belong to rfq %s", quoteID, r.ID)
		}
		if !isCurrentQuote(r.Quotes, quoteID) {
			return models.NewStateConflict("quote %s was replaced by a later quote from vendor %s", quoteID, chosen.VendorID)
		}
		for i := range r.Quotes {
			r.Quotes[i].IsWinner = r.Quotes[i].ID == quoteID
		}
		closedAt := now
		r.WinnerQuoteID = quoteID
		r.ClosedAt = &closedAt
		r.State = models.RFQDone
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	winner := rfq.Quote(quoteID)
	s.Metrics.Transition("rfq", string(models.RFQInProgress), string(models.RFQDone))
	s.notify(ctx, notify.Event{
		Kind:      notify.EventRFQDone,
		ProjectID: rfq.ProjectRef(),
		EntityID:  rfq.ID,
		Message:   fmt.Sprintf("vendor %s selected for rfq %q", winner.VendorID, rfq.Description),
	})
	s.Logger.Printf("rfq winner selected id=%s quote=%s actor=%s", rfqID, quoteID, actor)
	return rfq, nil
}

// closeRFQ переводит RFQ в работе в closed. При force=false срок должен истечь.
// Возвращает false, если RFQ не изменился.
func (s *RFQService) closeRFQ(ctx context.Context, id string, now time.Time, force bool) (*models.RFQ, bool, error) {
	rfq, err := s.Repo.UpdateRFQ(ctx, id, func(r *models.RFQ) error {
		if r.State != models.RFQInProgress {
			if force {
				return models.NewStateConflict("rfq is %s, only rfqs in progress can be closed", r.State)
			}
			return errUnchanged
		}
		if !force && !r.ClosingDate.Before(now) {
			return errUnchanged
		}
		closedAt := now
		r.ClosedAt = &closedAt
		r.State = models.RFQClosed
		r.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errUnchanged) {
		current, err := s.Repo.GetRFQ(ctx, id)
		return current, false, err
	}
	if err != nil {
		return nil, false, s.reject(err)
	}

	s.Metrics.Transition("rfq", string(models.RFQInProgress), string(models.RFQClosed))
	s.notify(ctx, notify.Event{
		Kind:      notify.EventRFQClosed,
		ProjectID: rfq.ProjectRef(),
		EntityID:  rfq.ID,
		Message:   fmt.Sprintf("rfq %q closed with %d quotes and no winner", rfq.Description, len(rfq.Quotes)),
	})
	return rfq, true, nil
}

// AutoClose закрывает RFQ в работе, срок которого истёк. Победитель не выбирается.
// Повторный вызов не меняет closed и done RFQ.
func (s *RFQService) AutoClose(ctx context.Context, id string, now time.Time) (*models.RFQ, bool, error) {
	rfq, closed, err := s.closeRFQ(ctx, id, now, false)
	if closed {
		s.Metrics.RFQAutoClosed()
	}
	return rfq, closed, err
}

// CloseRFQ закрывает RFQ в работе до истечения срока по решению сотрудника.
func (s *RFQService) CloseRFQ(ctx context.Context, id, actor string, now time.Time) (*models.RFQ, error) {
	rfq, _, err := s.closeRFQ(ctx, id, now, true)
	if err != nil {
		return nil, err
	}
	s.Logger.Printf("rfq closed id=%s actor=%s", id, actor)
	return rfq, nil
}

// DueRFQs возвращает RFQ в работе с истёкшим сроком.
func (s *RFQService) DueRFQs(ctx context.Context, now time.Time) ([]models.RFQ, error) {
	return s.Repo.ListDueRFQs(ctx, now)
}

// ListQuotes возвращает все котировки RFQ в порядке подачи.
func (s *RFQService) ListQuotes(ctx context.Context, rfqID string) ([]models.VendorQuote, error) {
	rfq, err := s.Repo.GetRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	return rfq.Quotes, nil
}

// CurrentQuotes возвращает последнюю котировку каждого поставщика.
func CurrentQuotes(quotes []models.VendorQuote) []models.VendorQuote {
	latest := make(map[string]int, len(quotes))
	for i, q := range quotes {
		j, ok := latest[q.VendorID]
		if !ok || !q.SubmittedAt.Before(quotes[j].SubmittedAt) {
			latest[q.VendorID] = i
		}
	}

	current := make([]models.VendorQuote, 0, len(latest))
	for _, i := range latest {
		current = append(current, quotes[i])
	}
	sort.Slice(current, func(a, b int) bool {
		return current[a].VendorID < current[b].VendorID
	})
	return current
}

// выбрать победителем можно только текущую котировку поставщика
func isCurrentQuote(quotes []models.VendorQuote, quoteID string) bool {
	for _, q := range CurrentQuotes(quotes) {
		if q.ID == quoteID {
			return true
		}
	}
	return false
}

// CurrentQuotes возвращает последнюю котировку каждого поставщика RFQ.
func (s *RFQService) CurrentQuotes(ctx context.Context, rfqID string) ([]models.VendorQuote, error) {
	rfq, err := s.Repo.GetRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	return CurrentQuotes(rfq.Quotes), nil
}

// QuoteStats возвращает справочную статистику. Победитель по ней не выбирается.
func (s *RFQService) QuoteStats(ctx context.Context, rfqID string) (*models.QuoteStats, error) {
	rfq, err := s.Repo.GetRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	stats := &models.QuoteStats{QuoteCount: len(rfq.Quotes), LowestQuote: decimal.Zero}
	vendors := make(map[string]bool)
	for _, q := range rfq.Quotes {
		vendors[q.VendorID] = true
		if q.Price.IsPositive() && (stats.LowestQuote.IsZero() || q.Price.LessThan(stats.LowestQuote)) {
			stats.LowestQuote = q.Price
		}
	}
	stats.VendorCount = len(vendors)
	return stats, nil
}

// PortalRFQ возвращает приглашённому поставщику RFQ и его собственные котировки.
func (s *RFQService) PortalRFQ(ctx context.Context, rfqID, vendorID, token string, now time.Time) (*models.PortalRFQ, error) {
	if !s.Tokens.Validate(ctx, models.RFQInviteTokenOwner(rfqID, vendorID), token, now) {
		return nil, s.reject(models.ErrTokenInvalid)
	}

	rfq, err := s.Repo.GetRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	view := &models.PortalRFQ{
		ID:          rfq.ID,
		Description: rfq.Description,
		Quantity:    rfq.Quantity,
		ClosingDate: rfq.ClosingDate,
		State:       rfq.State,
		CanQuote:    rfq.State == models.RFQInProgress,
		MyQuotes:    []models.VendorQuote{},
	}
	for _, q := range rfq.Quotes {
		if q.VendorID == vendorID {
			view.MyQuotes = append(view.MyQuotes, q)
		}
	}
	return view, nil
}
