package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/metrics"
	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/notify"
	"github.com/senyabanana/vendor-engagement/internal/repository"
	"github.com/senyabanana/vendor-engagement/internal/tokens"
	"github.com/senyabanana/vendor-engagement/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// assignmentTransitions - допустимые переходы заказ-наряда.
var assignmentTransitions = map[models.AssignmentState][]models.AssignmentState{
	models.AssignmentDraft:    {models.AssignmentSent, models.AssignmentCancelled},
	models.AssignmentSent:     {models.AssignmentAccepted, models.AssignmentDeclined, models.AssignmentCancelled},
	models.AssignmentDeclined: {models.AssignmentSent, models.AssignmentCancelled},
	models.AssignmentAccepted: {models.AssignmentCompleted, models.AssignmentCancelled},
}

var assignmentEvents = map[models.AssignmentState]notify.EventKind{
	models.AssignmentSent:      notify.EventAssignmentSent,
	models.AssignmentAccepted:  notify.EventAssignmentAccepted,
	models.AssignmentDeclined:  notify.EventAssignmentDeclined,
	models.AssignmentCancelled: notify.EventAssignmentCancelled,
	models.AssignmentCompleted: notify.EventAssignmentCompleted,
}

// AssignmentService управляет жизненным циклом заказ-нарядов.
type AssignmentService struct {
	Repo     repository.AssignmentRepository
	Projects repository.ProjectRepository
	Tokens   *tokens.Service
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// NewAssignmentService создаёт новый экземпляр AssignmentService.
func NewAssignmentService(
	repo repository.AssignmentRepository,
	projects repository.ProjectRepository,
	tokenService *tokens.Service,
	notifier notify.Notifier,
	m *metrics.Metrics,
	logger *log.Logger,
) *AssignmentService {
	return &AssignmentService{
		Repo:     repo,
		Projects: projects,
		Tokens:   tokenService,
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
	}
}

func validateCost(name string, v decimal.Decimal) error {
	if v.IsNegative() {
		return models.NewValidationError("%s must not be negative", name)
	}
	return nil
}

// CreateAssignment создаёт заказ-наряд в статусе draft.
func (s *AssignmentService) CreateAssignment(ctx context.Context, req models.AssignmentRequest, actor string, now time.Time) (*models.VendorAssignment, error) {
	req.VendorID = strings.TrimSpace(req.VendorID)
	req.ServiceCategory = strings.TrimSpace(req.ServiceCategory)
	if req.ProjectID == "" || req.VendorID == "" || req.ServiceCategory == "" {
		return nil, models.NewValidationError("projectId, vendorId and serviceCategory are required")
	}
	if err := validateCost("estimatedCost", req.EstimatedCost); err != nil {
		return nil, err
	}
	if req.ActualCost != nil {
		if err := validateCost("actualCost", *req.ActualCost); err != nil {
			return nil, err
		}
	}

	if _, err := s.Projects.GetProject(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	a := &models.VendorAssignment{
		ID:              uuid.New().String(),
		ProjectID:       req.ProjectID,
		VendorID:        req.VendorID,
		VendorEmail:     strings.TrimSpace(req.VendorEmail),
		ServiceCategory: req.ServiceCategory,
		State:           models.AssignmentDraft,
		EstimatedCost:   req.EstimatedCost,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.ActualCost != nil {
		a.ActualCost = decimal.NewNullDecimal(*req.ActualCost)
	}

	if err := s.Repo.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}
	s.Logger.Printf("assignment created id=%s project=%s vendor=%s actor=%s", a.ID, a.ProjectID, a.VendorID, actor)
	return a, nil
}

// GetAssignment возвращает заказ-наряд по ID.
func (s *AssignmentService) GetAssignment(ctx context.Context, id string) (*models.VendorAssignment, error) {
	return s.Repo.GetAssignment(ctx, id)
}

// ListProjectAssignments возвращает заказ-наряды проекта.
func (s *AssignmentService) ListProjectAssignments(ctx context.Context, projectID string) ([]models.VendorAssignment, error) {
	if _, err := s.Projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.Repo.ListProjectAssignments(ctx, projectID)
}

// transition проверяет guard, затем допустимость перехода, затем применяет apply.
// Всё выполняется под блокировкой записи. Уведомление отправляется после сохранения.
func (s *AssignmentService) transition(
	ctx context.Context,
	id string,
	to models.AssignmentState,
	now time.Time,
	guard func(a *models.VendorAssignment) error,
	apply func(a *models.VendorAssignment) error,
) (*models.VendorAssignment, error) {
	var from models.AssignmentState
	updated, err := s.Repo.UpdateAssignment(ctx, id, func(a *models.VendorAssignment) error {
		if guard != nil {
			if err := guard(a); err != nil {
				return err
			}
		}

		from = a.State
		if !utils.Contains(assignmentTransitions[a.State], to) {
			return models.NewStateConflict("assignment is %s and cannot be moved to %s", a.State, to)
		}
		if apply != nil {
			if err := apply(a); err != nil {
				return err
			}
		}
		a.State = to
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.Metrics.Rejection("assignment", string(models.KindOf(err)))
		return nil, err
	}

	s.Metrics.Transition("assignment", string(from), string(to))
	s.notify(ctx, notify.Event{
		Kind:      assignmentEvents[to],
		ProjectID: updated.ProjectRef(),
		EntityID:  updated.ID,
		Message:   fmt.Sprintf("%s for vendor %s is now %s", updated.ServiceCategory, updated.VendorID, to),
	})
	return updated, nil
}

func (s *AssignmentService) notify(ctx context.Context, event notify.Event) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, event); err != nil {
		s.Metrics.NotificationFailed()
		s.Logger.Printf("notification failed kind=%s entity=%s err=%v", event.Kind, event.EntityID, err)
	}
}

// tokenGuard отклоняет операцию, если токен не действителен для заказ-наряда.
func (s *AssignmentService) tokenGuard(ctx context.Context, token string, now time.Time) func(a *models.VendorAssignment) error {
	return func(a *models.VendorAssignment) error {
		if !s.Tokens.Validate(ctx, a.TokenOwner(), token, now) {
			return models.ErrTokenInvalid
		}
		return nil
	}
}

// issueToken выдаёт новый токен портала и сохраняет его в заказ-наряде.
func (s *AssignmentService) issueToken(ctx context.Context, now time.Time) func(a *models.VendorAssignment) error {
	return func(a *models.VendorAssignment) error {
		if a.VendorID == "" || a.VendorEmail == "" {
			return models.NewValidationError("assignment %s has no vendor contact address", a.ID)
		}
		tok, err := s.Tokens.Issue(ctx, a.TokenOwner(), 0, now)
		if err != nil {
			return err
		}
		a.AccessToken = tok.Token
		a.TokenExpiry = &tok.Expiry
		return nil
	}
}

// SendWorkOrder отправляет заказ-наряд поставщику и выдаёт токен портала.
func (s *AssignmentService) SendWorkOrder(ctx context.Context, id, actor string, now time.Time) (*models.VendorAssignment, error) {
	updated, err := s.transition(ctx, id, models.AssignmentSent, now, func(a *models.VendorAssignment) error {
		if a.State != models.AssignmentDraft {
			return models.NewStateConflict("assignment is %s, only draft orders can be sent", a.State)
		}
		return nil
	}, s.issueToken(ctx, now))
	if err != nil {
		return nil, err
	}
	s.Logger.Printf("assignment sent id=%s actor=%s", id, actor)
	return updated, nil
}

// Resend повторно отправляет отклонённый заказ-наряд с новым токеном.
func (s *AssignmentService) Resend(ctx context.Context, id, actor string, now time.Time) (*models.VendorAssignment, error) {
	updated, err := s.transition(ctx, id, models.AssignmentSent, now, func(a *models.VendorAssignment) error {
		if a.State != models.AssignmentDeclined {
			return models.NewStateConflict("assignment is %s, only declined orders can be resent", a.State)
		}
		return nil
	}, s.issueToken(ctx, now))
	if err != nil {
		return nil, err
	}
	s.Logger.Printf("assignment resent id=%s actor=%s", id, actor)
	return updated, nil
}

// VendorAccept принимает заказ-наряд от имени поставщика по токену портала.
func (s *AssignmentService) VendorAccept(ctx context.Context, id, token string, signature []byte, now time.Time) (*models.VendorAssignment, error) {
	return s.transition(ctx, id, models.AssignmentAccepted, now, s.tokenGuard(ctx, token, now), func(a *models.VendorAssignment) error {
		if len(signature) > 0 {
			a.Signature = append([]byte(nil), signature...)
		}
		signedAt := now
		a.SignedAt = &signedAt
		return nil
	})
}

// VendorDecline отклоняет заказ-наряд от имени поставщика по токену портала.
func (s *AssignmentService) VendorDecline(ctx context.Context, id, token, reason string, now time.Time) (*models.VendorAssignment, error) {
	return s.transition(ctx, id, models.AssignmentDeclined, now, s.tokenGuard(ctx, token, now), func(a *models.VendorAssignment) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = models.DefaultDeclineReason
		}
		a.DeclineReason = reason
		return nil
	})
}

// Cancel отменяет заказ-наряд из любого статуса, кроме завершённого.
func (s *AssignmentService) Cancel(ctx context.Context, id, actor string, now time.Time) (*models.VendorAssignment, error) {
	updated, err := s.transition(ctx, id, models.AssignmentCancelled, now, nil, nil)
	if err != nil {
		return nil, err
	}
	s.Logger.Printf("assignment cancelled id=%s actor=%s", id, actor)
	return updated, nil
}

// MarkCompleted отмечает принятый заказ-наряд выполненным.
func (s *AssignmentService) MarkCompleted(ctx context.Context, id, actor string, now time.Time) (*models.VendorAssignment, error) {
	updated, err := s.transition(ctx, id, models.AssignmentCompleted, now, nil, nil)
	if err != nil {
		return nil, err
	}
	s.Logger.Printf("assignment completed id=%s actor=%s", id, actor)
	return updated, nil
}

// UpdateCosts меняет плановую и фактическую стоимость. Статус не меняется.
func (s *AssignmentService) UpdateCosts(ctx context.Context, id string, req models.CostsRequest, now time.Time) (*models.VendorAssignment, error) {
	if req.EstimatedCost == nil && req.ActualCost == nil {
		return nil, models.NewValidationError("estimatedCost or actualCost is required")
	}
	if req.EstimatedCost != nil {
		if err := validateCost("estimatedCost", *req.EstimatedCost); err != nil {
			return nil, err
		}
	}
	if req.ActualCost != nil {
		if err := validateCost("actualCost", *req.ActualCost); err != nil {
			return nil, err
		}
	}

	return s.Repo.UpdateAssignment(ctx, id, func(a *models.VendorAssignment) error {
		if a.State == models.AssignmentCancelled {
			return models.NewStateConflict("costs of a cancelled assignment cannot be changed")
		}
		if req.EstimatedCost != nil {
			a.EstimatedCost = *req.EstimatedCost
		}
		if req.ActualCost != nil {
			a.ActualCost = decimal.NewNullDecimal(*req.ActualCost)
		}
		a.UpdatedAt = now
		return nil
	})
}

// PortalAssignment возвращает поставщику ограниченное представление заказ-наряда.
func (s *AssignmentService) PortalAssignment(ctx context.Context, id, token string, now time.Time) (*models.PortalAssignment, error) {
	if !s.Tokens.Validate(ctx, models.AssignmentTokenOwner(id), token, now) {
		s.Metrics.Rejection("assignment", string(models.KindTokenInvalid))
		return nil, models.ErrTokenInvalid
	}

	a, err := s.Repo.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &models.PortalAssignment{
		ID:              a.ID,
		ServiceCategory: a.ServiceCategory,
		State:           a.State,
		VendorPayment:   a.ActualCost,
		CanRespond:      a.State == models.AssignmentSent,
	}

	project, err := s.Projects.GetProject(ctx, a.ProjectID)
	if err != nil {
		return nil, err
	}
	view.EventName = project.Name
	view.EventDate = project.EventDate
	return view, nil
}
