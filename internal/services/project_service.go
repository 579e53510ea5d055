package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/finance"
	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/repository"
	"github.com/senyabanana/vendor-engagement/internal/tokens"

	"github.com/google/uuid"
)

// ProjectService управляет проектами, их финансовой сводкой и каскадным удалением.
type ProjectService struct {
	Repo        repository.ProjectRepository
	Assignments repository.AssignmentRepository
	RFQs        repository.RFQRepository
	Tokens      *tokens.Service
	Logger      *log.Logger
}

// NewProjectService создаёт новый экземпляр ProjectService.
func NewProjectService(
	repo repository.ProjectRepository,
	assignments repository.AssignmentRepository,
	rfqs repository.RFQRepository,
	tokenService *tokens.Service,
	logger *log.Logger,
) *ProjectService {
	return &ProjectService{
		Repo:        repo,
		Assignments: assignments,
		RFQs:        rfqs,
		Tokens:      tokenService,
		Logger:      logger,
	}
}

// CreateProject создаёт активный проект.
func (s *ProjectService) CreateProject(ctx context.Context, req models.ProjectRequest, now time.Time) (*models.Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	if req.Name == "" || req.OwnerID == "" {
		return nil, models.NewValidationError("name and ownerId are required")
	}
	if req.ClientTotal.IsNegative() {
		return nil, models.NewValidationError("clientTotal must not be negative")
	}

	p := &models.Project{
		ID:          uuid.New().String(),
		Name:        req.Name,
		OwnerID:     req.OwnerID,
		ClientTotal: req.ClientTotal,
		Active:      true,
		CreatedAt:   now,
	}
	if req.EventDate != nil {
		d := time.Date(req.EventDate.Year(), req.EventDate.Month(), req.EventDate.Day(), 0, 0, 0, 0, time.UTC)
		p.EventDate = &d
	}

	if err := s.Repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject возвращает проект по ID.
func (s *ProjectService) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.Repo.GetProject(ctx, id)
}

// Financials пересчитывает сводку по текущему набору заказ-нарядов при каждом вызове.
func (s *ProjectService) Financials(ctx context.Context, projectID string) (*models.Financials, error) {
	project, err := s.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.Assignments.ListProjectAssignments(ctx, projectID)
	if err != nil {
		return nil, err
	}

	fin := finance.Rollup(project.ID, project.ClientTotal, assignments)
	return &fin, nil
}

// DeleteProjectCascade удаляет токены, RFQ с котировками, заказ-наряды и сам проект.
func (s *ProjectService) DeleteProjectCascade(ctx context.Context, projectID, actor string) (*models.CascadeResult, error) {
	if _, err := s.Repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	assignments, err := s.Assignments.ListProjectAssignments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rfqs, err := s.RFQs.ListProjectRFQs(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var owners []string
	for i := range assignments {
		owners = append(owners, assignments[i].TokenOwner())
	}
	for _, r := range rfqs {
		for _, vendorID := range r.VendorIDs {
			owners = append(owners, models.RFQInviteTokenOwner(r.ID, vendorID))
		}
	}

	result := &models.CascadeResult{ProjectID: projectID}
	if result.Tokens, err = s.Tokens.Revoke(ctx, owners...); err != nil {
		return nil, err
	}

	deletedRFQs, err := s.RFQs.DeleteProjectRFQs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	result.RFQs = int64(len(deletedRFQs))

	deletedAssignments, err := s.Assignments.DeleteProjectAssignments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	result.Assignments = int64(len(deletedAssignments))

	if err = s.Repo.DeleteProject(ctx, projectID); err != nil {
		return nil, err
	}

	s.Logger.Printf("project deleted id=%s assignments=%d rfqs=%d tokens=%d actor=%s",
		projectID, result.Assignments, result.RFQs, result.Tokens, actor)
	return result, nil
}
