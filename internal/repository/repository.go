package repository

import (
	"context"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"
)

// AssignmentMutation изменяет заказ-наряд под блокировкой записи.
// Если функция вернула ошибку, изменения не сохраняются.
type AssignmentMutation func(a *models.VendorAssignment) error

// RFQMutation изменяет RFQ вместе с котировками под блокировкой записи.
type RFQMutation func(r *models.RFQ) error

// AssignmentRepository - интерфейс для работы с заказ-нарядами.
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, a *models.VendorAssignment) error
	GetAssignment(ctx context.Context, id string) (*models.VendorAssignment, error)
	ListProjectAssignments(ctx context.Context, projectID string) ([]models.VendorAssignment, error)
	UpdateAssignment(ctx context.Context, id string, fn AssignmentMutation) (*models.VendorAssignment, error)
	DeleteProjectAssignments(ctx context.Context, projectID string) ([]string, error)
}

// RFQRepository - интерфейс для работы с запросами котировок и котировками.
type RFQRepository interface {
	CreateRFQ(ctx context.Context, r *models.RFQ) error
	GetRFQ(ctx context.Context, id string) (*models.RFQ, error)
	ListDueRFQs(ctx context.Context, now time.Time) ([]models.RFQ, error)
	ListProjectRFQs(ctx context.Context, projectID string) ([]models.RFQ, error)
	UpdateRFQ(ctx context.Context, id string, fn RFQMutation) (*models.RFQ, error)
	DeleteProjectRFQs(ctx context.Context, projectID string) ([]models.RFQ, error)
}

// ProjectRepository - интерфейс для работы с проектами.
type ProjectRepository interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjectsByEventDate(ctx context.Context, date time.Time) ([]models.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// TokenRepository - хранилище токенов портала. У владельца не больше одного токена.
type TokenRepository interface {
	PutToken(ctx context.Context, t models.AccessToken) error
	GetToken(ctx context.Context, ownerID string) (*models.AccessToken, error)
	DeleteTokens(ctx context.Context, ownerIDs ...string) (int64, error)
}

// dateOnly отбрасывает время суток, оставляя календарную дату в UTC.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
