package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"

	"github.com/Masterminds/squirrel"
)

const projectTable = "project"

var projectColumns = []string{"id", "name", "owner_id", "event_date", "client_total", "active", "created_at"}

// PostgresProjectRepository - реализация ProjectRepository для базы данных.
type PostgresProjectRepository struct {
	DB DBTX
}

// NewPostgresProjectRepository создает новый экземпляр PostgresProjectRepository.
func NewPostgresProjectRepository(db DBTX) *PostgresProjectRepository {
	return &PostgresProjectRepository{DB: db}
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.EventDate, &p.ClientTotal, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// BuildProjectsByEventDateQuery формирует выборку активных проектов на заданную дату.
func BuildProjectsByEventDateQuery(date time.Time) (string, []any, error) {
	return psql.Select(projectColumns...).
		From(projectTable).
		Where(squirrel.Eq{"active": true, "event_date": dateOnly(date)}).
		OrderBy("name").
		ToSql()
}

// CreateProject создает новый проект.
func (r *PostgresProjectRepository) CreateProject(ctx context.Context, p *models.Project) error {
	query, args, err := psql.Insert(projectTable).
		Columns(projectColumns...).
		Values(p.ID, p.Name, p.OwnerID, p.EventDate, p.ClientTotal, p.Active, p.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert project: %w", err)
	}
	if _, err = r.DB.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// GetProject возвращает проект по идентификатору.
func (r *PostgresProjectRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	if err := validID("project", id); err != nil {
		return nil, err
	}
	query, args, err := psql.Select(projectColumns...).
		From(projectTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select project: %w", err)
	}

	p, err := scanProject(r.DB.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return nil, models.NewNotFound("project", id)
	}
	return p, err
}

// ListProjectsByEventDate возвращает активные проекты, мероприятие которых приходится на дату.
func (r *PostgresProjectRepository) ListProjectsByEventDate(ctx context.Context, date time.Time) ([]models.Project, error) {
	query, args, err := BuildProjectsByEventDateQuery(date)
	if err != nil {
		return nil, fmt.Errorf("build projects by date: %w", err)
	}

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// DeleteProject удаляет проект.
func (r *PostgresProjectRepository) DeleteProject(ctx context.Context, id string) error {
	if err := validID("project", id); err != nil {
		return err
	}
	query, args, err := psql.Delete(projectTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete project: %w", err)
	}

	tag, err := r.DB.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFound("project", id)
	}
	return nil
}

var _ ProjectRepository = (*PostgresProjectRepository)(nil)
