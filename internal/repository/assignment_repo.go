package repository

import (
	"context"
	"fmt"

	"github.com/senyabanana/vendor-engagement/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

const assignmentTable = "vendor_assignment"

var assignmentColumns = []string{
	"id", "project_id", "vendor_id", "vendor_email", "service_category", "state",
	"estimated_cost", "actual_cost", "access_token", "token_expiry", "decline_reason",
	"signature", "signed_at", "created_at", "updated_at",
}

// PostgresAssignmentRepository - реализация AssignmentRepository для базы данных.
type PostgresAssignmentRepository struct {
	DB DBTX
}

// NewPostgresAssignmentRepository создает новый экземпляр PostgresAssignmentRepository.
func NewPostgresAssignmentRepository(db DBTX) *PostgresAssignmentRepository {
	return &PostgresAssignmentRepository{DB: db}
}

func scanAssignment(row rowScanner) (*models.VendorAssignment, error) {
	var a models.VendorAssignment
	var token *string
	err := row.Scan(
		&a.ID,
		&a.ProjectID,
		&a.VendorID,
		&a.VendorEmail,
		&a.ServiceCategory,
		&a.State,
		&a.EstimatedCost,
		&a.ActualCost,
		&token,
		&a.TokenExpiry,
		&a.DeclineReason,
		&a.Signature,
		&a.SignedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if token != nil {
		a.AccessToken = *token
	}
	return &a, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateAssignment создает новый заказ-наряд.
func (r *PostgresAssignmentRepository) CreateAssignment(ctx context.Context, a *models.VendorAssignment) error {
	query, args, err := psql.Insert(assignmentTable).
		Columns(assignmentColumns...).
		Values(
			a.ID,
			a.ProjectID,
			a.VendorID,
			a.VendorEmail,
			a.ServiceCategory,
			a.State,
			a.EstimatedCost,
			a.ActualCost,
			nullableString(a.AccessToken),
			a.TokenExpiry,
			a.DeclineReason,
			a.Signature,
			a.SignedAt,
			a.CreatedAt,
			a.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert assignment: %w", err)
	}
	if _, err = r.DB.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// GetAssignment возвращает заказ-наряд по ID.
func (r *PostgresAssignmentRepository) GetAssignment(ctx context.Context, id string) (*models.VendorAssignment, error) {
	if err := validID("assignment", id); err != nil {
		return nil, err
	}
	query, args, err := psql.Select(assignmentColumns...).
		From(assignmentTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select assignment: %w", err)
	}
	a, err := scanAssignment(r.DB.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return nil, models.NewNotFound("assignment", id)
	}
	return a, err
}

// ListProjectAssignments возвращает заказ-наряды проекта.
func (r *PostgresAssignmentRepository) ListProjectAssignments(ctx context.Context, projectID string) ([]models.VendorAssignment, error) {
	query, args, err := psql.Select(assignmentColumns...).
		From(assignmentTable).
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("service_category", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list assignments: %w", err)
	}

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []models.VendorAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// UpdateAssignment блокирует строку (SELECT ... FOR UPDATE), применяет fn и сохраняет результат
// в одной транзакции.
func (r *PostgresAssignmentRepository) UpdateAssignment(ctx context.Context, id string, fn AssignmentMutation) (*models.VendorAssignment, error) {
	if err := validID("assignment", id); err != nil {
		return nil, err
	}
	var updated *models.VendorAssignment
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		query, args, err := psql.Select(assignmentColumns...).
			From(assignmentTable).
			Where(squirrel.Eq{"id": id}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build lock assignment: %w", err)
		}

		a, err := scanAssignment(tx.QueryRow(ctx, query, args...))
		if isNoRows(err) {
			return models.NewNotFound("assignment", id)
		}
		if err != nil {
			return err
		}

		if err = fn(a); err != nil {
			return err
		}

		updateQuery, updateArgs, err := psql.Update(assignmentTable).
			Set("vendor_id", a.VendorID).
			Set("vendor_email", a.VendorEmail).
			Set("service_category", a.ServiceCategory).
			Set("state", a.State).
			Set("estimated_cost", a.EstimatedCost).
			Set("actual_cost", a.ActualCost).
			Set("access_token", nullableString(a.AccessToken)).
			Set("token_expiry", a.TokenExpiry).
			Set("decline_reason", a.DeclineReason).
			Set("signature", a.Signature).
			Set("signed_at", a.SignedAt).
			Set("updated_at", a.UpdatedAt).
			Where(squirrel.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update assignment: %w", err)
		}
		if _, err = tx.Exec(ctx, updateQuery, updateArgs...); err != nil {
			return fmt.Errorf("failed to update assignment: %w", err)
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteProjectAssignments удаляет заказ-наряды проекта и возвращает их ID.
func (r *PostgresAssignmentRepository) DeleteProjectAssignments(ctx context.Context, projectID string) ([]string, error) {
	query, args, err := psql.Delete(assignmentTable).
		Where(squirrel.Eq{"project_id": projectID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete assignments: %w", err)
	}

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ AssignmentRepository = (*PostgresAssignmentRepository)(nil)
