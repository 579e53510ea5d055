package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

const (
	rfqTable   = "rfq"
	quoteTable = "vendor_quote"
)

var rfqColumns = []string{
	"id", "project_id", "description", "quantity", "closing_date", "state", "vendor_ids",
	"winner_quote_id", "sent_at", "closed_at", "created_by", "created_at", "updated_at",
}

var quoteColumns = []string{
	"id", "rfq_id", "vendor_id", "price", "currency", "estimate_date", "note", "is_winner", "submitted_at",
}

// queryer - общий интерфейс пула и транзакции.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRFQRepository - реализация RFQRepository для базы данных.
type PostgresRFQRepository struct {
	DB DBTX
}

// NewPostgresRFQRepository создает новый экземпляр PostgresRFQRepository.
func NewPostgresRFQRepository(db DBTX) *PostgresRFQRepository {
	return &PostgresRFQRepository{DB: db}
}

func scanRFQ(row rowScanner) (*models.RFQ, error) {
	var rfq models.RFQ
	var winner *string
	err := row.Scan(
		&rfq.ID,
		&rfq.ProjectID,
		&rfq.Description,
		&rfq.Quantity,
		&rfq.ClosingDate,
		&rfq.State,
		&rfq.VendorIDs,
		&winner,
		&rfq.SentAt,
		&rfq.ClosedAt,
		&rfq.CreatedBy,
		&rfq.CreatedAt,
		&rfq.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		rfq.WinnerQuoteID = *winner
	}
	return &rfq, nil
}

func scanQuote(row rowScanner) (*models.VendorQuote, error) {
	var q models.VendorQuote
	err := row.Scan(
		&q.ID,
		&q.RFQID,
		&q.VendorID,
		&q.Price,
		&q.Currency,
		&q.EstimateDate,
		&q.Note,
		&q.IsWinner,
		&q.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// BuildDueRFQQuery формирует выборку RFQ в работе с истёкшим сроком.
func BuildDueRFQQuery(now time.Time) (string, []any, error) {
	return psql.Select(rfqColumns...).
		From(rfqTable).
		Where(squirrel.Eq{"state": models.RFQInProgress}).
		Where(squirrel.Lt{"closing_date": now}).
		OrderBy("closing_date").
		ToSql()
}

func listRFQs(ctx context.Context, q queryer, query string, args []any) ([]models.RFQ, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rfqs []models.RFQ
	for rows.Next() {
		rfq, err := scanRFQ(rows)
		if err != nil {
			return nil, err
		}
		rfqs = append(rfqs, *rfq)
	}
	return rfqs, rows.Err()
}

func listQuotes(ctx context.Context, q queryer, rfqID string) ([]models.VendorQuote, error) {
	query, args, err := psql.Select(quoteColumns...).
		From(quoteTable).
		Where(squirrel.Eq{"rfq_id": rfqID}).
		OrderBy("submitted_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list quotes: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []models.VendorQuote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *quote)
	}
	return quotes, rows.Err()
}

// CreateRFQ создает новый RFQ.
func (r *PostgresRFQRepository) CreateRFQ(ctx context.Context, rfq *models.RFQ) error {
	query, args, err := psql.Insert(rfqTable).
		Columns(rfqColumns...).
		Values(
			rfq.ID,
			rfq.ProjectID,
			rfq.Description,
			rfq.Quantity,
			rfq.ClosingDate,
			rfq.State,
			pq.Array(rfq.VendorIDs),
			nullableString(rfq.WinnerQuoteID),
			rfq.SentAt,
			rfq.ClosedAt,
			rfq.CreatedBy,
			rfq.CreatedAt,
			rfq.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert rfq: %w", err)
	}
	if _, err = r.DB.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert rfq: %w", err)
	}
	return nil
}

// GetRFQ возвращает RFQ вместе с котировками.
func (r *PostgresRFQRepository) GetRFQ(ctx context.Context, id string) (*models.RFQ, error) {
	if err := validID("rfq", id); err != nil {
		return nil, err
	}
	query, args, err := psql.Select(rfqColumns...).
		From(rfqTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select rfq: %w", err)
	}

	rfq, err := scanRFQ(r.DB.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return nil, models.NewNotFound("rfq", id)
	}
	if err != nil {
		return nil, err
	}

	rfq.Quotes, err = listQuotes(ctx, r.DB, id)
	if err != nil {
		return nil, err
	}
	return rfq, nil
}

// ListDueRFQs возвращает RFQ в работе, срок которых истёк. Котировки не загружаются.
func (r *PostgresRFQRepository) ListDueRFQs(ctx context.Context, now time.Time) ([]models.RFQ, error) {
	query, args, err := BuildDueRFQQuery(now)
	if err != nil {
		return nil, fmt.Errorf("build due rfqs: %w", err)
	}
	return listRFQs(ctx, r.DB, query, args)
}

// ListProjectRFQs возвращает RFQ проекта.
func (r *PostgresRFQRepository) ListProjectRFQs(ctx context.Context, projectID string) ([]models.RFQ, error) {
	query, args, err := psql.Select(rfqColumns...).
		From(rfqTable).
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build project rfqs: %w", err)
	}
	return listRFQs(ctx, r.DB, query, args)
}

// UpdateRFQ блокирует строку RFQ, применяет fn и сохраняет RFQ и изменённые котировки в одной транзакции.
func (r *PostgresRFQRepository) UpdateRFQ(ctx context.Context, id string, fn RFQMutation) (*models.RFQ, error) {
	if err := validID("rfq", id); err != nil {
		return nil, err
	}
	var updated *models.RFQ
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		query, args, err := psql.Select(rfqColumns...).
			From(rfqTable).
			Where(squirrel.Eq{"id": id}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build lock rfq: %w", err)
		}

		rfq, err := scanRFQ(tx.QueryRow(ctx, query, args...))
		if isNoRows(err) {
			return models.NewNotFound("rfq", id)
		}
		if err != nil {
			return err
		}
		if rfq.Quotes, err = listQuotes(ctx, tx, id); err != nil {
			return err
		}

		before := make(map[string]models.VendorQuote, len(rfq.Quotes))
		for _, q := range rfq.Quotes {
			before[q.ID] = q
		}

		if err = fn(rfq); err != nil {
			return err
		}

		updateQuery, updateArgs, err := psql.Update(rfqTable).
			Set("description", rfq.Description).
			Set("quantity", rfq.Quantity).
			Set("closing_date", rfq.ClosingDate).
			Set("state", rfq.State).
			Set("vendor_ids", pq.Array(rfq.VendorIDs)).
			Set("winner_quote_id", nullableString(rfq.WinnerQuoteID)).
			Set("sent_at", rfq.SentAt).
			Set("closed_at", rfq.ClosedAt).
			Set("updated_at", rfq.UpdatedAt).
			Where(squirrel.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update rfq: %w", err)
		}
		if _, err = tx.Exec(ctx, updateQuery, updateArgs...); err != nil {
			return fmt.Errorf("failed to update rfq: %w", err)
		}

		if err = syncQuotes(ctx, tx, before, rfq.Quotes); err != nil {
			return err
		}
		updated = rfq
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// planQuoteSync делит котировки после мутации на новые и те, у которых сменился флаг победителя.
// Снятие флага идёт раньше установки, иначе сработает уникальный индекс победителя.
func planQuoteSync(before map[string]models.VendorQuote, after []models.VendorQuote) (changed, inserted []models.VendorQuote) {
	for _, q := range after {
		old, ok := before[q.ID]
		switch {
		case !ok:
			inserted = append(inserted, q)
		case old.IsWinner != q.IsWinner:
			changed = append(changed, q)
		}
	}
	sort.SliceStable(changed, func(i, j int) bool { return !changed[i].IsWinner && changed[j].IsWinner })
	return changed, inserted
}

// syncQuotes сохраняет флаги победителя, затем вставляет новые котировки.
func syncQuotes(ctx context.Context, tx pgx.Tx, before map[string]models.VendorQuote, after []models.VendorQuote) error {
	changed, inserted := planQuoteSync(before, after)

	for _, q := range changed {
		query, args, err := psql.Update(quoteTable).
			Set("is_winner", q.IsWinner).
			Where(squirrel.Eq{"id": q.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update quote: %w", err)
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update quote %s: %w", q.ID, err)
		}
	}

	for _, q := range inserted {
		query, args, err := psql.Insert(quoteTable).
			Columns(quoteColumns...).
			Values(q.ID, q.RFQID, q.VendorID, q.Price, q.Currency, q.EstimateDate, q.Note, q.IsWinner, q.SubmittedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert quote: %w", err)
		}
		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert quote: %w", err)
		}
	}
	return nil
}

// DeleteProjectRFQs удаляет RFQ проекта. Котировки удаляются каскадно по внешнему ключу.
func (r *PostgresRFQRepository) DeleteProjectRFQs(ctx context.Context, projectID string) ([]models.RFQ, error) {
	query, args, err := psql.Delete(rfqTable).
		Where(squirrel.Eq{"project_id": projectID}).
		Suffix("RETURNING " + joinColumns(rfqColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete rfqs: %w", err)
	}
	return listRFQs(ctx, r.DB, query, args)
}

var _ RFQRepository = (*PostgresRFQRepository)(nil)
