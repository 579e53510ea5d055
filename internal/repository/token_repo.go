package repository

import (
	"context"
	"fmt"

	"github.com/senyabanana/vendor-engagement/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const tokenTable = "access_token"

// PostgresTokenRepository хранит токены портала в таблице access_token.
type PostgresTokenRepository struct {
	DB DBTX
}

// NewPostgresTokenRepository создает новый экземпляр PostgresTokenRepository.
func NewPostgresTokenRepository(db DBTX) *PostgresTokenRepository {
	return &PostgresTokenRepository{DB: db}
}

// BuildPutTokenQuery формирует upsert токена: повторная выдача заменяет прежний секрет.
func BuildPutTokenQuery(t models.AccessToken) (string, []any, error) {
	return psql.Insert(tokenTable).
		Columns("owner_id", "token", "expiry", "issued_at").
		Values(t.OwnerID, t.Token, t.Expiry, t.IssuedAt).
		Suffix("ON CONFLICT (owner_id) DO UPDATE SET token = EXCLUDED.token, expiry = EXCLUDED.expiry, issued_at = EXCLUDED.issued_at").
		ToSql()
}

// PutToken сохраняет токен владельца.
func (r *PostgresTokenRepository) PutToken(ctx context.Context, t models.AccessToken) error {
	query, args, err := BuildPutTokenQuery(t)
	if err != nil {
		return fmt.Errorf("build put token: %w", err)
	}
	if _, err = r.DB.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// GetToken возвращает действующий токен владельца.
func (r *PostgresTokenRepository) GetToken(ctx context.Context, ownerID string) (*models.AccessToken, error) {
	query, args, err := psql.Select("owner_id", "token", "expiry", "issued_at").
		From(tokenTable).
		Where(squirrel.Eq{"owner_id": ownerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get token: %w", err)
	}

	var t models.AccessToken
	err = r.DB.QueryRow(ctx, query, args...).Scan(&t.OwnerID, &t.Token, &t.Expiry, &t.IssuedAt)
	if isNoRows(err) {
		return nil, models.NewNotFound("token", ownerID)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTokens удаляет токены владельцев и возвращает число удалённых записей.
func (r *PostgresTokenRepository) DeleteTokens(ctx context.Context, ownerIDs ...string) (int64, error) {
	if len(ownerIDs) == 0 {
		return 0, nil
	}

	query, args, err := psql.Delete(tokenTable).
		Where("owner_id = ANY(?)", pq.Array(ownerIDs)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete tokens: %w", err)
	}

	tag, err := r.DB.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ TokenRepository = (*PostgresTokenRepository)(nil)
