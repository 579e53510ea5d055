package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/senyabanana/vendor-engagement/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// psql - построитель запросов с плейсхолдерами $1, $2, ...
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// DBTX - методы пула соединений, которыми пользуются репозитории.
// *pgxpool.Pool реализует его целиком.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// rowScanner объединяет pgx.Row и pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// isNoRows проверяет, что запрос не вернул строк.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// validID отсекает идентификаторы, которые не являются UUID. Записи с таким ключом
// в базе нет, поэтому ответ - NotFound, а не ошибка приведения типа от Postgres.
func validID(entity, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.NewNotFound(entity, id)
	}
	return nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
