package db

import (
	"context"
	"fmt"

	"github.com/senyabanana/vendor-engagement/internal/router/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitDb инициализирует подключение к базе данных и возвращает пул соединений.
func InitDb(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.PostgresConn == "" && (cfg.PostgresUser == "" || cfg.PostgresPass == "" || cfg.PostgresHost == "" || cfg.PostgresPort == "" || cfg.PostgresDB == "") {
		return nil, fmt.Errorf("one or more database connection environment variables are missing")
	}
	databaseUrl := ConnString(cfg)

	dbPool, err := pgxpool.New(ctx, databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("database is not reachable: %v", err)
	}
	return dbPool, nil
}

// ConnString возвращает строку подключения для миграций.
func ConnString(cfg config.Config) string {
	if cfg.PostgresConn != "" {
		return cfg.PostgresConn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.PostgresUser, cfg.PostgresPass, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
}
