// Package tokens выдаёт и проверяет одноразовые по владельцу секреты для портала поставщиков.
package tokens

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/repository"
)

// tokenBytes - длина секрета до кодирования.
const tokenBytes = 32

// Service - сервис токенов доступа к порталу.
type Service struct {
	Repo    repository.TokenRepository
	TTLDays int
	Logger  *log.Logger
}

// NewService создаёт новый экземпляр Service.
func NewService(repo repository.TokenRepository, ttlDays int, logger *log.Logger) *Service {
	if ttlDays <= 0 {
		ttlDays = models.DefaultTokenTTLDays
	}
	return &Service{Repo: repo, TTLDays: ttlDays, Logger: logger}
}

// Generate возвращает случайный секрет в base64url без выравнивания.
func Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue выдаёт новый токен владельцу. Предыдущий токен владельца перестаёт действовать сразу.
// ttlDays <= 0 означает срок по умолчанию.
func (s *Service) Issue(ctx context.Context, ownerID string, ttlDays int, now time.Time) (models.AccessToken, error) {
	if ownerID == "" {
		return models.AccessToken{}, models.NewValidationError("token owner is required")
	}
	if ttlDays <= 0 {
		ttlDays = s.TTLDays
	}

	secret, err := Generate()
	if err != nil {
		return models.AccessToken{}, err
	}

	token := models.AccessToken{
		OwnerID:  ownerID,
		Token:    secret,
		Expiry:   now.AddDate(0, 0, ttlDays),
		IssuedAt: now,
	}
	if err = s.Repo.PutToken(ctx, token); err != nil {
		return models.AccessToken{}, err
	}
	return token, nil
}

// Validate сообщает, что у владельца есть токен, он совпадает с переданным и ещё не истёк.
// Ошибки хранилища логируются и дают false.
func (s *Service) Validate(ctx context.Context, ownerID, supplied string, now time.Time) bool {
	if ownerID == "" || supplied == "" {
		return false
	}

	stored, err := s.Repo.GetToken(ctx, ownerID)
	if err != nil {
		if models.KindOf(err) != models.KindNotFound && s.Logger != nil {
			s.Logger.Printf("token lookup failed owner=%s err=%v", ownerID, err)
		}
		return false
	}

	if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(supplied)) != 1 {
		return false
	}
	return now.Before(stored.Expiry)
}

// Revoke удаляет токены владельцев.
func (s *Service) Revoke(ctx context.Context, ownerIDs ...string) (int64, error) {
	return s.Repo.DeleteTokens(ctx, ownerIDs...)
}
