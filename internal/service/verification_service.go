package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/minima-lms/minima-api/internal/models"
	"github.com/minima-lms/minima-api/internal/repository"
)

// VerificationService gates entry into verification-required content. A
// learner is considered verified for a consumer while a successful check
// logged within the freshness window exists; the session endpoints hand out
// a short-lived token the external checker calls back with.
type VerificationService interface {
	Verified(ctx context.Context, userID, consumerID string) (bool, error)
	IssueToken(userID, consumerID string) (string, error)
	RecordCheck(ctx context.Context, userID, consumerID, fingerprint string, success bool) error
}

type verificationService struct {
	logs   repository.VerificationRepository
	secret string
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewVerificationService instantiates the service. ttl bounds both the
// freshness of logged checks and the issued token lifetime.
func NewVerificationService(logs repository.VerificationRepository, secret string, ttl time.Duration, logger zerolog.Logger) VerificationService {
	return &verificationService{
		logs:   logs,
		secret: secret,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (s *verificationService) Verified(ctx context.Context, userID, consumerID string) (bool, error) {
	return s.logs.HasFreshSuccess(ctx, userID, consumerID, s.now().Add(-s.ttl))
}

func (s *verificationService) IssueToken(userID, consumerID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"consumer": consumerID,
		"type":     "verification",
		"iat":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

func (s *verificationService) RecordCheck(ctx context.Context, userID, consumerID, fingerprint string, success bool) error {
	log := models.VerificationLog{
		UserID:      userID,
		ConsumerID:  consumerID,
		Fingerprint: fingerprint,
		Success:     success,
	}
	if err := s.logs.Create(ctx, &log); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("consumer_id", consumerID).
		Bool("success", success).
		Msg("verification check recorded")
	return nil
}
