package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/minima-lms/minima-api/internal/models"
)

func newVerificationFixture(repo *fakeVerificationRepo, now time.Time) *verificationService {
	service := NewVerificationService(repo, "test-secret", 30*time.Minute, testLogger()).(*verificationService)
	service.now = func() time.Time { return now }
	return service
}

func TestVerifiedRequiresFreshSuccess(t *testing.T) {
	now := time.Now()
	repo := &fakeVerificationRepo{logs: []models.VerificationLog{
		{UserID: "learner-1", ConsumerID: "exam-1", Success: true, CreatedAt: now.Add(-2 * time.Hour)},
		{UserID: "learner-1", ConsumerID: "exam-2", Success: false, CreatedAt: now.Add(-time.Minute)},
	}}
	service := newVerificationFixture(repo, now)

	verified, err := service.Verified(context.Background(), "learner-1", "exam-1")
	require.NoError(t, err)
	require.False(t, verified, "the successful check is stale")

	verified, err = service.Verified(context.Background(), "learner-1", "exam-2")
	require.NoError(t, err)
	require.False(t, verified, "failed checks never verify")

	require.NoError(t, service.RecordCheck(context.Background(), "learner-1", "exam-1", "fp-1", true))
	verified, err = service.Verified(context.Background(), "learner-1", "exam-1")
	require.NoError(t, err)
	require.True(t, verified)
}

func TestIssueTokenCarriesVerificationClaims(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	service := newVerificationFixture(&fakeVerificationRepo{}, now)

	signed, err := service.IssueToken("learner-1", "exam-1")
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, "learner-1", claims["sub"])
	require.Equal(t, "exam-1", claims["consumer"])
	require.Equal(t, "verification", claims["type"])
	require.Equal(t, float64(now.Add(30*time.Minute).Unix()), claims["exp"])
}
