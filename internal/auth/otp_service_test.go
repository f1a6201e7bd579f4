package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coinsora/server/internal/database/testutil"
	"github.com/coinsora/server/internal/models"
	"github.com/coinsora/server/pkg/crypto"
	apperrors "github.com/coinsora/server/pkg/errors"
	"github.com/coinsora/server/pkg/mail"
)

type fakeMailer struct {
	mu       sync.Mutex
	sent     []mail.Message
	failWith error
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func fixedOTP(code string) func() (string, error) {
	return func() (string, error) { return code, nil }
}

func newTestService(t *testing.T, db *gorm.DB, mailer mail.Mailer, opts ...Option) *OTPService {
	t.Helper()
	svc, err := NewOTPService(db, mailer, opts...)
	require.NoError(t, err)
	return svc
}

func countChallenges(t *testing.T, db *gorm.DB, contact string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.PendingChallenge{}).
		Where("contact = ?", contact).Count(&count).Error)
	return count
}

func TestBeginSignupRejectsMissingFields(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newTestService(t, db, &fakeMailer{})

	for _, input := range []BeginSignupInput{
		{Contact: "ann@x.com", Password: "pw123"},
		{Name: "Ann", Password: "pw123"},
		{Name: "Ann", Contact: "ann@x.com"},
	} {
		err := svc.BeginSignup(context.Background(), input)
		require.ErrorIs(t, err, apperrors.ErrValidation)
	}

	require.Equal(t, int64(0), countChallenges(t, db, "ann@x.com"))
}

func TestBeginSignupRejectsDuplicateContact(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	require.NoError(t, db.Create(&models.User{
		Name: "Ann", Contact: "ann@x.com", Password: "hash", Verified: true,
	}).Error)

	svc := newTestService(t, db, &fakeMailer{})

	err := svc.BeginSignup(context.Background(), BeginSignupInput{
		Name: "Ann", Contact: "ann@x.com", Password: "pw123",
	})
	require.ErrorIs(t, err, apperrors.ErrDuplicateUser)
}

func TestBeginSignupPersistsChallengeAndSendsOTP(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &fakeMailer{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	svc := newTestService(t, db, mailer,
		WithClock(func() time.Time { return now }),
		WithGenerator(fixedOTP("123456")),
	)

	require.NoError(t, svc.BeginSignup(context.Background(), BeginSignupInput{
		Name: "Ann", Contact: "ann@x.com", Password: "pw123",
	}))

	var challenge models.PendingChallenge
	require.NoError(t, db.Where("contact = ?", "ann@x.com").Take(&challenge).Error)
	require.Equal(t, "123456", challenge.OTP)
	require.False(t, challenge.LoginOTP)
	require.Equal(t, "Ann", challenge.Name)
	require.True(t, crypto.VerifyPassword(challenge.Password, "pw123"))
	require.WithinDuration(t, now.Add(5*time.Minute), challenge.ExpiresAt, time.Second)

	require.Equal(t, 1, mailer.sentCount())
	require.Contains(t, mailer.sent[0].Body, "123456")
}

func TestBeginSignupReplacesExistingChallenge(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &fakeMailer{}
	svc := newTestService(t, db, mailer, WithGenerator(fixedOTP("111111")))

	ctx := context.Background()
	input := BeginSignupInput{Name: "Ann", Contact: "ann@x.com", Password: "pw123"}

	require.NoError(t, svc.BeginSignup(ctx, input))

	second := newTestService(t, db, mailer, WithGenerator(fixedOTP("222222")))
	require.NoError(t, second.BeginSignup(ctx, input))

	require.Equal(t, int64(1), countChallenges(t, db, "ann@x.com"))

	var challenge models.PendingChallenge
	require.NoError(t, db.Where("contact = ?", "ann@x.com").Take(&challenge).Error)
	require.Equal(t, "222222", challenge.OTP)
}

func TestBeginSignupRollsBackChallengeOnSendFailure(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	cause := errors.New("smtp timeout")
	svc := newTestService(t, db, &fakeMailer{failWith: cause})

	err := svc.BeginSignup(context.Background(), BeginSignupInput{
		Name: "Ann", Contact: "ann@x.com", Password: "pw123",
	})
	require.ErrorIs(t, err, cause)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrOTPDelivery.Code, appErr.Code)

	require.Equal(t, int64(0), countChallenges(t, db, "ann@x.com"))
}

func TestVerifySignupCreatesVerifiedUserAndConsumesChallenge(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newTestService(t, db, &fakeMailer{}, WithGenerator(fixedOTP("654321")))
	ctx := context.Background()

	require.NoError(t, svc.BeginSignup(ctx, BeginSignupInput{
		Name: "Ann", Contact: "ann@x.com", Password: "pw123",
	}))

	user, err := svc.VerifySignup(ctx, "ann@x.com", "654321")
	require.NoError(t, err)
	require.True(t, user.Verified)
	require.Equal(t, "Ann", user.Name)
	require.Equal(t, models.DefaultProfileImage, user.Image)
	require.NotEmpty(t, user.ID)

	require.Equal(t, int64(0), countChallenges(t, db, "ann@x.com"))

	// A second attempt with the same code finds no challenge.
	_, err = svc.VerifySignup(ctx, "ann@x.com", "654321")
	require.ErrorIs(t, err, apperrors.ErrChallengeNotFound)
}

func TestVerifySignupWrongOTPKeepsChallenge(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newTestService(t, db, &fakeMailer{}, WithGenerator(fixedOTP("654321")))
	ctx := context.Background()

	require.NoError(t, svc.BeginSignup(ctx, BeginSignupInput{
		Name: "Ann", Contact: "ann@x.com", Password: "pw123",
	}))

	_, err := svc.VerifySignup(ctx, "ann@x.com", "000000")
	require.ErrorIs(t, err, apperrors.ErrOTPInvalid)
	require.Equal(t, int64(1), countChallenges(t, db, "ann@x.com"))

	// The correct code still works after a failed guess.
	user, err := svc.VerifySignup(ctx, "ann@x.com", "654321")
	require.NoError(t, err)
	require.True(t, user.Verified)
}

func TestVerifySignupExpiredDeletesChallenge(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	svc := newTestService(t, db, &fakeMailer{},
		WithClock(func() time.Time { return *clock }),
		WithGenerator(fixedOTP("654321")),
	)
	ctx := context.Background()

	require.NoError(t, svc.BeginSignup(ctx, BeginSignupInput{
		Name: "Ann", Contact: "ann@x.com", Password: "pw123",
	}))

	later := now.Add(5*time.Minute + time.Second)
	clock = &later

	_, err := svc.VerifySignup(ctx, "ann@x.com", "654321")
	require.ErrorIs(t, err, apperrors.ErrOTPExpired)

	// The whole challenge, name and password included, is discarded.
	require.Equal(t, int64(0), countChallenges(t, db, "ann@x.com"))

	_, err = svc.VerifySignup(ctx, "ann@x.com", "654321")
	require.ErrorIs(t, err, apperrors.ErrChallengeNotFound)
}

func TestVerifySignupAcceptedAtBoundary(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	svc := newTestService(t, db, &fakeMailer{},
		WithClock(func() time.Time { return *clock }),
		WithGenerator(fixedOTP("654321")),
	)
	ctx := context.Background()

	require.NoError(t, svc.BeginSignup(ctx, BeginSignupInput{
		Name: "Ann", Contact: "ann@x.com", Password: "pw123",
	}))

	// Exactly at expiry is still valid; only strictly-after lapses.
	boundary := now.Add(5 * time.Minute)
	clock = &boundary

	user, err := svc.VerifySignup(ctx, "ann@x.com", "654321")
	require.NoError(t, err)
	require.True(t, user.Verified)
}

func TestBeginLoginOTPRequiresExistingUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newTestService(t, db, &fakeMailer{})

	err := svc.BeginLoginOTP(context.Background(), "ghost@x.com")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestLoginOTPRoundTrip(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &fakeMailer{}
	svc := newTestService(t, db, mailer, WithGenerator(fixedOTP("314159")))
	ctx := context.Background()

	hash, err := crypto.HashPassword("pw123")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Name: "Ann", Contact: "ann@x.com", Password: hash, Verified: true,
	}).Error)

	require.NoError(t, svc.BeginLoginOTP(ctx, "ann@x.com"))

	var challenge models.PendingChallenge
	require.NoError(t, db.Where("contact = ?", "ann@x.com").Take(&challenge).Error)
	require.True(t, challenge.LoginOTP)
	require.Empty(t, challenge.Name)
	require.Empty(t, challenge.Password)

	profile, err := svc.VerifyLoginOTP(ctx, "ann@x.com", "314159")
	require.NoError(t, err)
	require.Equal(t, "Ann", profile.Name)
	require.Equal(t, "ann@x.com", profile.Contact)
	require.NotEmpty(t, profile.ID)

	require.Equal(t, int64(0), countChallenges(t, db, "ann@x.com"))

	// Users table untouched apart from the pre-existing row.
	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.Equal(t, int64(1), users)
}

func TestVerifyLoginOTPIgnoresSignupChallenges(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newTestService(t, db, &fakeMailer{}, WithGenerator(fixedOTP("314159")))
	ctx := context.Background()

	require.NoError(t, svc.BeginSignup(ctx, BeginSignupInput{
		Name: "Ann", Contact: "ann@x.com", Password: "pw123",
	}))

	_, err := svc.VerifyLoginOTP(ctx, "ann@x.com", "314159")
	require.ErrorIs(t, err, apperrors.ErrChallengeNotFound)
}

func TestBeginLoginOTPRollsBackChallengeOnSendFailure(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	require.NoError(t, db.Create(&models.User{
		Name: "Ann", Contact: "ann@x.com", Password: "hash", Verified: true,
	}).Error)

	svc := newTestService(t, db, &fakeMailer{failWith: errors.New("relay refused")})

	err := svc.BeginLoginOTP(context.Background(), "ann@x.com")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrOTPDelivery.Code, appErr.Code)

	require.Equal(t, int64(0), countChallenges(t, db, "ann@x.com"))
}

func TestLoginWithPassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newTestService(t, db, &fakeMailer{})
	ctx := context.Background()

	hash, err := crypto.HashPassword("pw123")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Name: "Ann", Contact: "ann@x.com", Password: hash, Verified: true,
	}).Error)

	profile, err := svc.Login(ctx, "ann@x.com", "pw123")
	require.NoError(t, err)
	require.Equal(t, "Ann", profile.Name)
	require.Equal(t, models.DefaultProfileImage, profile.Image)

	_, err = svc.Login(ctx, "ann@x.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "ghost@x.com", "pw123")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestSweepExpiredRemovesOnlyLapsedChallenges(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := newTestService(t, db, &fakeMailer{})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	rows := []models.PendingChallenge{
		{Contact: "old@x.com", OTP: "111111", ExpiresAt: now.Add(-time.Minute)},
		{Contact: "older@x.com", OTP: "222222", ExpiresAt: now.Add(-time.Hour), LoginOTP: true},
		{Contact: "live@x.com", OTP: "333333", ExpiresAt: now.Add(time.Minute)},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	removed, err := svc.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	require.Equal(t, int64(0), countChallenges(t, db, "old@x.com"))
	require.Equal(t, int64(0), countChallenges(t, db, "older@x.com"))
	require.Equal(t, int64(1), countChallenges(t, db, "live@x.com"))
}
