package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coinsora/server/internal/models"
	"github.com/coinsora/server/pkg/crypto"
	apperrors "github.com/coinsora/server/pkg/errors"
	"github.com/coinsora/server/pkg/logger"
	"github.com/coinsora/server/pkg/mail"
)

const defaultChallengeTTL = 5 * time.Minute

// Profile is the public account shape returned by successful logins.
type Profile struct {
	ID      string `json:"userId"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Image   string `json:"image"`
}

// BeginSignupInput captures the details required to start a signup challenge.
type BeginSignupInput struct {
	Name     string
	Contact  string
	Password string
}

// Option customises the OTPService.
type Option func(*OTPService)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *OTPService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithGenerator overrides the OTP code generator, primarily for tests.
func WithGenerator(generate func() (string, error)) Option {
	return func(s *OTPService) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// WithChallengeTTL adjusts the challenge validity window.
func WithChallengeTTL(ttl time.Duration) Option {
	return func(s *OTPService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// OTPService drives the signup and login OTP verification flows. It owns the
// pending challenge lifecycle: a challenge is created by Begin*, and consumed
// exactly once by a successful Verify*, an expired Verify*, or the sweeper.
type OTPService struct {
	db       *gorm.DB
	mailer   mail.Mailer
	clock    func() time.Time
	generate func() (string, error)
	ttl      time.Duration
	log      *zap.Logger
}

// NewOTPService constructs an OTPService with production defaults.
func NewOTPService(db *gorm.DB, mailer mail.Mailer, opts ...Option) (*OTPService, error) {
	if db == nil {
		return nil, errors.New("otp service: db is required")
	}
	if mailer == nil {
		return nil, errors.New("otp service: mailer is required")
	}

	svc := &OTPService{
		db:       db,
		mailer:   mailer,
		clock:    time.Now,
		generate: crypto.GenerateOTP,
		ttl:      defaultChallengeTTL,
		log:      logger.WithModule("auth"),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// BeginSignup starts a signup challenge: it validates the input, rejects
// duplicate contacts, persists a fresh challenge, and mails the code. The
// challenge is written before the send so a successful send always has a
// matching row; a failed send rolls the row back.
func (s *OTPService) BeginSignup(ctx context.Context, input BeginSignupInput) error {
	name := strings.TrimSpace(input.Name)
	contact := strings.TrimSpace(input.Contact)
	if name == "" || contact == "" || input.Password == "" {
		return apperrors.ErrValidation
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("contact = ?", contact).
		Count(&count).Error; err != nil {
		return fmt.Errorf("otp service: check existing user: %w", err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateUser
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return fmt.Errorf("otp service: hash password: %w", err)
	}

	otp, err := s.generate()
	if err != nil {
		return fmt.Errorf("otp service: %w", err)
	}

	challenge := models.PendingChallenge{
		Contact:   contact,
		OTP:       otp,
		ExpiresAt: s.clock().UTC().Add(s.ttl),
		LoginOTP:  false,
		Name:      name,
		Password:  hashed,
	}

	if err := s.replaceChallenge(ctx, contact, &challenge); err != nil {
		return err
	}

	return s.deliver(ctx, contact, otp)
}

// VerifySignup checks a submitted signup OTP and, on success, creates the
// verified user from the challenge payload. This is the only path that
// creates User rows.
func (s *OTPService) VerifySignup(ctx context.Context, contact, otp string) (*models.User, error) {
	challenge, err := s.findChallenge(ctx, contact, false)
	if err != nil {
		return nil, err
	}

	if err := s.checkChallenge(ctx, challenge, otp); err != nil {
		return nil, err
	}

	user := models.User{
		Name:     challenge.Name,
		Contact:  challenge.Contact,
		Password: challenge.Password,
		Verified: true,
		Image:    models.DefaultProfileImage,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("otp service: create user: %w", err)
		}
		if err := tx.Where("contact = ?", contact).
			Delete(&models.PendingChallenge{}).Error; err != nil {
			return fmt.Errorf("otp service: consume challenge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// BeginLoginOTP starts a login challenge for an existing account. The
// generate/replace/persist/send protocol matches signup, with no payload.
func (s *OTPService) BeginLoginOTP(ctx context.Context, contact string) error {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return apperrors.ErrUserNotFound
	}

	if _, err := s.findUser(ctx, contact); err != nil {
		return err
	}

	otp, err := s.generate()
	if err != nil {
		return fmt.Errorf("otp service: %w", err)
	}

	challenge := models.PendingChallenge{
		Contact:   contact,
		OTP:       otp,
		ExpiresAt: s.clock().UTC().Add(s.ttl),
		LoginOTP:  true,
	}

	if err := s.replaceChallenge(ctx, contact, &challenge); err != nil {
		return err
	}

	return s.deliver(ctx, contact, otp)
}

// VerifyLoginOTP checks a submitted login OTP and returns the account profile
// on success. The credential store is never mutated here.
func (s *OTPService) VerifyLoginOTP(ctx context.Context, contact, otp string) (*Profile, error) {
	challenge, err := s.findChallenge(ctx, contact, true)
	if err != nil {
		return nil, err
	}

	if err := s.checkChallenge(ctx, challenge, otp); err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, contact)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Where("contact = ?", contact).
		Delete(&models.PendingChallenge{}).Error; err != nil {
		return nil, fmt.Errorf("otp service: consume challenge: %w", err)
	}

	return profileOf(user), nil
}

// Login authenticates with contact and password directly.
func (s *OTPService) Login(ctx context.Context, contact, password string) (*Profile, error) {
	user, err := s.findUser(ctx, strings.TrimSpace(contact))
	if err != nil {
		return nil, err
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return profileOf(user), nil
}

// SweepExpired removes every challenge whose expiry lies strictly before now,
// regardless of type. Used by the background reclaimer.
func (s *OTPService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Delete(&models.PendingChallenge{})
	if result.Error != nil {
		return 0, fmt.Errorf("otp service: sweep expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// replaceChallenge enforces at most one pending challenge per contact.
func (s *OTPService) replaceChallenge(ctx context.Context, contact string, challenge *models.PendingChallenge) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contact = ?", contact).
			Delete(&models.PendingChallenge{}).Error; err != nil {
			return fmt.Errorf("otp service: clear stale challenge: %w", err)
		}
		if err := tx.Create(challenge).Error; err != nil {
			return fmt.Errorf("otp service: persist challenge: %w", err)
		}
		return nil
	})
}

// deliver mails the code, deleting the freshly persisted challenge if the
// transport fails so no unusable challenge is left behind.
func (s *OTPService) deliver(ctx context.Context, contact, otp string) error {
	if err := s.mailer.Send(ctx, mail.OTPMessage(contact, otp)); err != nil {
		if delErr := s.db.WithContext(ctx).Where("contact = ?", contact).
			Delete(&models.PendingChallenge{}).Error; delErr != nil {
			s.log.Warn("failed to roll back challenge after send failure",
				zap.String("contact", contact), zap.Error(delErr))
		}
		return apperrors.ErrOTPDelivery.WithInternal(err)
	}
	return nil
}

func (s *OTPService) findChallenge(ctx context.Context, contact string, loginOTP bool) (*models.PendingChallenge, error) {
	var challenge models.PendingChallenge
	err := s.db.WithContext(ctx).
		Where("contact = ? AND login_otp = ?", strings.TrimSpace(contact), loginOTP).
		Take(&challenge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp service: query challenge: %w", err)
	}
	return &challenge, nil
}

// checkChallenge applies the expiry and code match rules: an expired
// challenge is deleted wholesale, a wrong-but-unexpired code keeps the
// challenge intact so the caller may retry.
func (s *OTPService) checkChallenge(ctx context.Context, challenge *models.PendingChallenge, otp string) error {
	if challenge.Expired(s.clock()) {
		if err := s.db.WithContext(ctx).Where("contact = ?", challenge.Contact).
			Delete(&models.PendingChallenge{}).Error; err != nil {
			return fmt.Errorf("otp service: discard expired challenge: %w", err)
		}
		return apperrors.ErrOTPExpired
	}

	if challenge.OTP != otp {
		return apperrors.ErrOTPInvalid
	}

	return nil
}

func (s *OTPService) findUser(ctx context.Context, contact string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("contact = ?", contact).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp service: query user: %w", err)
	}
	return &user, nil
}

func profileOf(user *models.User) *Profile {
	image := user.Image
	if image == "" {
		image = models.DefaultProfileImage
	}
	return &Profile{
		ID:      user.ID,
		Name:    user.Name,
		Contact: user.Contact,
		Image:   image,
	}
}
