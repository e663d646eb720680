// Package auth checks credentials, issues session tokens and manages MFA
// enrolment for the portal's seed users.
package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/apperr"
	"github.com/Checker-Finance/client-portal/internal/latency"
	"github.com/Checker-Finance/client-portal/internal/metrics"
	"github.com/Checker-Finance/client-portal/internal/repository"
	"github.com/Checker-Finance/client-portal/internal/session"
	"github.com/Checker-Finance/client-portal/pkg/model"
	"github.com/Checker-Finance/client-portal/pkg/utils"
)

// MFACodeLength is the only accepted second-factor code length.
const MFACodeLength = 6

const (
	totpIssuer = "Client Portal"
	qrSize     = 200
)

// Service implements the portal's authentication operations.
type Service struct {
	users      repository.UserRepository
	tokens     *TokenIssuer
	latency    *latency.Simulator
	bcryptCost int
	logger     *zap.Logger
}

var _ session.Authenticator = (*Service)(nil)

// NewService wires the auth service.
func NewService(users repository.UserRepository, tokens *TokenIssuer, lat *latency.Simulator, bcryptCost int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:      users,
		tokens:     tokens,
		latency:    lat,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Tokens returns the issuer used to sign session tokens.
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Login checks email and password. The returned token is a pending token
// when the user still has to pass MFA.
func (s *Service) Login(ctx context.Context, email, password string) (model.LoginResult, error) {
	defer metrics.ObserveDuration(metrics.ServiceDuration, time.Now(), "auth", "login")
	if err := s.latency.Wait(ctx); err != nil {
		return model.LoginResult{}, err
	}

	rec, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		metrics.IncLogin("password", "rejected")
		if errors.Is(err, apperr.ErrNotFound) {
			return model.LoginResult{}, apperr.InvalidCredentials("invalid credentials")
		}
		return model.LoginResult{}, err
	}
	if !CheckPassword(rec.PasswordHash, password) {
		metrics.IncLogin("password", "rejected")
		s.logger.Info("auth.login.bad_password", zap.String("email", utils.MaskEmail(email)))
		return model.LoginResult{}, apperr.InvalidCredentials("invalid credentials")
	}

	stage := StageSession
	if rec.User.RequiresMFA {
		stage = StagePending
	}
	token, err := s.tokens.Issue(rec.User, stage)
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	metrics.IncLogin("password", "ok")
	return model.LoginResult{User: rec.User, RequiresMFA: rec.User.RequiresMFA, Token: token}, nil
}

// VerifyMFA accepts any code of exactly six characters and issues a fresh
// session token.
func (s *Service) VerifyMFA(ctx context.Context, userID, code string) (model.MFAResult, error) {
	defer metrics.ObserveDuration(metrics.ServiceDuration, time.Now(), "auth", "verify_mfa")
	if err := s.latency.Wait(ctx); err != nil {
		return model.MFAResult{}, err
	}

	if len(code) != MFACodeLength {
		metrics.IncLogin("mfa", "rejected")
		return model.MFAResult{}, apperr.InvalidMFACode("invalid MFA code")
	}
	rec, err := s.users.GetByID(ctx, userID)
	if err != nil {
		metrics.IncLogin("mfa", "rejected")
		return model.MFAResult{}, err
	}
	token, err := s.tokens.Issue(rec.User, StageSession)
	if err != nil {
		return model.MFAResult{}, fmt.Errorf("issue token: %w", err)
	}

	metrics.IncLogin("mfa", "ok")
	return model.MFAResult{User: rec.User, Token: token, Verified: true}, nil
}

// SetupMFA enrols a TOTP authenticator for userID and returns the QR code
// as a PNG data URL.
func (s *Service) SetupMFA(ctx context.Context, userID string) (model.MFASetup, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return model.MFASetup{}, err
	}
	rec, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.MFASetup{}, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: rec.User.Email,
	})
	if err != nil {
		return model.MFASetup{}, fmt.Errorf("generate totp key: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return model.MFASetup{}, fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return model.MFASetup{}, fmt.Errorf("encode qr code: %w", err)
	}

	rec.MFASecret = key.Secret()
	if err := s.users.Save(ctx, rec); err != nil {
		return model.MFASetup{}, err
	}

	s.logger.Info("auth.mfa.enrolled", zap.String("user_id", userID))
	return model.MFASetup{
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Secret: key.Secret(),
		URL:    key.URL(),
	}, nil
}

// ResetPassword pretends to send a reset email to a known user.
func (s *Service) ResetPassword(ctx context.Context, email string) (string, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return "", err
	}
	if strings.TrimSpace(email) == "" {
		return "", apperr.InvalidInput("email is required")
	}
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		return "", err
	}
	s.logger.Info("auth.password_reset.requested", zap.String("email", utils.MaskEmail(email)))
	return "Password reset email sent", nil
}

// ChangePassword replaces the password of userID after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := s.latency.Wait(ctx); err != nil {
		return err
	}
	if newPassword == "" {
		return apperr.InvalidInput("new password is required")
	}
	rec, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(rec.PasswordHash, oldPassword) {
		return apperr.InvalidCredentials("invalid old password")
	}
	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	rec.PasswordHash = hash
	if err := s.users.Save(ctx, rec); err != nil {
		return err
	}
	s.logger.Info("auth.password.changed", zap.String("user_id", userID))
	return nil
}

// Logout ends the session held by sc.
func (s *Service) Logout(ctx context.Context, sc *session.Context) error {
	if sc == nil {
		return nil
	}
	return sc.Logout(ctx)
}

// GetCurrentUser returns the user persisted in st, or nil.
func (s *Service) GetCurrentUser(ctx context.Context, st *session.Storage) (*model.User, error) {
	return st.User(ctx)
}

// GetToken returns the token persisted in st, or "".
func (s *Service) GetToken(ctx context.Context, st *session.Storage) (string, error) {
	return st.Token(ctx)
}
