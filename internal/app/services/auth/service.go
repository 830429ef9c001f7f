// Package auth implements registration, login, email verification, password
// recovery and identity-provider login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/freelancebill/freelancebill/internal/app/domain/user"
	"github.com/freelancebill/freelancebill/internal/app/metrics"
	"github.com/freelancebill/freelancebill/internal/app/storage"
	apperrors "github.com/freelancebill/freelancebill/internal/errors"
	"github.com/freelancebill/freelancebill/internal/identity"
	"github.com/freelancebill/freelancebill/internal/mail"
	"github.com/freelancebill/freelancebill/pkg/logger"
)

// IdentityVerifier validates a third-party ID token and returns its claims.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (identity.Claims, error)
}

// Links holds the base URLs embedded in verification and reset emails.
type Links struct {
	VerifyBase string
	ResetBase  string
}

// Service manages user accounts and session tokens.
type Service struct {
	users    storage.UserStore
	hasher   PasswordHasher
	tokens   *TokenIssuer
	mailer   mail.Dispatcher
	verifier IdentityVerifier
	links    Links
	log      *logger.Logger
}

// New constructs an authentication service. The verifier may be nil when
// identity-provider login is not configured.
func New(users storage.UserStore, hasher PasswordHasher, tokens *TokenIssuer, mailer mail.Dispatcher, verifier IdentityVerifier, links Links, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if mailer == nil {
		mailer = mail.NewLogDispatcher(log)
	}
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		verifier: verifier,
		links:    links,
		log:      log,
	}
}

// Register creates an unverified account and dispatches a verification mail.
func (s *Service) Register(ctx context.Context, username, password string, profile user.Profile) (user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return user.User{}, apperrors.Validation("username and password are required")
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return user.User{}, apperrors.Conflict("user already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user.User{}, apperrors.Internal("hash password", err)
	}
	token, err := newOpaqueToken()
	if err != nil {
		return user.User{}, apperrors.Internal("generate verification token", err)
	}

	u, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		PasswordHash: hash,
		Verified:     false,
		Token:        token,
		Profile:      profile,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return user.User{}, apperrors.Conflict("user already exists")
		}
		return user.User{}, err
	}

	s.sendVerificationMail(ctx, u, token)

	s.log.WithField("username", username).Info("user registered, verification pending")
	return u, nil
}

// Verify consumes a verification token. The token is single-use: it is
// cleared on success and cannot be replayed.
func (s *Service) Verify(ctx context.Context, token string) error {
	u, err := s.users.GetUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.InvalidToken(nil)
		}
		return err
	}

	u.Verified = true
	u.Token = ""
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}

	s.log.WithField("username", u.Username).Info("email verified")
	return nil
}

// Login checks credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.RecordAuthFailure("unknown_user")
			return "", apperrors.InvalidCredentials("invalid credentials")
		}
		return "", err
	}
	if !u.Verified {
		metrics.RecordAuthFailure("unverified")
		return "", apperrors.Unverified("email not verified")
	}
	if !u.HasPassword() || s.hasher.Compare(u.PasswordHash, password) != nil {
		metrics.RecordAuthFailure("bad_password")
		return "", apperrors.InvalidCredentials("invalid credentials")
	}

	token, err := s.tokens.Issue(u.Username)
	if err != nil {
		return "", apperrors.Internal("issue session token", err)
	}
	return token, nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one.
func (s *Service) ChangePassword(ctx context.Context, username, current, next string) error {
	if current == "" || next == "" {
		return apperrors.Validation("current and new password are required")
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !u.HasPassword() || s.hasher.Compare(u.PasswordHash, current) != nil {
		return apperrors.InvalidCredentials("current password is incorrect")
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return apperrors.Internal("hash password", err)
	}
	u.PasswordHash = hash
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}

	s.log.WithField("username", username).Info("password changed")
	return nil
}

// RecoverPassword stores a fresh reset token and mails a reset link. A
// missing account is reported as NotFound, so the endpoint reveals whether
// an account exists; inherited behavior, kept as-is.
func (s *Service) RecoverPassword(ctx context.Context, username string) error {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return err
	}

	token, err := newOpaqueToken()
	if err != nil {
		return apperrors.Internal("generate reset token", err)
	}
	u.Token = token
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}

	s.sendRecoveryMail(ctx, u, token)

	s.log.WithField("username", username).Info("password recovery mail dispatched")
	return nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, token, next, confirm string) error {
	u, err := s.users.GetUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.InvalidToken(nil)
		}
		return err
	}

	if next == "" || confirm == "" {
		return apperrors.Validation("both password fields are required")
	}
	if next != confirm {
		return apperrors.Validation("passwords do not match")
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return apperrors.Internal("hash password", err)
	}
	u.PasswordHash = hash
	u.Token = ""
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}

	s.log.WithField("username", u.Username).Info("password reset")
	return nil
}

// LoginWithGoogle verifies a Google ID token and returns a session token.
// The first login auto-creates a verified account without a password.
func (s *Service) LoginWithGoogle(ctx context.Context, idToken string) (string, user.User, error) {
	if s.verifier == nil {
		return "", user.User{}, apperrors.Internal("identity provider login not configured", nil)
	}

	claims, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		metrics.RecordAuthFailure("id_token")
		return "", user.User{}, apperrors.InvalidToken(err)
	}
	if claims.Email == "" {
		return "", user.User{}, apperrors.InvalidToken(fmt.Errorf("email claim missing"))
	}

	u, err := s.users.GetUserByUsername(ctx, claims.Email)
	switch {
	case err == nil:
		// existing account
	case errors.Is(err, storage.ErrNotFound):
		u, err = s.users.CreateUser(ctx, user.User{
			Username: claims.Email,
			Verified: true,
			Profile: user.Profile{
				Name:  claims.Name,
				Email: claims.Email,
			},
		})
		if err != nil {
			return "", user.User{}, err
		}
		s.log.WithField("username", claims.Email).Info("user auto-created from identity provider")
	default:
		return "", user.User{}, err
	}

	token, err := s.tokens.Issue(u.Username)
	if err != nil {
		return "", user.User{}, apperrors.Internal("issue session token", err)
	}
	return token, u, nil
}

// UpdateEmail changes the login email of an authenticated user. The account
// drops back to unverified and a fresh verification mail is sent.
func (s *Service) UpdateEmail(ctx context.Context, username, newEmail string) error {
	newEmail = strings.TrimSpace(newEmail)
	if newEmail == "" {
		return apperrors.Validation("new email is required")
	}

	if _, err := s.users.GetUserByUsername(ctx, newEmail); err == nil {
		return apperrors.Conflict("email already in use")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}

	token, err := newOpaqueToken()
	if err != nil {
		return apperrors.Internal("generate verification token", err)
	}
	u.Username = newEmail
	u.Verified = false
	u.Token = token
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return apperrors.Conflict("email already in use")
		}
		return err
	}

	s.sendVerificationMail(ctx, u, token)

	s.log.WithField("username", newEmail).Info("email updated, verification pending")
	return nil
}

func (s *Service) sendVerificationMail(ctx context.Context, u user.User, token string) {
	to := u.Profile.Email
	if to == "" {
		to = u.Username
	}
	link := strings.TrimSuffix(s.links.VerifyBase, "/") + "/" + token
	body := fmt.Sprintf("Please click the link below to verify your account:\n%s\n\n"+
		"If you did not register, you can safely ignore this email.", link)
	err := s.mailer.Send(ctx, to, "Verify Your FreelanceBill Account", body)
	metrics.RecordMailDispatch("verification", err == nil)
	if err != nil {
		s.log.WithError(err).WithField("username", u.Username).Warn("verification mail failed")
	}
}

func (s *Service) sendRecoveryMail(ctx context.Context, u user.User, token string) {
	to := u.Profile.Email
	if to == "" {
		to = u.Username
	}
	link := strings.TrimSuffix(s.links.ResetBase, "/") + "/" + token
	body := fmt.Sprintf("To reset your password, please click the link below:\n%s\n\n"+
		"If you did not request a password reset, you can safely ignore this email.", link)
	err := s.mailer.Send(ctx, to, "Reset Your FreelanceBill Password", body)
	metrics.RecordMailDispatch("recovery", err == nil)
	if err != nil {
		s.log.WithError(err).WithField("username", u.Username).Warn("recovery mail failed")
	}
}
