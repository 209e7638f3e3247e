package clinic

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/intake/intake/internal/platform/auth"
	"github.com/intake/intake/internal/platform/db"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrInvalidResetToken  = errors.New("invalid or expired token")
	ErrSelfDeactivation   = errors.New("cannot deactivate your own account")
)

// ResetTokenTTL bounds how long a password reset token stays valid.
const ResetTokenTTL = time.Hour

type Service struct {
	clinics ClinicRepository
	users   UserRepository
	tx      db.TxRunner
	tokens  *auth.TokenIssuer
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(clinics ClinicRepository, users UserRepository, tx db.TxRunner, tokens *auth.TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		clinics: clinics,
		users:   users,
		tx:      tx,
		tokens:  tokens,
		logger:  logger.With().Str("component", "clinic").Logger(),
		now:     time.Now,
	}
}

// Session is the result of registration and login.
type Session struct {
	User   *User   `json:"user"`
	Clinic *Clinic `json:"clinic"`
	auth.TokenPair
}

type RegisterInput struct {
	ClinicName string  `json:"clinicName"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("valid email is required")
	}
	return email, nil
}

func (in *RegisterInput) validate() error {
	var err error
	if strings.TrimSpace(in.ClinicName) == "" {
		return invalid("clinic name is required")
	}
	if in.Email, err = normalizeEmail(in.Email); err != nil {
		return err
	}
	if len(in.Password) < auth.MinPasswordLength {
		return invalid("password must be at least %d characters", auth.MinPasswordLength)
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return invalid("first name is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		return invalid("last name is required")
	}
	return nil
}

// Register creates a clinic and its first admin user in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, invalid("%v", err)
	}

	c := &Clinic{
		Name:               strings.TrimSpace(in.ClinicName),
		Email:              in.Email,
		Phone:              in.Phone,
		Address:            in.Address,
		SubscriptionStatus: SubscriptionTrial,
		Settings:           DefaultSettings(),
	}
	u := &User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         auth.RoleAdmin,
		IsActive:     true,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
			return ErrEmailTaken
		} else if !db.IsNoRows(err) {
			return fmt.Errorf("lookup email: %w", err)
		}
		if err := s.clinics.Create(ctx, c); err != nil {
			return fmt.Errorf("create clinic: %w", err)
		}
		u.ClinicID = c.ID
		if err := s.users.Create(ctx, u); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.Issue(u.ID, c.ID, u.Role)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("clinic_id", c.ID.String()).Str("user_id", u.ID.String()).Msg("clinic registered")
	return &Session{User: u, Clinic: c, TokenPair: pair}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}

	c, err := s.clinics.GetByID(ctx, u.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic: %w", err)
	}
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	u.LastLogin = &now

	pair, err := s.tokens.Issue(u.ID, c.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Clinic: c, TokenPair: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The user must still be active.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	if refreshToken == "" {
		return auth.TokenPair{}, auth.ErrInvalidToken
	}
	claims, err := s.tokens.Parse(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return auth.TokenPair{}, err
	}
	id, err := claims.Identity()
	if err != nil {
		return auth.TokenPair{}, err
	}
	u, err := s.users.GetByID(ctx, id.ClinicID, id.UserID)
	if err != nil || !u.IsActive {
		return auth.TokenPair{}, auth.ErrInvalidToken
	}
	return s.tokens.Issue(u.ID, u.ClinicID, u.Role)
}

// CheckUser backs the JWT middleware: the user must exist and be active, and
// the returned identity carries the role as currently stored.
func (s *Service) CheckUser(ctx context.Context, id auth.Identity) (auth.Identity, error) {
	u, err := s.users.GetByID(ctx, id.ClinicID, id.UserID)
	if err != nil {
		return auth.Identity{}, err
	}
	if !u.IsActive {
		return auth.Identity{}, ErrAccountDisabled
	}
	id.Role = u.Role
	return id, nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ForgotPassword stores a hashed reset token for the user and returns the
// raw token. Unknown emails yield an empty token and no error.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)
	if err := s.users.SetResetToken(ctx, u.ID, hashResetToken(token), s.now().Add(ResetTokenTTL)); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	s.logger.Info().Str("user_id", u.ID.String()).Msg("password reset requested")
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return invalid("token is required")
	}
	if len(password) < auth.MinPasswordLength {
		return invalid("password must be at least %d characters", auth.MinPasswordLength)
	}
	u, err := s.users.GetByResetToken(ctx, hashResetToken(token))
	if err != nil {
		if db.IsNoRows(err) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if u.ResetTokenExpires == nil || !s.now().Before(*u.ResetTokenExpires) {
		return ErrInvalidResetToken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return invalid("%v", err)
	}
	if err := s.users.SetPassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	s.logger.Info().Str("user_id", u.ID.String()).Msg("password reset")
	return nil
}

// -- Clinic --

func (s *Service) GetClinic(ctx context.Context, clinicID uuid.UUID) (*Clinic, error) {
	c, err := s.clinics.GetByID(ctx, clinicID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateClinic(ctx context.Context, clinicID uuid.UUID, patch ClinicPatch) (*Clinic, error) {
	c, err := s.GetClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	patch.apply(c)
	if strings.TrimSpace(c.Name) == "" {
		return nil, invalid("clinic name is required")
	}
	if c.Settings.ReminderDaysBefore < 0 {
		return nil, invalid("reminderDaysBefore must not be negative")
	}
	if err := s.clinics.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update clinic: %w", err)
	}
	return c, nil
}

// -- Users --

type CreateUserInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func (s *Service) GetUser(ctx context.Context, clinicID, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, clinicID, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*User, int, error) {
	return s.users.ListByClinic(ctx, clinicID, limit, offset)
}

func (s *Service) CreateUser(ctx context.Context, clinicID uuid.UUID, in CreateUserInput) (*User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = auth.RoleStaff
	}
	if !auth.ValidRole(in.Role) {
		return nil, invalid("invalid role: %s", in.Role)
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, invalid("first and last name are required")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, invalid("%v", err)
	}
	u := &User{
		ClinicID:     clinicID,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UpdateUser applies patch to a user of the clinic. actorID is the caller;
// an admin cannot deactivate themselves.
func (s *Service) UpdateUser(ctx context.Context, clinicID, actorID, id uuid.UUID, patch UserPatch) (*User, error) {
	u, err := s.GetUser(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if patch.Role != nil && !auth.ValidRole(*patch.Role) {
		return nil, invalid("invalid role: %s", *patch.Role)
	}
	if id == actorID && patch.IsActive != nil && !*patch.IsActive {
		return nil, ErrSelfDeactivation
	}
	patch.apply(u)
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *Service) DeactivateUser(ctx context.Context, clinicID, actorID, id uuid.UUID) (*User, error) {
	inactive := false
	return s.UpdateUser(ctx, clinicID, actorID, id, UserPatch{IsActive: &inactive})
}
