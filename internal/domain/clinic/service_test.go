package clinic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/intake/intake/internal/platform/auth"
)

// -- Mock Repositories --

type mockClinicRepo struct {
	store map[uuid.UUID]*Clinic
}

func newMockClinicRepo() *mockClinicRepo {
	return &mockClinicRepo{store: make(map[uuid.UUID]*Clinic)}
}

func (m *mockClinicRepo) Create(_ context.Context, c *Clinic) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *mockClinicRepo) GetByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	c, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *mockClinicRepo) Update(_ context.Context, c *Clinic) error {
	if _, ok := m.store[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

type mockUserRepo struct {
	store map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{store: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.store {
		if existing.Email == u.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, clinicID, id uuid.UUID) (*User, error) {
	u, ok := m.store[id]
	if !ok || u.ClinicID != clinicID {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.store {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByResetToken(_ context.Context, tokenHash string) (*User, error) {
	for _, u := range m.store {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.store[u.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.store[id].LastLogin = &at
	return nil
}

func (m *mockUserRepo) SetPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	u := m.store[id]
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.ResetTokenExpires = nil
	return nil
}

func (m *mockUserRepo) SetResetToken(_ context.Context, id uuid.UUID, tokenHash string, expires time.Time) error {
	u := m.store[id]
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpires = &expires
	return nil
}

func (m *mockUserRepo) ListByClinic(_ context.Context, clinicID uuid.UUID, limit, offset int) ([]*User, int, error) {
	var r []*User
	for _, u := range m.store {
		if u.ClinicID == clinicID {
			r = append(r, u)
		}
	}
	return r, len(r), nil
}

type inlineTx struct{}

func (inlineTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func newTestService() (*Service, *mockUserRepo) {
	users := newMockUserRepo()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour, 24*time.Hour)
	return NewService(newMockClinicRepo(), users, inlineTx{}, tokens, zerolog.Nop()), users
}

func validRegistration() RegisterInput {
	return RegisterInput{
		ClinicName: "Sunrise Family Practice",
		Email:      "Owner@Sunrise.test",
		Password:   "supersecret",
		FirstName:  "Dana",
		LastName:   "Reyes",
	}
}

// -- Registration & Login --

func TestService_Register(t *testing.T) {
	svc, _ := newTestService()
	sess, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.User.Role != auth.RoleAdmin {
		t.Errorf("expected admin role, got %s", sess.User.Role)
	}
	if sess.User.Email != "owner@sunrise.test" {
		t.Errorf("expected normalized email, got %s", sess.User.Email)
	}
	if sess.Clinic.SubscriptionStatus != SubscriptionTrial {
		t.Errorf("expected trial subscription, got %s", sess.Clinic.SubscriptionStatus)
	}
	if sess.Clinic.Settings != DefaultSettings() {
		t.Errorf("expected default settings, got %+v", sess.Clinic.Settings)
	}
	if sess.User.ClinicID != sess.Clinic.ID {
		t.Error("user must belong to the new clinic")
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Error("expected tokens")
	}
	if sess.User.PasswordHash == "supersecret" {
		t.Error("password must be hashed")
	}
}

func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *RegisterInput)
	}{
		{"missing clinic name", func(in *RegisterInput) { in.ClinicName = " " }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
		{"missing first name", func(in *RegisterInput) { in.FirstName = "" }},
		{"missing last name", func(in *RegisterInput) { in.LastName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			in := validRegistration()
			tt.mutate(&in)
			if _, err := svc.Register(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, validRegistration()); err != nil {
		t.Fatal(err)
	}
	in := validRegistration()
	in.Email = "OWNER@sunrise.test"
	if _, err := svc.Register(ctx, in); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestService_Login(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatal(err)
	}

	sess, err := svc.Login(ctx, "owner@sunrise.test", "supersecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Clinic.ID != reg.Clinic.ID {
		t.Error("expected the user's clinic")
	}
	if users.store[reg.User.ID].LastLogin == nil {
		t.Error("expected last login to be recorded")
	}

	if _, err := svc.Login(ctx, "owner@sunrise.test", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@sunrise.test", "supersecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	users.store[reg.User.ID].IsActive = false
	if _, err := svc.Login(ctx, "owner@sunrise.test", "supersecret"); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestService_Refresh(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatal(err)
	}

	pair, err := svc.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.AccessToken == "" {
		t.Error("expected new access token")
	}

	if _, err := svc.Refresh(ctx, reg.AccessToken); err == nil {
		t.Error("access token must not be accepted as refresh token")
	}
	if _, err := svc.Refresh(ctx, ""); err == nil {
		t.Error("expected error for empty token")
	}

	users.store[reg.User.ID].IsActive = false
	if _, err := svc.Refresh(ctx, reg.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected inactive user to be rejected, got %v", err)
	}
}

func TestService_CheckUser(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatal(err)
	}
	id := auth.Identity{UserID: reg.User.ID, ClinicID: reg.Clinic.ID, Role: auth.RoleStaff}

	got, err := svc.CheckUser(ctx, id)
	if err != nil {
		t.Fatalf("CheckUser: %v", err)
	}
	if got.Role != auth.RoleAdmin {
		t.Errorf("expected stored role admin, got %s", got.Role)
	}

	id.ClinicID = uuid.New()
	if _, err := svc.CheckUser(ctx, id); err == nil {
		t.Error("expected error for user outside the clinic")
	}

	users.store[reg.User.ID].IsActive = false
	id.ClinicID = reg.Clinic.ID
	if _, err := svc.CheckUser(ctx, id); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("expected ErrAccountDisabled, got %v", err)
	}
}

// -- Password Reset --

func TestService_PasswordReset(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatal(err)
	}

	token, err := svc.ForgotPassword(ctx, "owner@sunrise.test")
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %q", token)
	}
	stored := users.store[reg.User.ID].ResetTokenHash
	if stored == nil || *stored == token {
		t.Fatal("expected the token to be stored hashed")
	}

	if err := svc.ResetPassword(ctx, token, "brand-new-pass"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := svc.Login(ctx, "owner@sunrise.test", "brand-new-pass"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "another-pass"); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expected token to be single use, got %v", err)
	}
}

func TestService_PasswordReset_Expired(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, validRegistration()); err != nil {
		t.Fatal(err)
	}
	token, err := svc.ForgotPassword(ctx, "owner@sunrise.test")
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Now().Add(ResetTokenTTL + time.Minute) }
	if err := svc.ResetPassword(ctx, token, "brand-new-pass"); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expected expired token to be rejected, got %v", err)
	}
}

func TestService_ForgotPassword_UnknownEmail(t *testing.T) {
	svc, _ := newTestService()
	token, err := svc.ForgotPassword(context.Background(), "ghost@nowhere.test")
	if err != nil || token != "" {
		t.Errorf("expected silent no-op, got %q %v", token, err)
	}
}

func TestService_ResetPassword_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.ResetPassword(ctx, "", "longenough"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty token, got %v", err)
	}
	if err := svc.ResetPassword(ctx, "abc", "short"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for short password, got %v", err)
	}
	if err := svc.ResetPassword(ctx, "unknown", "longenough"); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expected ErrInvalidResetToken, got %v", err)
	}
}

// -- Clinic & Users --

func TestService_UpdateClinic(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatal(err)
	}

	name := "Sunset Clinic"
	settings := DefaultSettings()
	settings.ReminderDaysBefore = 5
	c, err := svc.UpdateClinic(ctx, reg.Clinic.ID, ClinicPatch{Name: &name, Settings: &settings})
	if err != nil {
		t.Fatalf("UpdateClinic: %v", err)
	}
	if c.Name != name || c.Settings.ReminderDaysBefore != 5 {
		t.Errorf("unexpected clinic %+v", c)
	}

	blank := ""
	if _, err := svc.UpdateClinic(ctx, reg.Clinic.ID, ClinicPatch{Name: &blank}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.UpdateClinic(ctx, uuid.New(), ClinicPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Users(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatal(err)
	}
	clinicID, adminID := reg.Clinic.ID, reg.User.ID

	u, err := svc.CreateUser(ctx, clinicID, CreateUserInput{
		Email: "nurse@sunrise.test", Password: "password1", FirstName: "Sam", LastName: "Lee",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Role != auth.RoleStaff {
		t.Errorf("expected default staff role, got %s", u.Role)
	}

	if _, err := svc.CreateUser(ctx, clinicID, CreateUserInput{
		Email: "nurse@sunrise.test", Password: "password1", FirstName: "Sam", LastName: "Lee",
	}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, clinicID, CreateUserInput{
		Email: "x@sunrise.test", Password: "password1", FirstName: "A", LastName: "B", Role: "nurse",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad role, got %v", err)
	}

	doctor := auth.RoleDoctor
	u, err = svc.UpdateUser(ctx, clinicID, adminID, u.ID, UserPatch{Role: &doctor})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.Role != auth.RoleDoctor {
		t.Errorf("expected doctor, got %s", u.Role)
	}

	u, err = svc.DeactivateUser(ctx, clinicID, adminID, u.ID)
	if err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if u.IsActive {
		t.Error("expected user to be inactive")
	}

	if _, err := svc.DeactivateUser(ctx, clinicID, adminID, adminID); !errors.Is(err, ErrSelfDeactivation) {
		t.Errorf("expected ErrSelfDeactivation, got %v", err)
	}
	if _, err := svc.GetUser(ctx, uuid.New(), u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound across clinics, got %v", err)
	}

	items, total, err := svc.ListUsers(ctx, clinicID, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 users, got %d", total)
	}
}

func TestUser_FullName(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Dana", "Reyes", "Dana Reyes"},
		{"", "Reyes", "Reyes"},
		{"Dana", "", "Dana"},
	}
	for _, tt := range tests {
		u := &User{FirstName: tt.first, LastName: tt.last}
		if got := u.FullName(); got != tt.want {
			t.Errorf("FullName() = %q, want %q", got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got, err := normalizeEmail("  A@B.Test "); err != nil || got != "a@b.test" {
		t.Errorf("normalizeEmail = %q, %v", got, err)
	}
	for _, bad := range []string{"", "plain", "Name <a@b.test>"} {
		if _, err := normalizeEmail(bad); err == nil || !strings.Contains(err.Error(), "email") {
			t.Errorf("expected email error for %q, got %v", bad, err)
		}
	}
}
