package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/intake/intake/internal/platform/auth"
)

func newTestHandler(expose bool) (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc, expose), echo.New()
}

func jsonContext(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withIdentity(c echo.Context, id auth.Identity) {
	c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), id)))
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

const registerBody = `{"clinicName":"Sunrise","email":"owner@sunrise.test","password":"supersecret","firstName":"Dana","lastName":"Reyes"}`

func TestHandler_Register(t *testing.T) {
	h, e := newTestHandler(false)
	c, rec := jsonContext(e, http.MethodPost, registerBody)
	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"user", "clinic", "token", "refreshToken"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}
	if strings.Contains(rec.Body.String(), "passwordHash") || strings.Contains(rec.Body.String(), "$2a$") {
		t.Error("password hash must not be serialized")
	}

	c, _ = jsonContext(e, http.MethodPost, registerBody)
	expectHTTPError(t, h.Register(c), http.StatusConflict)
}

func TestHandler_Register_BadRequest(t *testing.T) {
	h, e := newTestHandler(false)
	c, _ := jsonContext(e, http.MethodPost, `{"clinicName":"Sunrise","email":"owner@sunrise.test","password":"short"}`)
	expectHTTPError(t, h.Register(c), http.StatusBadRequest)
}

func TestHandler_Login(t *testing.T) {
	h, e := newTestHandler(false)
	c, _ := jsonContext(e, http.MethodPost, registerBody)
	if err := h.Register(c); err != nil {
		t.Fatal(err)
	}

	c, rec := jsonContext(e, http.MethodPost, `{"email":"owner@sunrise.test","password":"supersecret"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = jsonContext(e, http.MethodPost, `{"email":"owner@sunrise.test","password":"nope-nope"}`)
	expectHTTPError(t, h.Login(c), http.StatusUnauthorized)

	c, _ = jsonContext(e, http.MethodPost, `{"email":""}`)
	expectHTTPError(t, h.Login(c), http.StatusBadRequest)
}

func TestHandler_Refresh(t *testing.T) {
	h, e := newTestHandler(false)
	c, rec := jsonContext(e, http.MethodPost, registerBody)
	if err := h.Register(c); err != nil {
		t.Fatal(err)
	}
	var sess struct {
		RefreshToken string `json:"refreshToken"`
	}
	json.Unmarshal(rec.Body.Bytes(), &sess)

	c, rec = jsonContext(e, http.MethodPost, `{"refreshToken":"`+sess.RefreshToken+`"}`)
	if err := h.Refresh(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"token"`) {
		t.Errorf("expected a token in %s", rec.Body.String())
	}

	c, _ = jsonContext(e, http.MethodPost, `{"refreshToken":"garbage"}`)
	expectHTTPError(t, h.Refresh(c), http.StatusUnauthorized)
}

func TestHandler_ForgotPassword(t *testing.T) {
	for _, expose := range []bool{true, false} {
		h, e := newTestHandler(expose)
		c, _ := jsonContext(e, http.MethodPost, registerBody)
		if err := h.Register(c); err != nil {
			t.Fatal(err)
		}
		c, rec := jsonContext(e, http.MethodPost, `{"email":"owner@sunrise.test"}`)
		if err := h.ForgotPassword(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.Contains(rec.Body.String(), "resetToken"); got != expose {
			t.Errorf("expose=%v: resetToken present = %v", expose, got)
		}
	}

	h, e := newTestHandler(true)
	c, rec := jsonContext(e, http.MethodPost, `{"email":"ghost@nowhere.test"}`)
	if err := h.ForgotPassword(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "resetToken") {
		t.Errorf("unknown email must look like success, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_ResetPassword_InvalidToken(t *testing.T) {
	h, e := newTestHandler(false)
	c, _ := jsonContext(e, http.MethodPost, `{"token":"nope","password":"longenough"}`)
	expectHTTPError(t, h.ResetPassword(c), http.StatusBadRequest)
}

func TestHandler_ClinicAndUsers(t *testing.T) {
	h, e := newTestHandler(false)
	sess, err := h.svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatal(err)
	}
	admin := auth.Identity{UserID: sess.User.ID, ClinicID: sess.Clinic.ID, Role: auth.RoleAdmin}

	c, rec := jsonContext(e, http.MethodGet, "")
	withIdentity(c, admin)
	if err := h.GetClinic(c); err != nil {
		t.Fatalf("GetClinic: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Sunrise Family Practice") {
		t.Errorf("unexpected clinic body %s", rec.Body.String())
	}

	c, rec = jsonContext(e, http.MethodPut, `{"name":"Sunset"}`)
	withIdentity(c, admin)
	if err := h.UpdateClinic(c); err != nil {
		t.Fatalf("UpdateClinic: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"name":"Sunset"`) {
		t.Errorf("unexpected update body %s", rec.Body.String())
	}

	c, rec = jsonContext(e, http.MethodPost, `{"email":"doc@sunrise.test","password":"password1","firstName":"Ana","lastName":"Kim","role":"doctor"}`)
	withIdentity(c, admin)
	if err := h.CreateUser(c); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var created User
	json.Unmarshal(rec.Body.Bytes(), &created)

	c, rec = jsonContext(e, http.MethodGet, "")
	withIdentity(c, admin)
	if err := h.ListUsers(c); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":2`) {
		t.Errorf("expected 2 users, got %s", rec.Body.String())
	}

	c, rec = jsonContext(e, http.MethodDelete, "")
	withIdentity(c, admin)
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.DeactivateUser(c); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"isActive":false`) {
		t.Errorf("expected inactive user, got %s", rec.Body.String())
	}

	c, _ = jsonContext(e, http.MethodGet, "")
	withIdentity(c, admin)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	expectHTTPError(t, h.GetUser(c), http.StatusNotFound)

	c, _ = jsonContext(e, http.MethodGet, "")
	withIdentity(c, admin)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectHTTPError(t, h.UpdateUser(c), http.StatusBadRequest)

	c, rec = jsonContext(e, http.MethodGet, "")
	withIdentity(c, admin)
	if err := h.Me(c); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if !strings.Contains(rec.Body.String(), sess.User.ID.String()) {
		t.Errorf("expected own user, got %s", rec.Body.String())
	}
}

func TestHandler_RoutesRequireAdmin(t *testing.T) {
	h, e := newTestHandler(false)
	api := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			withIdentity(c, auth.Identity{UserID: uuid.New(), ClinicID: uuid.New(), Role: auth.RoleStaff})
			return next(c)
		}
	})
	h.RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for staff, got %d", rec.Code)
	}
}
