package submission

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/intake/intake/internal/platform/auth"
	"github.com/intake/intake/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/submissions")
	g.GET("", h.ListSubmissions)
	g.POST("", h.Submit)
	g.GET("/:id", h.GetSubmission)
	g.POST("/:id/complete", h.Complete)
	g.POST("/:id/revalidate", h.Revalidate)
	g.POST("/:id/archive", h.Archive, auth.RequireRole(auth.RoleAdmin))

	d := api.Group("/dashboard")
	d.GET("/stats", h.Stats)
	d.GET("/chart-data", h.Chart)
}

func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{
			"message": "submission is invalid",
			"errors":  verr.Errors,
		})
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrFormInactive), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrSignatureRequired):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrSealedAnswers):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func submissionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

func (h *Handler) ListSubmissions(c echo.Context) error {
	pg := pagination.FromContext(c)
	var (
		f   Filter
		err error
	)
	if f.FormID, err = optionalUUID(c, "form_id"); err != nil {
		return err
	}
	if f.PatientID, err = optionalUUID(c, "patient_id"); err != nil {
		return err
	}
	f.Status = c.QueryParam("status")

	ctx := c.Request().Context()
	items, total, err := h.svc.ListSubmissions(ctx, auth.ClinicIDFromContext(ctx), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) Submit(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	sub, err := h.svc.Submit(ctx, auth.ClinicIDFromContext(ctx), auth.UserIDFromContext(ctx), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sub)
}

func (h *Handler) GetSubmission(c echo.Context) error {
	id, err := submissionID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	sub, err := h.svc.GetSubmission(ctx, auth.ClinicIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := submissionID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	sub, err := h.svc.Complete(ctx, auth.ClinicIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) Archive(c echo.Context) error {
	id, err := submissionID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	sub, err := h.svc.Archive(ctx, auth.ClinicIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) Revalidate(c echo.Context) error {
	id, err := submissionID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := h.svc.Revalidate(ctx, auth.ClinicIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Dashboard --

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := h.svc.Stats(ctx, auth.ClinicIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Chart(c echo.Context) error {
	ctx := c.Request().Context()
	points, err := h.svc.Chart(ctx, auth.ClinicIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, points)
}
