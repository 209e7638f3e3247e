package form

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/intake/intake/internal/domain/formschema"
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
	g := api.Group("/forms")
	g.GET("", h.ListForms)
	g.GET("/templates", h.ListTemplates)
	g.GET("/templates/:id", h.GetTemplate)
	g.GET("/:id", h.GetForm)
	g.POST("/:id/validate", h.Preview)

	editors := g.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	editors.POST("", h.CreateForm)
	editors.PUT("/:id", h.SaveForm)
	editors.POST("/:id/duplicate", h.DuplicateForm)
	editors.POST("/:id/fields", h.AddField)
	editors.PATCH("/:id/fields/:fieldId", h.UpdateField)
	editors.DELETE("/:id/fields/:fieldId", h.RemoveField)
	editors.POST("/:id/fields/:fieldId/move", h.MoveField)
	editors.POST("/:id/sections", h.AddSection)

	g.DELETE("/:id", h.DeleteForm, auth.RequireRole(auth.RoleAdmin))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, formschema.ErrInvalidField),
		errors.Is(err, formschema.ErrIndex),
		errors.Is(err, formschema.ErrCycle):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, formschema.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func formID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) ListForms(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := Filter{
		Type:   c.QueryParam("type"),
		Search: strings.TrimSpace(c.QueryParam("search")),
	}
	switch c.QueryParam("status") {
	case "":
	case "active":
		active := true
		filter.Active = &active
	case "inactive":
		active := false
		filter.Active = &active
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "status must be active or inactive")
	}

	ctx := c.Request().Context()
	items, total, err := h.svc.ListForms(ctx, auth.ClinicIDFromContext(ctx), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) CreateForm(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	f, err := h.svc.CreateForm(ctx, auth.ClinicIDFromContext(ctx), auth.UserIDFromContext(ctx), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) GetForm(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	f, err := h.svc.GetForm(ctx, auth.ClinicIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) SaveForm(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	var e Edit
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	res, err := h.svc.SaveForm(ctx, auth.ClinicIDFromContext(ctx), id, e)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteForm(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteForm(ctx, auth.ClinicIDFromContext(ctx), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DuplicateForm(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	f, err := h.svc.DuplicateForm(ctx, auth.ClinicIDFromContext(ctx), auth.UserIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

// -- Field editing --

func (h *Handler) AddField(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	var req struct {
		Type      formschema.FieldType `json:"type"`
		SectionID string               `json:"sectionId"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	res, err := h.svc.AddField(ctx, auth.ClinicIDFromContext(ctx), id, req.Type, req.SectionID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateField(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	var patch formschema.FieldPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	res, err := h.svc.UpdateField(ctx, auth.ClinicIDFromContext(ctx), id, c.Param("fieldId"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) RemoveField(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := h.svc.RemoveField(ctx, auth.ClinicIDFromContext(ctx), id, c.Param("fieldId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) MoveField(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	var mv MoveInput
	if err := c.Bind(&mv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	res, err := h.svc.MoveField(ctx, auth.ClinicIDFromContext(ctx), id, c.Param("fieldId"), mv)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) AddSection(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	var req struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	res, err := h.svc.AddSection(ctx, auth.ClinicIDFromContext(ctx), id, req.ID, req.Title)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Preview(c echo.Context) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	var answers formschema.Answers
	if err := c.Bind(&answers); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	res, err := h.svc.Preview(ctx, auth.ClinicIDFromContext(ctx), id, answers)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Templates --

func (h *Handler) ListTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"templates": formschema.ListTemplates()})
}

type templateDetail struct {
	formschema.TemplateSummary
	Schema formschema.Schema `json:"formData"`
}

func (h *Handler) GetTemplate(c echo.Context) error {
	tpl, err := formschema.GetTemplate(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, templateDetail{TemplateSummary: tpl.Summary(), Schema: tpl.Schema()})
}
