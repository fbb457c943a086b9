package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler exposes dashboard sessions over HTTP.
type Handler struct {
	reg *Registry
}

func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

// RegisterRoutes registers the dashboard routes on api.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboards")
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/subject", h.SetSubject)
	g.PUT("/:id/tab", h.SetTab)
	g.PUT("/:id/page", h.SetPage)
	g.POST("/:id/page/next", h.NextPage)
	g.POST("/:id/page/previous", h.PreviousPage)
	g.POST("/:id/toggle", h.Toggle)
	g.POST("/:id/sections/:section/toggle", h.ToggleSection)
	g.POST("/:id/refresh", h.Refresh)
}

// SessionResponse is returned by every dashboard endpoint.
type SessionResponse struct {
	ID uuid.UUID `json:"id"`
	Snapshot
}

type subjectRequest struct {
	Reference string `json:"reference"`
	Mode      string `json:"mode"`
}

type tabRequest struct {
	Tab string `json:"tab"`
}

type pageRequest struct {
	Page int `json:"page"`
}

type toggleRequest struct {
	List   string `json:"list"`
	Key    string `json:"key"`
	Parent string `json:"parent"`
}

type toggleResponse struct {
	Expanded bool `json:"expanded"`
	SessionResponse
}

// httpError maps engine errors onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrUnknownItem):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownTab), errors.Is(err, ErrUnknownList), errors.Is(err, ErrUnknownSection),
		errors.Is(err, ErrUnknownMode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) session(c echo.Context) (uuid.UUID, *Engine, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.reg.Get(id)
	if err != nil {
		return uuid.Nil, nil, httpError(err)
	}
	return id, e, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req subjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reference is required")
	}
	// An empty mode leaves the engine default in place.
	if req.Mode != "" {
		if _, err := ParseResolutionMode(req.Mode); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	id, e, err := h.reg.Open(SubjectRef{Reference: req.Reference, Mode: ResolutionMode(req.Mode)})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, SessionResponse{ID: id, Snapshot: e.Snapshot()})
}

func (h *Handler) Get(c echo.Context) error {
	id, e, err := h.session(c)
	if err != nil {
		return err
	}
	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait {
		if err := e.Wait(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "feeds still loading")
		}
	}
	return c.JSON(http.StatusOK, SessionResponse{ID: id, Snapshot: e.Snapshot()})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.reg.Remove(id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetSubject(c echo.Context) error {
	id, e, err := h.session(c)
	if err != nil {
		return err
	}
	var req subjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := e.SetSubject(SubjectRef{Reference: req.Reference, Mode: ResolutionMode(req.Mode)}); err != nil {
		if errors.Is(err, ErrClosed) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, SessionResponse{ID: id, Snapshot: e.Snapshot()})
}

func (h *Handler) SetTab(c echo.Context) error {
	id, e, err := h.session(c)
	if err != nil {
		return err
	}
	var req tabRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := e.SetActiveTab(Tab(req.Tab)); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, SessionResponse{ID: id, Snapshot: e.Snapshot()})
}

func (h *Handler) SetPage(c echo.Context) error {
	id, e, err := h.session(c)
	if err != nil {
		return err
	}
	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := e.SetPage(req.Page); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, SessionResponse{ID: id, Snapshot: e.Snapshot()})
}

func (h *Handler) NextPage(c echo.Context) error {
	id, e, err := h.session(c)
	if err != nil {
		return err
	}
	if _, err := e.NextPage(); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, SessionResponse{ID: id, Snapshot: e.Snapshot()})
}

func (h *Handler) PreviousPage(c echo.Context) error {
	id, e, err := h.session(c)
	if err != nil {
		return err
	}
	if _, err := e.PreviousPage(); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, SessionResponse{ID: id, Snapshot: e.Snapshot()})
}

func (h *Handler) Toggle(c echo.Context) error {
	id, e, err := h.session(c)
	if err != nil {
		return err
	}
	var req toggleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	expanded, err := e.ToggleExpanded(ListName(req.List), req.Key, req.Parent)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toggleResponse{
		Expanded:        expanded,
		SessionResponse: SessionResponse{ID: id, Snapshot: e.Snapshot()},
	})
}

func (h *Handler) ToggleSection(c echo.Context) error {
	id, e, err := h.session(c)
	if err != nil {
		return err
	}
	open, err := e.ToggleSection(Section(c.Param("section")))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toggleResponse{
		Expanded:        open,
		SessionResponse: SessionResponse{ID: id, Snapshot: e.Snapshot()},
	})
}

func (h *Handler) Refresh(c echo.Context) error {
	id, e, err := h.session(c)
	if err != nil {
		return err
	}
	if err := e.Refresh(c.Request().Context()); err != nil {
		if errors.Is(err, ErrClosed) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	}
	return c.JSON(http.StatusOK, SessionResponse{ID: id, Snapshot: e.Snapshot()})
}
