package pharmacy

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "chemist"))
	g.POST("/dispense", h.Dispense)
	g.GET("/medicines", h.ListMedicines)
	g.GET("/medicines/:id", h.GetMedicine)
	g.GET("/prescription-items/:id/issues", h.ListIssues)
}

func (h *Handler) Dispense(c echo.Context) error {
	var in DispenseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	issue, err := h.svc.IssueMedicine(ctx, in, auth.UserIDFromContext(ctx))

	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "prescription item not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, issue)
}

func (h *Handler) GetMedicine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	medicine, err := h.svc.GetMedicine(c.Request().Context(), id)
	if errors.Is(err, ErrItemNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "medicine not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, medicine)
}

func (h *Handler) ListMedicines(c echo.Context) error {
	pg := pagination.FromContext(c)
	medicines, total, err := h.svc.ListMedicines(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(medicines, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListIssues(c echo.Context) error {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	issues, err := h.svc.ListIssues(c.Request().Context(), itemID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"issues": issues,
	})
}
