package billing

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/websocket"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc    *Service
	events websocket.EventPublisher
	logger zerolog.Logger
}

func NewHandler(svc *Service, events websocket.EventPublisher, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, events: events, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "billing"))
	g.POST("/patients/:id/bills", h.GenerateBill)
	g.GET("/patients/:id/bills", h.ListPatientBills)
	g.GET("/bills/:id", h.GetBill)
}

func (h *Handler) GenerateBill(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	ctx := c.Request().Context()
	summary, err := h.svc.GenerateBill(ctx, patientID, auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	event, err := websocket.NewEvent(websocket.EventBillGenerated, websocket.TopicBills, summary)
	if err == nil {
		err = h.events.Publish(ctx, event)
	}
	if err != nil {
		// Delivery is best-effort; the bill is already committed.
		h.logger.Error().Err(err).Str("bill_id", summary.BillID.String()).Msg("publish bill.generated failed")
	}

	return c.JSON(http.StatusCreated, summary)
}

func (h *Handler) GetBill(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	bill, items, err := h.svc.GetBill(c.Request().Context(), id)
	if errors.Is(err, ErrBillNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "bill not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"bill":  bill,
		"items": items,
	})
}

func (h *Handler) ListPatientBills(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	pg := pagination.FromContext(c)
	bills, total, err := h.svc.ListPatientBills(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, pagination.NewResponse(bills, total, pg.Limit, pg.Offset))
}
