package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/powerbill/electricity-records/internal/api/metrics"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

// AdminHandler serves the admin views over all records and accounts.
type AdminHandler struct {
	records  ports.RecordService
	accounts ports.AuthService
}

func NewAdminHandler(records ports.RecordService, accounts ports.AuthService) *AdminHandler {
	return &AdminHandler{records: records, accounts: accounts}
}

// Records handles GET /api/admin/records.
//
// @Summary      List all records
// @Description  Returns every record newest first with its owner. Optional status filter.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Payment status filter"  Enums(pending, paid, overdue)
// @Success      200     {object}  listResponse[adminRecordResponse]
// @Failure      400     {object}  map[string]string
// @Failure      401     {object}  map[string]string
// @Failure      403     {object}  map[string]string
// @Router       /api/admin/records [get]
func (h *AdminHandler) Records(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	items, err := h.records.AdminRecords(c.Request().Context(), principal, c.QueryParam("status"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAdminRecordList(items))
}

// SetPaymentStatus handles PUT /api/admin/records/:id/payment.
//
// @Summary      Update payment status
// @Description  Moves a record along pending, paid and overdue. Setting paid stamps the payment date.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Record ID"
// @Param        body  body      paymentStatusRequest  true  "New status"
// @Success      200   {object}  recordResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/admin/records/{id}/payment [put]
func (h *AdminHandler) SetPaymentStatus(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req paymentStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.records.SetPaymentStatus(c.Request().Context(), principal, c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	if res.Previous != res.Record.PaymentStatus {
		metrics.PaymentTransitionsTotal.WithLabelValues(string(res.Previous), string(res.Record.PaymentStatus)).Inc()
	}
	return c.JSON(http.StatusOK, toRecordResponse(res.Record))
}

// Users handles GET /api/admin/users.
//
// @Summary      List accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  listResponse[accountResponse]
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/admin/users [get]
func (h *AdminHandler) Users(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	accounts, err := h.accounts.ListAccounts(c.Request().Context(), principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountList(accounts))
}
