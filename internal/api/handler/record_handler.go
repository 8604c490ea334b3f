package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/powerbill/electricity-records/internal/api/metrics"
	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

// Form field names accepted for the bill image upload.
var billImageFields = []string{"bill_image", "billImage"}

// RecordHandler handles HTTP requests for a user's own meter records.
type RecordHandler struct {
	service ports.RecordService
}

func NewRecordHandler(service ports.RecordService) *RecordHandler {
	return &RecordHandler{service: service}
}

// Create handles POST /api/records.
//
// @Summary      Submit a meter reading
// @Description  Creates a billing record from the current reading. The previous reading is taken from the account's latest record.
// @Tags         records
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key   header    string  false  "Idempotency key to prevent duplicate submissions"
// @Param        current_reading   formData  number  true   "Current meter reading"
// @Param        previous_reading  formData  number  false  "Previous reading (first record only, default 0)"
// @Param        rate_per_unit     formData  number  false  "Rate per unit (default configured rate)"
// @Param        due_date          formData  string  true   "Due date (YYYY-MM-DD)"
// @Param        remarks           formData  string  false  "Remarks"
// @Param        bill_image        formData  file    false  "Bill image (jpeg, png, webp or pdf)"
// @Success      201  {object}  recordResponse
// @Success      200  {object}  recordResponse  "Idempotent replay"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/records [post]
func (h *RecordHandler) Create(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req createRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	image, closeImage, err := billImage(c)
	if err != nil {
		return err
	}
	defer closeImage()

	idempotencyKey := c.Request().Header.Get("Idempotency-Key")
	result, err := h.service.CreateRecord(c.Request().Context(), principal, toCreateInput(req, idempotencyKey, image))
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			metrics.RecordsCreatedTotal.WithLabelValues("rejected").Inc()
		}
		return err
	}

	if result.AlreadyExisted {
		metrics.RecordsCreatedTotal.WithLabelValues("replayed").Inc()
		return c.JSON(http.StatusOK, toRecordResponse(result.Record))
	}

	metrics.RecordsCreatedTotal.WithLabelValues("created").Inc()
	metrics.UnitsBilledTotal.Add(result.Record.UnitsConsumed)
	if result.Record.Anomaly != "" {
		metrics.AnomaliesFlaggedTotal.Inc()
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/records/"+result.Record.ID)
	return c.JSON(http.StatusCreated, toRecordResponse(result.Record))
}

// Latest handles GET /api/records/last.
//
// @Summary      Latest record
// @Description  Returns the caller's most recent record, used to seed the previous reading. record is null when none exists.
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  latestRecordResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/records/last [get]
func (h *RecordHandler) Latest(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	rec, err := h.service.LatestRecord(c.Request().Context(), principal)
	if err != nil {
		return err
	}
	if rec == nil {
		return c.JSON(http.StatusOK, latestRecordResponse{})
	}
	resp := toRecordResponse(rec)
	return c.JSON(http.StatusOK, latestRecordResponse{Record: &resp})
}

// Mine handles GET /api/records/mine.
//
// @Summary      My records
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  listResponse[recordResponse]
// @Failure      401  {object}  map[string]string
// @Router       /api/records/mine [get]
func (h *RecordHandler) Mine(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	recs, err := h.service.MyRecords(c.Request().Context(), principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRecordList(recs))
}

// Get handles GET /api/records/:id.
//
// @Summary      Get a record
// @Description  Owners and admins may read a record; anyone else receives 404.
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Record ID"
// @Success      200  {object}  recordResponse
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/records/{id} [get]
func (h *RecordHandler) Get(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	rec, err := h.service.GetRecord(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRecordResponse(rec))
}

// billImage opens the optional uploaded bill image. The returned close func is
// always safe to call.
func billImage(c echo.Context) (*ports.BillImageUpload, func(), error) {
	noop := func() {}
	for _, field := range billImageFields {
		fh, err := c.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			continue
		}
		if err != nil {
			return nil, noop, echo.NewHTTPError(http.StatusBadRequest, "invalid bill_image upload")
		}

		f, err := fh.Open()
		if err != nil {
			return nil, noop, errors.Join(domain.ErrBillImageUpload, err)
		}
		return &ports.BillImageUpload{Filename: fh.Filename, Size: fh.Size, Content: f}, func() { _ = f.Close() }, nil
	}
	return nil, noop, nil
}
