package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"marketplace-payouts/internal/audit"
	"marketplace-payouts/internal/auth"
	"marketplace-payouts/internal/eventing"
	"marketplace-payouts/internal/observability/metrics"
	"marketplace-payouts/internal/payouts/application"
	payouts "marketplace-payouts/internal/payouts/domain"
	"marketplace-payouts/internal/payouts/interfaces"
)

const (
	dateLayout  = "2006-01-02"
	maxBodySize = 1 << 20
)

// PayoutService is the application surface the handler drives.
type PayoutService interface {
	GeneratePayout(ctx context.Context, vendorID string, weekStarts []string) (application.MutationResult, error)
	ApprovePayout(ctx context.Context, periodID string, notes *string) (application.MutationResult, error)
	MarkPayoutPaid(ctx context.Context, periodID, reference, method string) (application.MutationResult, error)
	DeleteDraftPayout(ctx context.Context, periodID string) (application.MutationResult, error)
	HoldOrderItem(ctx context.Context, itemID string, hold bool, reason string) (application.MutationResult, error)
	ApproveOrderItems(ctx context.Context, itemIDs []string) (application.MutationResult, error)
	GenerateBulkPayouts(ctx context.Context, weekStart string, vendorIDs []string) (application.MutationResult, error)
	RequestVendorPaymentInfo(ctx context.Context, vendorID string) (application.MutationResult, error)
	ListVendorPayouts(ctx context.Context, filter payouts.LineItemFilter) ([]payouts.VendorPayoutAggregate, error)
	GetPayoutPeriod(ctx context.Context, periodID string) (*payouts.PayoutPeriod, error)
	ListPayoutPeriods(ctx context.Context, filter payouts.PeriodFilter) ([]payouts.PayoutPeriod, error)
	GetRemittance(ctx context.Context, periodID string) (*application.Remittance, error)
}

// envelope is the response body of every payout endpoint.
type envelope struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
	Data    any               `json:"data"`
}

// Handler serves the payout back-office endpoints.
type Handler struct {
	service PayoutService
	logger  zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service PayoutService, logger zerolog.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("payouts handler: nil service")
	}
	return &Handler{service: service, logger: logger}, nil
}

// Register mounts the handler on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/api/v1/payouts", h)
	mux.Handle("/api/v1/payouts/", h)
	mux.Handle("/api/v1/order-items/", h)
	mux.Handle("/api/v1/vendors/", h)
}

// ServeHTTP routes payout requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := audit.WithRequest(r.Context(), r)
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = eventing.WithCorrelationID(ctx, requestID)
	w.Header().Set("X-Request-ID", requestID)
	r = r.WithContext(ctx)

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "v1" {
		writeJSON(w, http.StatusNotFound, envelope{Message: "Not found"})
		return
	}
	resource, rest := parts[2], parts[3:]

	switch resource {
	case "payouts":
		h.routePayouts(w, r, rest)
	case "order-items":
		h.routeOrderItems(w, r, rest)
	case "vendors":
		if len(rest) == 2 && rest[1] == "request-payment-info" && r.Method == http.MethodPost {
			h.handleRequestPaymentInfo(w, r, rest[0])
			return
		}
		writeJSON(w, http.StatusNotFound, envelope{Message: "Not found"})
	default:
		writeJSON(w, http.StatusNotFound, envelope{Message: "Not found"})
	}
}

func (h *Handler) routePayouts(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		h.handleListPeriods(w, r)
	case len(rest) == 1 && rest[0] == "vendors" && r.Method == http.MethodGet:
		h.handleListVendorPayouts(w, r)
	case len(rest) == 1 && rest[0] == "generate" && r.Method == http.MethodPost:
		h.handleGenerate(w, r)
	case len(rest) == 1 && rest[0] == "bulk" && r.Method == http.MethodPost:
		h.handleBulk(w, r)
	case len(rest) == 1 && r.Method == http.MethodGet:
		h.handleGetPeriod(w, r, rest[0])
	case len(rest) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "approve" && r.Method == http.MethodPost:
		h.handleApprove(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "mark-paid" && r.Method == http.MethodPost:
		h.handleMarkPaid(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "export.pdf" && r.Method == http.MethodGet:
		h.handleExport(w, r, rest[0], "pdf")
	case len(rest) == 2 && rest[1] == "export.xlsx" && r.Method == http.MethodGet:
		h.handleExport(w, r, rest[0], "xlsx")
	default:
		writeJSON(w, http.StatusNotFound, envelope{Message: "Not found"})
	}
}

func (h *Handler) routeOrderItems(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 1 && rest[0] == "approve" && r.Method == http.MethodPost:
		h.handleApproveItems(w, r)
	case len(rest) == 2 && rest[1] == "hold" && r.Method == http.MethodPost:
		h.handleHold(w, r, rest[0])
	default:
		writeJSON(w, http.StatusNotFound, envelope{Message: "Not found"})
	}
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VendorID   string   `json:"vendor_id"`
		WeekStarts []string `json:"week_starts"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.GeneratePayout(r.Context(), req.VendorID, req.WeekStarts)
	h.respondMutation(w, r, http.StatusCreated, result, err)
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WeekStart string   `json:"week_start"`
		VendorIDs []string `json:"vendor_ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.GenerateBulkPayouts(r.Context(), req.WeekStart, req.VendorIDs)
	h.respondMutation(w, r, http.StatusOK, result, err)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request, periodID string) {
	var req struct {
		Notes *string `json:"notes"`
	}
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	result, err := h.service.ApprovePayout(r.Context(), periodID, req.Notes)
	h.respondMutation(w, r, http.StatusOK, result, err)
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request, periodID string) {
	var req struct {
		PaymentReference string `json:"payment_reference"`
		PaymentMethod    string `json:"payment_method"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.MarkPayoutPaid(r.Context(), periodID, req.PaymentReference, req.PaymentMethod)
	h.respondMutation(w, r, http.StatusOK, result, err)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, periodID string) {
	result, err := h.service.DeleteDraftPayout(r.Context(), periodID)
	h.respondMutation(w, r, http.StatusOK, result, err)
}

func (h *Handler) handleHold(w http.ResponseWriter, r *http.Request, itemID string) {
	var req struct {
		Hold   *bool  `json:"hold"`
		Reason string `json:"reason"`
	}
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	hold := true
	if req.Hold != nil {
		hold = *req.Hold
	}
	result, err := h.service.HoldOrderItem(r.Context(), itemID, hold, req.Reason)
	h.respondMutation(w, r, http.StatusOK, result, err)
}

func (h *Handler) handleApproveItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemIDs []string `json:"item_ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.ApproveOrderItems(r.Context(), req.ItemIDs)
	h.respondMutation(w, r, http.StatusOK, result, err)
}

func (h *Handler) handleRequestPaymentInfo(w http.ResponseWriter, r *http.Request, vendorID string) {
	result, err := h.service.RequestVendorPaymentInfo(r.Context(), vendorID)
	h.respondMutation(w, r, http.StatusAccepted, result, err)
}

func (h *Handler) handleListVendorPayouts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	verr := &payouts.ValidationError{}
	filter := payouts.LineItemFilter{}
	if vendorID := strings.TrimSpace(query.Get("vendor_id")); vendorID != "" {
		filter.VendorIDs = []string{vendorID}
	}
	filter.OrderedFrom = parseDateParam(verr, "from", query.Get("from"))
	filter.OrderedTo = parseDateParam(verr, "to", query.Get("to"))
	if !filter.OrderedTo.IsZero() {
		filter.OrderedTo = filter.OrderedTo.AddDate(0, 0, 1)
	}
	if !filter.OrderedFrom.IsZero() && !filter.OrderedTo.IsZero() && !filter.OrderedTo.After(filter.OrderedFrom) {
		verr.Add("to", "must not be before from")
	}
	for _, status := range query["status"] {
		filter.Statuses = append(filter.Statuses, payouts.FulfillmentStatus(status))
	}
	if !verr.Empty() {
		h.respondError(w, r, verr)
		return
	}
	list, err := h.service.ListVendorPayouts(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: list})
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := payouts.PeriodFilter{
		VendorID: strings.TrimSpace(query.Get("vendor_id")),
		Status:   payouts.PeriodStatus(strings.TrimSpace(query.Get("status"))),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(w, r, payouts.NewValidationError("limit", "must be an integer"))
			return
		}
		filter.Limit = limit
	}
	list, err := h.service.ListPayoutPeriods(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: list})
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request, periodID string) {
	period, err := h.service.GetPayoutPeriod(r.Context(), periodID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: period})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, periodID, format string) {
	start := time.Now()
	remittance, err := h.service.GetRemittance(r.Context(), periodID)
	if err != nil {
		metrics.ObserveRemittanceExport(format, metrics.ResultRejected, time.Since(start))
		h.respondError(w, r, err)
		return
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "pdf":
		body, err = interfaces.BuildRemittancePDF(remittance)
		contentType = "application/pdf"
	default:
		body, err = interfaces.BuildRemittanceXLSX(remittance)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		metrics.ObserveRemittanceExport(format, metrics.ResultError, time.Since(start))
		h.logger.Error().Err(err).Str("period_id", periodID).Str("format", format).Msg("remittance export failed")
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "Export failed"})
		return
	}
	metrics.ObserveRemittanceExport(format, metrics.ResultSuccess, time.Since(start))

	filename := remittance.Summary.PayoutCode + "-" + shortPeriod(periodID) + "." + format
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) respondMutation(w http.ResponseWriter, r *http.Request, status int, result application.MutationResult, err error) {
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, status, envelope{Message: result.Message, Data: result.Data})
}

// respondError maps application errors to status codes.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *payouts.ValidationError
		conflict   *payouts.StateConflictError
		downstream *payouts.DownstreamError
	)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, envelope{Message: "Unauthorized", Errors: map[string]string{"auth": "authentication required"}})
	case errors.Is(err, auth.ErrForbidden):
		writeJSON(w, http.StatusForbidden, envelope{Message: "Forbidden: insufficient role", Errors: map[string]string{"auth": err.Error()}})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, envelope{Message: "Validation failed", Errors: validation.Fields})
	case errors.Is(err, payouts.ErrNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Message: err.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, envelope{Message: conflict.Error(), Errors: map[string]string{"status": string(conflict.Current)}})
	case errors.As(err, &downstream):
		h.logger.Warn().Err(err).Str("op", downstream.Op).Str("path", r.URL.Path).Msg("downstream failure")
		writeJSON(w, http.StatusBadGateway, envelope{Message: downstream.Error()})
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled payout error")
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "Internal error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, false)
}

func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if r.Body == nil {
		if optional {
			return true
		}
		writeJSON(w, http.StatusBadRequest, envelope{Message: "request body required"})
		return false
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "read body error"})
		return false
	}
	if optional && len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid json", Errors: map[string]string{"body": err.Error()}})
		return false
	}
	return true
}

func parseDateParam(verr *payouts.ValidationError, field, value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	day, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		verr.Add(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}
	}
	return day
}

func shortPeriod(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
