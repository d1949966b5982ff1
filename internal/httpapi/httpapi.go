package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kopitiam/backend/internal/domain"
	"kopitiam/backend/internal/metrics"
	"kopitiam/backend/internal/money"
	"kopitiam/backend/internal/service"
	"kopitiam/backend/internal/splits"
	"kopitiam/backend/internal/store"
)

type API struct {
	service       *service.Service
	allowedOrigin string
}

func New(svc *service.Service, allowedOrigin string) *API {
	return &API{
		service:       svc,
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/api/v1/sales", a.handleSales)
	mux.HandleFunc("/api/v1/sales/", a.handleSaleActions)
	mux.HandleFunc("/api/v1/payment-sessions", a.handleSessions)
	mux.HandleFunc("/api/v1/payment-sessions/", a.handleSessionActions)

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
		sales, err := a.service.ListOpenSales(r.Context(), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		details := make([]saleDetailResponse, 0, len(sales))
		for i := range sales {
			details = append(details, toSaleDetail(&sales[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": details})
	case http.MethodPost:
		var req saleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := fromSaleCreateRequest(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.service.CreateSale(r.Context(), sale)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": toSaleDetail(created)})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sales/"), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale id required"))
		return
	}

	if saleID, ok := strings.CutSuffix(tail, "/payments"); ok {
		saleID = strings.Trim(saleID, "/")
		payments, err := a.service.ListPayments(r.Context(), saleID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payments": toPaymentDetails(payments)})
		return
	}

	sale, err := a.service.GetSale(r.Context(), tail)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": toSaleDetail(sale)})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req sessionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.SaleID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale_id is required"))
		return
	}

	state, err := a.service.StartSession(r.Context(), req.SaleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionState(state))
}

func (a *API) handleSessionActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/payment-sessions/"), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("session id required"))
		return
	}

	parts := strings.Split(tail, "/")
	sessionID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleSession(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "selection":
		a.handleSelection(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "splits":
		a.handleSplitAdd(w, r, sessionID)
	case len(parts) == 3 && parts[1] == "splits":
		a.handleSplit(w, r, sessionID, parts[2])
	case len(parts) == 2 && parts[1] == "submit":
		a.handleSubmit(w, r, sessionID)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown payment session action"))
	}
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodGet:
		state, err := a.service.GetSession(r.Context(), sessionID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionState(state))
	case http.MethodDelete:
		if err := a.service.CloseSession(r.Context(), sessionID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"closed": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSelection(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	selected := make([]domain.SelectedItem, 0, len(req.Items))
	for _, item := range req.Items {
		selected = append(selected, domain.SelectedItem{ItemID: item.ItemID, Quantity: item.Quantity})
	}

	state, err := a.service.UpdateSelection(r.Context(), sessionID, selected)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionState(state))
}

func (a *API) handleSplitAdd(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	state, err := a.service.AddSplit(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionState(state))
}

func (a *API) handleSplit(w http.ResponseWriter, r *http.Request, sessionID string, splitID string) {
	switch r.Method {
	case http.MethodPatch:
		var req splitUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		state, err := a.applySplitUpdate(r, sessionID, splitID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionState(state))
	case http.MethodDelete:
		state, err := a.service.RemoveSplit(r.Context(), sessionID, splitID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionState(state))
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) applySplitUpdate(r *http.Request, sessionID string, splitID string, req splitUpdateRequest) (domain.SessionState, error) {
	var state domain.SessionState
	var err error

	if req.Amount != nil {
		amountCents, parseErr := money.ParseDecimal(*req.Amount)
		if parseErr != nil {
			return domain.SessionState{}, parseErr
		}
		state, err = a.service.UpdateSplitAmount(r.Context(), sessionID, splitID, amountCents)
		if err != nil {
			return domain.SessionState{}, err
		}
	}
	if req.Method != nil {
		reference := ""
		if req.Reference != nil {
			reference = strings.TrimSpace(*req.Reference)
		}
		state, err = a.service.SetSplitMethod(r.Context(), sessionID, splitID, domain.PaymentMethod(*req.Method), reference)
		if err != nil {
			return domain.SessionState{}, err
		}
	} else if req.Reference != nil {
		state, err = a.service.SetSplitReference(r.Context(), sessionID, splitID, strings.TrimSpace(*req.Reference))
		if err != nil {
			return domain.SessionState{}, err
		}
	}
	if req.ToggleLock {
		state, err = a.service.ToggleSplitLock(r.Context(), sessionID, splitID)
		if err != nil {
			return domain.SessionState{}, err
		}
	}

	if state.SessionID == "" {
		return a.service.GetSession(r.Context(), sessionID)
	}
	return state, nil
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.Submit(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Blocked {
		status = http.StatusConflict
	}
	writeJSON(w, status, toSubmitResponse(resp))
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request handled", "method", r.Method, "path", r.URL.Path, "duration", time.Since(startedAt))
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, splits.ErrSplitNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidPayment),
		errors.Is(err, splits.ErrLastSplit):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrSaleClosed),
		errors.Is(err, splits.ErrSplitSubmitted):
		status = http.StatusConflict
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		slog.Error("internal error", "status", status, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
