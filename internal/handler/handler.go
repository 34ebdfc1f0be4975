package handler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/checkout"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/health"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/provider"
)

// Handler holds HTTP handler dependencies.
type Handler struct {
	svc *checkout.Service
}

// New creates a new Handler.
func New(svc *checkout.Service) *Handler {
	return &Handler{svc: svc}
}

// Router returns a chi router with all API routes and the standard middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/methods", h.ListMethods)
	r.Post("/quotes", h.Quote)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DiscardSession)
			r.Post("/method", h.SelectMethod)
			r.Post("/intent", h.SubmitIntent)
			r.Post("/confirm", h.Confirm)
			r.Post("/cancel", h.Cancel)
		})
	})

	r.Get("/payments/{orderID}", h.GetPayment)
	r.Get("/health/providers", h.GetProviderHealth)
	r.Post("/simulate/degrade", h.SimulateDegrade)
}

// ListMethods handles GET /methods
func (h *Handler) ListMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.svc.Methods(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"methods": methods})
}

// Quote handles POST /quotes
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decode(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Installments == 0 {
		req.Installments = 1
	}

	total, err := h.svc.Quote(r.Context(), req.Method, req.Amount, req.Installments)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(req.Method, total))
}

// CreateSession handles POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.svc.NewSession(r.Context(), req.Order)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// GetSession handles GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// DiscardSession handles DELETE /sessions/{id}
func (h *Handler) DiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Discard(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectMethod handles POST /sessions/{id}/method
func (h *Handler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectMethodRequest
	if !decode(w, r, &req) {
		return
	}
	if req.MethodID == "" {
		writeError(w, http.StatusBadRequest, "method_id is required")
		return
	}

	if err := sess.SelectMethod(req.MethodID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// SubmitIntent handles POST /sessions/{id}/intent
func (h *Handler) SubmitIntent(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req intentRequest
	if !decode(w, r, &req) {
		return
	}

	if err := sess.SubmitIntent(req.intent()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Confirm handles POST /sessions/{id}/confirm. A client that disconnects does
// not abort the submission; the session keeps the eventual result.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	out, err := sess.Confirm(r.Context())

	var perr *checkout.ProviderError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newOutcomeResponse(out, nil))
	case errors.As(err, &perr):
		status := http.StatusUnprocessableEntity
		if perr.Retryable() {
			status = http.StatusServiceUnavailable
			if out.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(out.RetryAfter.Seconds()))))
			}
		}
		writeJSON(w, status, newOutcomeResponse(out, perr))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusAccepted, newOutcomeResponse(out, nil))
	default:
		writeServiceError(w, err)
	}
}

// Cancel handles POST /sessions/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := sess.Cancel()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutcomeResponse(out, nil))
}

// GetPayment handles GET /payments/{orderID}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	result, err := h.svc.Result(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type providerHealth struct {
	Method string `json:"method"`
	health.AdapterHealth
	Breaker string `json:"breaker,omitempty"`
}

// GetProviderHealth handles GET /health/providers
func (h *Handler) GetProviderHealth(w http.ResponseWriter, r *http.Request) {
	bindings := h.svc.Registry().Bindings()
	out := make([]providerHealth, 0, len(bindings))
	for _, b := range bindings {
		ph := providerHealth{
			Method:        b.Method,
			AdapterHealth: h.svc.Monitor().GetHealth(b.Adapter.Name()),
		}
		if s, ok := b.Adapter.(interface{ State() string }); ok {
			ph.Breaker = s.State()
		}
		out = append(out, ph)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"providers": out})
}

// SimulateDegrade handles POST /simulate/degrade
func (h *Handler) SimulateDegrade(w http.ResponseWriter, r *http.Request) {
	var req degradeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Adapter == "" {
		writeError(w, http.StatusBadRequest, "adapter is required")
		return
	}

	mock := h.findMock(req.Adapter)
	if mock == nil {
		writeError(w, http.StatusNotFound, "simulated adapter not found: "+req.Adapter)
		return
	}

	mock.SetDegraded(req.Degraded)
	slog.Info("adapter_degradation_toggled",
		"adapter", req.Adapter,
		"degraded", req.Degraded,
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"adapter":  req.Adapter,
		"degraded": req.Degraded,
		"message":  "degradation mode updated",
	})
}

func (h *Handler) findMock(name string) *provider.MockAdapter {
	a, ok := h.svc.Registry().Lookup(name)
	for ok {
		if m, isMock := a.(*provider.MockAdapter); isMock {
			return m
		}
		var u provider.Unwrapper
		if u, ok = a.(provider.Unwrapper); ok {
			a = u.Unwrap()
		}
	}
	return nil
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	sess, err := h.svc.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return sess, true
}
