// internal/borrowing/handler.go
package borrowing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the borrowing endpoints. Identity arrives as request
// metadata (X-User-ID, X-User-Role); the gateway in front owns sessions.
// borrowLimit, when non-nil, wraps only the borrow endpoint.
func (h *Handler) RegisterRoutes(r chi.Router, borrowLimit func(http.Handler) http.Handler) {
	if borrowLimit != nil {
		r.With(borrowLimit).Post("/loans", h.HandleBorrow)
	} else {
		r.Post("/loans", h.HandleBorrow)
	}
	r.Post("/loans/{id}/return", h.HandleReturn)
	r.Get("/loans", h.HandleActiveLoans)
	r.Get("/loans/returned", h.HandleReturnedLoans)
	r.Get("/admin/loans/overdue", h.HandleOverdueLoans)
	r.Post("/admin/loans/{id}/confirm-return", h.HandleConfirmReturn)
	r.Post("/admin/loans/sweep", h.HandleSweep)
}

type actor struct {
	id    uuid.UUID
	admin bool
}

func actorFrom(r *http.Request) (actor, error) {
	id, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		return actor{}, errors.New("missing or invalid X-User-ID header")
	}
	admin := strings.EqualFold(r.Header.Get("X-User-Role"), "admin")
	return actor{id: id, admin: admin}, nil
}

func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	a, err := actorFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req struct {
		BookID uuid.UUID `json:"book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BookID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "book_id is required")
		return
	}

	result, err := h.service.Borrow(r.Context(), a.id, req.BookID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleReturn(w, r, false)
}

// HandleConfirmReturn is the admin flow: same transition, ownership check
// bypassed.
func (h *Handler) HandleConfirmReturn(w http.ResponseWriter, r *http.Request) {
	h.handleReturn(w, r, true)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request, needAdmin bool) {
	a, err := actorFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if needAdmin && !a.admin {
		respondError(w, http.StatusForbidden, "admin role required")
		return
	}

	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}

	if err := h.service.ReturnLoan(r.Context(), loanID, a.id, needAdmin && a.admin); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "returned"})
}

func (h *Handler) HandleActiveLoans(w http.ResponseWriter, r *http.Request) {
	a, err := actorFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	list, err := h.service.ActiveLoans(r.Context(), a.id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleReturnedLoans(w http.ResponseWriter, r *http.Request) {
	a, err := actorFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.ReturnedLoans(r.Context(), a.id, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleOverdueLoans(w http.ResponseWriter, r *http.Request) {
	a, err := actorFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !a.admin {
		respondError(w, http.StatusForbidden, "admin role required")
		return
	}

	list, err := h.service.OverdueLoans(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	a, err := actorFrom(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !a.admin {
		respondError(w, http.StatusForbidden, "admin role required")
		return
	}

	n, err := h.service.RunOverdueSweep(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"transitioned": n})
}

// respondServiceError maps the error taxonomy to HTTP statuses. The mapping
// lives here; the service layer knows nothing about HTTP.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrLoanNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyBorrowed), errors.Is(err, ErrOutOfStock), errors.Is(err, ErrAlreadyReturned):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
