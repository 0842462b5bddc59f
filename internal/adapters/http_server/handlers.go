// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"seulanga/internal/app"
	"seulanga/internal/domain"
)

type Handlers struct {
	E    *app.Engine
	Auth *TokenAuth
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Use(Authenticate(h.Auth))

		r.Get("/bookings", h.listBookings)
		r.Post("/bookings", h.createBooking)
		r.Post("/bookings/walk-in", h.createWalkIn)
		r.Post("/bookings/{id}/confirm", h.confirm)
		r.Post("/bookings/{id}/cancel", h.cancel)
		r.Post("/bookings/{id}/check-in", h.checkIn)
		r.Post("/bookings/{id}/check-out", h.checkOut)
		r.Post("/bookings/{id}/no-show", h.noShow)
		r.Patch("/bookings/{id}/dates", h.modifyDates)
		r.Post("/bookings/{id}/payment/verify", h.verifyPayment)
		r.Post("/bookings/{id}/payment/reject", h.rejectPayment)
		r.Post("/bookings/{id}/promotion", h.applyPromotion)

		r.Get("/units", h.listUnits)
		r.Put("/units/{id}/status", h.setUnitStatus)

		r.Put("/businesses/{bid}/guests/{gid}/flag", h.setGuestFlag)
		r.Get("/businesses/{bid}/guests/{gid}/history", h.guestHistory)

		r.Post("/promotions", h.createPromotion)
		r.Get("/audit", h.auditLog)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Validation Error", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusForbidden, "Unauthorized Action", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeProblem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, domain.ErrUnitUnavailable):
		writeProblem(w, http.StatusConflict, "Unit Unavailable", err.Error())
	case errors.Is(err, domain.ErrPaymentNotVerified):
		writeProblem(w, http.StatusConflict, "Payment Not Verified", err.Error())
	case errors.Is(err, domain.ErrGuestBlocked):
		writeProblem(w, http.StatusConflict, "Guest Blacklisted", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled engine error")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	etag, body := calcETagAndBody(v)
	if r.Method == http.MethodGet && etag != "" {
		// If client already has this version, short-circuit.
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routeOf(r)).Msg("failed to write body")
	}
}

func decode(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func queryDate(r *http.Request, key string) (domain.Date, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return domain.Date{}, nil
	}
	return domain.ParseDate(v)
}

// ---- bookings ----

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var in app.BookingRequest
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.E.CreateBooking(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, b)
}

func (h *Handlers) createWalkIn(w http.ResponseWriter, r *http.Request) {
	var in app.BookingRequest
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.E.CreateWalkIn(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, b)
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.BookingFilter{BusinessID: q.Get("business"), UnitID: q.Get("unit"), GuestID: q.Get("guest")}
	var err error
	if s := q.Get("status"); s != "" {
		if f.Status, err = domain.ParseBookingStatus(s); err != nil {
			writeError(w, err)
			return
		}
	}
	if f.From, err = queryDate(r, "from"); err != nil {
		writeError(w, err)
		return
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.E.ListBookings(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": out})
}

// bookingCommand adapts the engine's id-only commands to a handler.
func (h *Handlers) bookingCommand(w http.ResponseWriter, r *http.Request, run func(a domain.Actor, id string) (domain.Booking, error)) {
	b, err := run(actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

func (h *Handlers) confirm(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Override bool `json:"override"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	h.bookingCommand(w, r, func(a domain.Actor, id string) (domain.Booking, error) {
		return h.E.Confirm(r.Context(), a, id, in.Override)
	})
}

func (h *Handlers) cancel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	h.bookingCommand(w, r, func(a domain.Actor, id string) (domain.Booking, error) {
		return h.E.Cancel(r.Context(), a, id, in.Reason)
	})
}

func (h *Handlers) checkIn(w http.ResponseWriter, r *http.Request) {
	h.bookingCommand(w, r, func(a domain.Actor, id string) (domain.Booking, error) {
		return h.E.CheckIn(r.Context(), a, id)
	})
}

func (h *Handlers) checkOut(w http.ResponseWriter, r *http.Request) {
	h.bookingCommand(w, r, func(a domain.Actor, id string) (domain.Booking, error) {
		return h.E.CheckOut(r.Context(), a, id)
	})
}

func (h *Handlers) noShow(w http.ResponseWriter, r *http.Request) {
	h.bookingCommand(w, r, func(a domain.Actor, id string) (domain.Booking, error) {
		return h.E.MarkNoShow(r.Context(), a, id)
	})
}

func (h *Handlers) modifyDates(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CheckIn  domain.Date `json:"checkIn"`
		CheckOut domain.Date `json:"checkOut"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	h.bookingCommand(w, r, func(a domain.Actor, id string) (domain.Booking, error) {
		return h.E.ModifyDates(r.Context(), a, id, in.CheckIn, in.CheckOut)
	})
}

func (h *Handlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		EvidenceRef string `json:"evidenceRef"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	h.bookingCommand(w, r, func(a domain.Actor, id string) (domain.Booking, error) {
		return h.E.VerifyPayment(r.Context(), a, id, in.EvidenceRef)
	})
}

func (h *Handlers) rejectPayment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	h.bookingCommand(w, r, func(a domain.Actor, id string) (domain.Booking, error) {
		return h.E.RejectPayment(r.Context(), a, id, in.Reason)
	})
}

func (h *Handlers) applyPromotion(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PromotionID string `json:"promotionId"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	h.bookingCommand(w, r, func(a domain.Actor, id string) (domain.Booking, error) {
		return h.E.ApplyPromotion(r.Context(), a, id, in.PromotionID)
	})
}

// ---- units ----

func (h *Handlers) listUnits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.UnitFilter{BusinessID: q.Get("business")}
	if s := q.Get("status"); s != "" {
		st, err := domain.ParseUnitStatus(s)
		if err != nil {
			writeError(w, err)
			return
		}
		f.Status = st
	}
	if s := q.Get("available"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid available", "available must be true or false")
			return
		}
		f.AvailableOnly = v
	}
	out, err := h.E.ListUnits(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) setUnitStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	st, err := domain.ParseUnitStatus(in.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := h.E.SetUnitStatus(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), st)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

// ---- guests ----

func (h *Handlers) setGuestFlag(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Blocked bool   `json:"blocked"`
		Note    string `json:"note"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	f, err := h.E.SetGuestBlacklist(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "bid"), chi.URLParam(r, "gid"), in.Blocked, in.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, f)
}

func (h *Handlers) guestHistory(w http.ResponseWriter, r *http.Request) {
	out, err := h.E.GetGuestHistory(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "gid"), chi.URLParam(r, "bid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

// ---- promotions & audit ----

func (h *Handlers) createPromotion(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BusinessID string `json:"businessId"`
		Code       string `json:"code"`
		PercentOff int    `json:"percentOff"`
		AmountOff  int64  `json:"amountOff"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.E.CreatePromotion(r.Context(), actorFrom(r.Context()), domain.Promotion{
		BusinessID: in.BusinessID, Code: in.Code, PercentOff: in.PercentOff, AmountOff: in.AmountOff,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

func (h *Handlers) auditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.AuditFilter{
		BusinessID: q.Get("business"),
		Actor:      q.Get("actor"),
		Action:     q.Get("action"),
		Target:     q.Get("target"),
	}
	if ls := q.Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer")
			return
		}
		f.Limit = l
	}
	out, err := h.E.GetAuditLog(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": out})
}
