package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	server "seulanga/internal/adapters/http_server"
	"seulanga/internal/app"
	"seulanga/internal/authz"
	"seulanga/internal/domain"
	"seulanga/internal/storage/memory"
)

var (
	guest = domain.Actor{ID: "guest-1", Name: "Ana", Role: domain.RoleGuest}
	staff = domain.Actor{ID: "staff-1", Name: "Made", Role: domain.RoleStaff, BusinessID: "biz-1"}
	owner = domain.Actor{ID: "owner-1", Name: "Wayan", Role: domain.RoleOwner, BusinessID: "biz-1"}
)

type harness struct {
	ts   *httptest.Server
	auth *server.TokenAuth
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	err := store.WithTx(ctx, func(tx domain.Tx) error {
		return tx.PutUnit(ctx, domain.Unit{ID: "u-1", BusinessID: "biz-1", Name: "Bungalow", Price: 250000}.WithStatus(domain.UnitReady))
	})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC)
	e := app.NewEngine(store, authz.NewGuard(), app.WithClock(func() time.Time { return now }))

	auth := server.NewTokenAuth("test-secret")
	srv := server.New(server.Options{Timeout: 5 * time.Second})
	srv.MountHandlers(&server.Handlers{E: e, Auth: auth})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return &harness{ts: ts, auth: auth}
}

func (h *harness) do(t *testing.T, a *domain.Actor, method, path string, body any, hdr ...string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if a != nil {
		tok, err := h.auth.Issue(*a, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	out, _ := io.ReadAll(res.Body)
	return res, out
}

func TestHTTP_BookingFlow(t *testing.T) {
	h := newHarness(t)

	res, body := h.do(t, &guest, http.MethodPost, "/v1/bookings", map[string]any{
		"businessId": "biz-1", "unitId": "u-1", "checkIn": "2024-12-28", "checkOut": "2024-12-30", "totalPrice": 500000,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, body)
	}
	var b domain.Booking
	if err := json.Unmarshal(body, &b); err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.StatusPending || b.CheckIn.String() != "2024-12-28" {
		t.Fatalf("booking: %+v", b)
	}

	res, body = h.do(t, &staff, http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("unverified confirm: %d %s", res.StatusCode, body)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type %q", ct)
	}

	res, body = h.do(t, &guest, http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", map[string]any{"override": true})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("guest confirm: %d %s", res.StatusCode, body)
	}

	res, body = h.do(t, &staff, http.MethodPost, "/v1/bookings/"+b.ID+"/payment/verify", map[string]any{"evidenceRef": "trf-9"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify: %d %s", res.StatusCode, body)
	}
	res, body = h.do(t, &staff, http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm: %d %s", res.StatusCode, body)
	}
	_ = json.Unmarshal(body, &b)
	if b.Status != domain.StatusConfirmed {
		t.Fatalf("status %s", b.Status)
	}

	res, body = h.do(t, &staff, http.MethodPost, "/v1/bookings/"+b.ID+"/check-in", nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("check-in before arrival day: %d %s", res.StatusCode, body)
	}

	res, body = h.do(t, &staff, http.MethodGet, "/v1/audit?target="+b.ID, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("audit: %d %s", res.StatusCode, body)
	}
	var audit struct {
		Items []domain.AuditEntry `json:"items"`
	}
	_ = json.Unmarshal(body, &audit)
	if len(audit.Items) != 3 || audit.Items[0].Action != "confirm_booking" {
		t.Fatalf("audit items: %+v", audit.Items)
	}
}

func TestHTTP_AuthAndErrors(t *testing.T) {
	h := newHarness(t)

	res, _ := h.do(t, nil, http.MethodGet, "/v1/bookings", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: %d", res.StatusCode)
	}
	res, _ = h.do(t, nil, http.MethodGet, "/v1/bookings", nil, "Authorization", "Bearer nope")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", res.StatusCode)
	}

	res, _ = h.do(t, &staff, http.MethodPost, "/v1/bookings/missing/check-in", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing booking: %d", res.StatusCode)
	}
	res, _ = h.do(t, &guest, http.MethodPost, "/v1/bookings", map[string]any{"unitId": "u-1", "bogus": 1})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", res.StatusCode)
	}
	res, _ = h.do(t, &staff, http.MethodPut, "/v1/units/u-1/status", map[string]any{"status": "SHINY"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad status: %d", res.StatusCode)
	}
	res, _ = h.do(t, &staff, http.MethodGet, "/v1/audit?limit=-1", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", res.StatusCode)
	}

	res, _ = h.do(t, nil, http.MethodGet, "/healthz", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", res.StatusCode)
	}
}

func TestHTTP_UnitsAndETag(t *testing.T) {
	h := newHarness(t)

	res, body := h.do(t, &staff, http.MethodPut, "/v1/units/u-1/status", map[string]any{"status": "maintenance"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set status: %d %s", res.StatusCode, body)
	}
	var u domain.Unit
	_ = json.Unmarshal(body, &u)
	if u.Status != domain.UnitMaintenance || u.Available {
		t.Fatalf("unit: %+v", u)
	}

	res, body = h.do(t, &guest, http.MethodGet, "/v1/units?business=biz-1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, body)
	}
	var list struct {
		Items []domain.Unit `json:"items"`
	}
	_ = json.Unmarshal(body, &list)
	if len(list.Items) != 0 {
		t.Fatalf("guest sees unavailable units: %+v", list.Items)
	}

	res, _ = h.do(t, &staff, http.MethodGet, "/v1/units", nil)
	etag := res.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	res, _ = h.do(t, &staff, http.MethodGet, "/v1/units", nil, "If-None-Match", etag)
	if res.StatusCode != http.StatusNotModified {
		t.Fatalf("want 304, got %d", res.StatusCode)
	}
}

func TestHTTP_GuestsAndPromotions(t *testing.T) {
	h := newHarness(t)

	res, body := h.do(t, &staff, http.MethodPut, "/v1/businesses/biz-1/guests/guest-1/flag", map[string]any{"blocked": true, "note": "no pay"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("flag: %d %s", res.StatusCode, body)
	}
	res, body = h.do(t, &staff, http.MethodGet, "/v1/businesses/biz-1/guests/guest-1/history", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history: %d %s", res.StatusCode, body)
	}
	var hist domain.GuestHistory
	_ = json.Unmarshal(body, &hist)
	if !hist.Flag.Blocked || hist.Flag.Note != "no pay" {
		t.Fatalf("history: %+v", hist)
	}

	res, _ = h.do(t, &staff, http.MethodPost, "/v1/promotions", map[string]any{"businessId": "biz-1", "code": "x", "percentOff": 10})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("staff promotion: %d", res.StatusCode)
	}
	res, body = h.do(t, &owner, http.MethodPost, "/v1/promotions", map[string]any{"businessId": "biz-1", "code": "rainy", "amountOff": 50000})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("owner promotion: %d %s", res.StatusCode, body)
	}
	var p domain.Promotion
	_ = json.Unmarshal(body, &p)

	res, body = h.do(t, &guest, http.MethodPost, "/v1/bookings", map[string]any{
		"businessId": "biz-1", "unitId": "u-1", "checkIn": "2025-01-10", "checkOut": "2025-01-11",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, body)
	}
	var b domain.Booking
	_ = json.Unmarshal(body, &b)

	res, body = h.do(t, &staff, http.MethodPost, "/v1/bookings/"+b.ID+"/promotion", map[string]any{"promotionId": p.ID})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("apply: %d %s", res.StatusCode, body)
	}
	_ = json.Unmarshal(body, &b)
	if b.TotalPrice != 200000 {
		t.Fatalf("discounted total %d", b.TotalPrice)
	}

	res, body = h.do(t, &staff, http.MethodPost, "/v1/bookings/"+b.ID+"/payment/verify", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify: %d %s", res.StatusCode, body)
	}
	res, _ = h.do(t, &staff, http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("blocked guest confirm: %d", res.StatusCode)
	}

	res, body = h.do(t, &guest, http.MethodPatch, "/v1/bookings/"+b.ID+"/dates", map[string]any{"checkIn": "2025-01-12", "checkOut": "2025-01-14"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("modify: %d %s", res.StatusCode, body)
	}
	res, body = h.do(t, &guest, http.MethodGet, "/v1/bookings?from=2025-01-13", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, body)
	}
	var list struct {
		Items []domain.Booking `json:"items"`
	}
	_ = json.Unmarshal(body, &list)
	if len(list.Items) != 1 || list.Items[0].CheckOut.String() != "2025-01-14" {
		t.Fatalf("list: %+v", list.Items)
	}
	res, _ = h.do(t, &guest, http.MethodGet, "/v1/bookings?from=tomorrow", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date: %d", res.StatusCode)
	}
}
