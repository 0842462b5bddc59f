//go:build integration

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "seulanga/internal/adapters/http_server"
	redisad "seulanga/internal/adapters/redis"
	"seulanga/internal/app"
	"seulanga/internal/authz"
	"seulanga/internal/domain"
	"seulanga/internal/fixtures"
	mysqlstore "seulanga/internal/storage/mysql"
)

// ---------- helpers ----------

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

type client struct {
	t    *testing.T
	base string
	tok  string
}

func (c client) call(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, c.base+path, rd)
	req.Header.Set("Authorization", "Bearer "+c.tok)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	out, _ := io.ReadAll(res.Body)
	return res.StatusCode, out
}

// ---------- the test ----------

func TestHTTP_EndToEnd_StayLifecycle(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=seulanga",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/seulanga?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	pool.MaxWait = 2 * time.Minute
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)

	ctx := context.Background()
	store := mysqlstore.New(db)
	seed := fixtures.Seed{Units: []domain.Unit{
		{ID: "bgl-1", BusinessID: "biz-ubud", Name: "Garden Bungalow", Status: domain.UnitReady, Price: 250000},
	}}
	if err := fixtures.Apply(ctx, store, seed, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	var now atomic.Int64
	setNow := func(at time.Time) { now.Store(at.UnixNano()) }
	setNow(time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC))
	e := app.NewEngine(store, authz.NewGuard(),
		app.WithCache(cache, time.Minute),
		app.WithClock(func() time.Time { return time.Unix(0, now.Load()).UTC() }),
	)
	auth := server.NewTokenAuth("e2e-secret")
	srv := server.New(server.Options{})
	srv.MountHandlers(&server.Handlers{E: e, Auth: auth})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)

	as := func(a domain.Actor) client {
		tok, err := auth.Issue(a, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		return client{t: t, base: ts.URL, tok: tok}
	}
	guest := as(domain.Actor{ID: "guest-ana", Name: "Ana", Role: domain.RoleGuest})
	staff := as(domain.Actor{ID: "staff-1", Name: "Made", Role: domain.RoleStaff, BusinessID: "biz-ubud"})

	// marketplace listing is cached
	if code, body := guest.call(http.MethodGet, "/v1/units?business=biz-ubud", nil); code != http.StatusOK {
		t.Fatalf("list units: %d %s", code, body)
	}
	if !mr.Exists("units:available:biz-ubud:v0") {
		t.Fatal("listing not cached")
	}

	code, body := guest.call(http.MethodPost, "/v1/bookings", map[string]any{
		"businessId": "biz-ubud", "unitId": "bgl-1", "checkIn": "2024-12-28", "checkOut": "2024-12-30", "totalPrice": 500000,
	})
	if code != http.StatusCreated {
		t.Fatalf("create: %d %s", code, body)
	}
	var b domain.Booking
	_ = json.Unmarshal(body, &b)

	if code, _ := staff.call(http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", nil); code != http.StatusConflict {
		t.Fatalf("unverified confirm: %d", code)
	}
	if code, body := staff.call(http.MethodPost, "/v1/bookings/"+b.ID+"/payment/verify", map[string]any{"evidenceRef": "trf-1"}); code != http.StatusOK {
		t.Fatalf("verify: %d %s", code, body)
	}
	if code, body := staff.call(http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", nil); code != http.StatusOK {
		t.Fatalf("confirm: %d %s", code, body)
	}

	setNow(time.Date(2024, 12, 28, 14, 0, 0, 0, time.UTC))
	if code, body := staff.call(http.MethodPost, "/v1/bookings/"+b.ID+"/check-in", nil); code != http.StatusOK {
		t.Fatalf("check-in: %d %s", code, body)
	}
	setNow(time.Date(2024, 12, 30, 11, 0, 0, 0, time.UTC))
	code, body = staff.call(http.MethodPost, "/v1/bookings/"+b.ID+"/check-out", nil)
	if code != http.StatusOK {
		t.Fatalf("check-out: %d %s", code, body)
	}
	_ = json.Unmarshal(body, &b)
	if b.Status != domain.StatusCompleted {
		t.Fatalf("status %s", b.Status)
	}

	// check-out dirtied the unit and dropped the cached listing
	if mr.Exists("units:available:biz-ubud:v0") {
		t.Fatal("listing cache not invalidated")
	}
	if gen, _ := mr.Get("units:gen:biz-ubud"); gen != "1" {
		t.Fatalf("listing generation: %q", gen)
	}
	code, body = guest.call(http.MethodGet, "/v1/units?business=biz-ubud", nil)
	var units struct {
		Items []domain.Unit `json:"items"`
	}
	_ = json.Unmarshal(body, &units)
	if code != http.StatusOK || len(units.Items) != 0 {
		t.Fatalf("dirty unit still listed: %d %+v", code, units.Items)
	}

	code, body = staff.call(http.MethodGet, "/v1/audit?target="+b.ID, nil)
	var audit struct {
		Items []domain.AuditEntry `json:"items"`
	}
	_ = json.Unmarshal(body, &audit)
	want := []string{"check_out", "check_in", "confirm_booking", "verify_payment", "create_booking"}
	if code != http.StatusOK || len(audit.Items) != len(want) {
		t.Fatalf("audit: %d %+v", code, audit.Items)
	}
	for i, a := range audit.Items {
		if a.Action != want[i] {
			t.Fatalf("audit %d: want %s, got %s", i, want[i], a.Action)
		}
	}
}
