package shared_test

import (
	"testing"
	"time"

	"seulanga/internal/shared"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	c, err := shared.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Store != "memory" || c.HTTPAddr != ":8080" || c.CacheTTL != time.Minute {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoad_ParsesListsAndRejectsUnknownStore(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HOUSEKEEPER_BUSINESSES", "biz-1,biz-2")
	t.Setenv("STORE", "mysql")
	c, err := shared.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.HousekeeperBusinesses) != 2 || c.HousekeeperBusinesses[1] != "biz-2" {
		t.Fatalf("businesses: %v", c.HousekeeperBusinesses)
	}

	t.Setenv("STORE", "postgres")
	if _, err := shared.Load(); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := shared.Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
	t.Setenv("APP_ENV", "dev")
	if _, err := shared.Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET in dev")
	}

	t.Setenv("JWT_SECRET", "short")
	if _, err := shared.Load(); err != nil {
		t.Fatalf("short secret in dev: %v", err)
	}
	t.Setenv("APP_ENV", "prod")
	if _, err := shared.Load(); err == nil {
		t.Fatal("expected error for a short secret outside dev")
	}
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	c := shared.Config{BusinessTZ: "Not/AZone"}
	if c.Location() != time.UTC {
		t.Fatal("expected UTC fallback")
	}
}
