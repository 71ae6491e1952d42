package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/jogofacil/field-booking/internal/config"
	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/repository"
	"github.com/jogofacil/field-booking/internal/utils"
)

const secret = "test-secret"

func run(t *testing.T, mws []echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var h echo.HandlerFunc = func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, c
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, _ := run(t, []echo.MiddlewareFunc{JWTAuth(secret)}, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec, _ = run(t, []echo.MiddlewareFunc{JWTAuth(secret)}, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, "u1", model.RoleTeamCaptain))
	rec, c := run(t, []echo.MiddlewareFunc{JWTAuth(secret)}, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d", rec.Code)
	}
	if UserID(c) != "u1" || Role(c) != model.RoleTeamCaptain {
		t.Fatalf("context = %q/%q", UserID(c), Role(c))
	}
}

func TestRequireRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, "u1", model.RoleTeamCaptain))
	rec, _ := run(t, []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(model.RoleFieldOwner, model.RoleAdmin)}, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("captain on owner route: status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, "u2", model.RoleAdmin))
	rec, _ = run(t, []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(model.RoleFieldOwner, model.RoleAdmin)}, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin on owner route: status %d", rec.Code)
	}
}

type lookupFunc func(ctx context.Context, id string) (model.User, error)

func (f lookupFunc) GetByID(ctx context.Context, id string) (model.User, error) { return f(ctx, id) }

func TestRequireSubscription(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	expiry := clock.Now().Add(24 * time.Hour)
	users := map[string]model.User{
		"none": {ID: "none", Role: model.RoleTeamCaptain, Subscription: model.PlanNone},
		"paid": {ID: "paid", Role: model.RoleTeamCaptain, Subscription: model.PlanWeekly, SubscriptionExpiry: &expiry},
	}
	lookup := lookupFunc(func(_ context.Context, id string) (model.User, error) {
		if id == "broken" {
			return model.User{}, errors.New("db down")
		}
		u, ok := users[id]
		if !ok {
			return model.User{}, repository.ErrNotFound
		}
		return u, nil
	})
	mw := []echo.MiddlewareFunc{JWTAuth(secret), RequireSubscription(lookup, clock)}

	cases := []struct {
		id   string
		want int
	}{
		{"none", http.StatusPaymentRequired},
		{"paid", http.StatusOK},
		{"ghost", http.StatusUnauthorized},
		{"broken", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", bearer(t, tc.id, model.RoleTeamCaptain))
		rec, c := run(t, mw, req)
		if rec.Code != tc.want {
			t.Errorf("%s: status %d, want %d", tc.id, rec.Code, tc.want)
		}
		if tc.want == http.StatusOK {
			if u, ok := CurrentUser(c); !ok || u.ID != tc.id {
				t.Errorf("%s: current user not stored", tc.id)
			}
		}
	}

	clock.Advance(48 * time.Hour)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", bearer(t, "paid", model.RoleTeamCaptain))
	if rec, _ := run(t, mw, req); rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expired plan: status %d", rec.Code)
	}
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mws := []echo.MiddlewareFunc{
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, clock),
		NewRedisCache(config.CacheConfig{Enabled: false}, nil),
	}
	rec, _ := run(t, mws, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/auth/login")

	if got := buildRateKey(config.RateLimitConfig{Prefix: "jf:rl:auth", KeyStrategy: "ip_route"}, c); got != "jf:rl:auth:ip:10.0.0.1:route:POST /api/auth/login" {
		t.Fatalf("ip_route key = %q", got)
	}
	c.Set(ctxUserID, "u1")
	if got := buildRateKey(config.RateLimitConfig{Prefix: "jf:rl", KeyStrategy: "user"}, c); got != "jf:rl:user:u1" {
		t.Fatalf("user key = %q", got)
	}
}

func TestParseBucketResult(t *testing.T) {
	allowed, remaining, retry, ok := parseBucketResult([]any{int64(0), int64(0), int64(1500)})
	if !ok || allowed || remaining != 0 || retry != 1500 {
		t.Fatalf("got %v %d %d %v", allowed, remaining, retry, ok)
	}
	if retryAfterSeconds(retry) != 2 {
		t.Fatalf("retry after = %d", retryAfterSeconds(retry))
	}
	if _, _, _, ok := parseBucketResult("nope"); ok {
		t.Fatal("expected failure for non-array")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`[1,2]`))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != "[1,2]" {
		t.Fatalf("decoded %d %v %q %v", status, got, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:5]); ok {
		t.Fatal("short payload accepted")
	}
}

func TestCacheKeyIncludesQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "jf:cache", KeyStrategy: "route_query"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/fields")
		return cacheKeyFrom(cfg, c)
	}
	if key("/api/fields?a=1") == key("/api/fields?a=2") {
		t.Fatal("different queries share a key")
	}
	if key("/api/fields") != key("/api/fields") {
		t.Fatal("key is not stable")
	}
}
