package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/cashier/internal/auth"
	"github.com/kiwari-pos/cashier/internal/config"
	"github.com/kiwari-pos/cashier/internal/notify"
	"github.com/kiwari-pos/cashier/internal/router"
	"github.com/kiwari-pos/cashier/internal/service"
	"github.com/kiwari-pos/cashier/internal/session"
	"github.com/kiwari-pos/cashier/internal/ws"
)

func newRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := &config.Config{JWTSecret: "router-secret", AllowedOrigins: []string{"http://localhost:5173"}}
	svc := service.NewCashier(nil, session.NewMemoryStore(), notify.Nop{}, service.Defaults{})
	return router.New(cfg, svc, ws.NewHub()), cfg
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestSessions_RequireCashierRole(t *testing.T) {
	r, cfg := newRouter(t)
	outletID := uuid.New()

	tests := []struct {
		role string
		want int
	}{
		// A missing session proves the request got past the middleware.
		{"CASHIER", http.StatusNotFound},
		{"MANAGER", http.StatusNotFound},
		{"WAITER", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			token, err := auth.GenerateToken(cfg.JWTSecret, uuid.New(), outletID, tt.role, time.Hour)
			if err != nil {
				t.Fatalf("generate token: %v", err)
			}
			req := httptest.NewRequest("GET", "/outlets/"+outletID.String()+"/sessions/missing", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestSessions_Unauthenticated(t *testing.T) {
	r, _ := newRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/outlets/"+uuid.NewString()+"/sessions/x", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
