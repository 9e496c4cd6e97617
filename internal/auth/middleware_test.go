package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

const testStaffID = "0b6f7d4c-2222-4000-8000-00000000bbbb"

func newTestHandler(t *testing.T) (http.Handler, *Role) {
	t.Helper()
	var seen Role
	mw := NewMiddleware(testSecret, NewDefaultPolicy([]string{"/healthz"}, []string{"/metrics"}))
	return mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})), &seen
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	handler, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/generate", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := mustToken(t, []byte("other-secret"), RoleSuperAdmin)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payouts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_NonUUIDSubjectUnauthorized(t *testing.T) {
	handler, _ := newTestHandler(t)
	token, err := IssueJWT(testSecret, "staff-1", RoleFinanceAdmin, "staff@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/period-1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if _, err := ParseJWT(token, testSecret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestAuthMiddleware_OperationsManagerForbiddenApprove(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := mustToken(t, testSecret, RoleOperationsManager)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/period-1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_OperationsManagerMayHold(t *testing.T) {
	handler, seen := newTestHandler(t)
	token := mustToken(t, testSecret, RoleOperationsManager)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/order-items/item-1/hold", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if *seen != RoleOperationsManager {
		t.Fatalf("expected identity in context, got %q", *seen)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler, _ := newTestHandler(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestRequire(t *testing.T) {
	if _, err := Require(context.Background(), PayoutOperators...); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	ctx := WithIdentity(context.Background(), RoleOperationsManager, "staff-1", "")
	if _, err := Require(ctx, PayoutApprovers...); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	role, err := Require(ctx, PayoutOperators...)
	if err != nil || role != RoleOperationsManager {
		t.Fatalf("expected operations manager allowed, got %v %v", role, err)
	}
}

func mustToken(t *testing.T, secret []byte, role Role) string {
	t.Helper()
	signed, err := IssueJWT(secret, testStaffID, role, "staff@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
