package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func issue(t *testing.T, subject string, scopes []string, ttl time.Duration) string {
	t.Helper()
	token, err := IssueToken(testSecret, subject, scopes, ttl)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}
	return token
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(""); err == nil {
		t.Error("Expected error for empty secret")
	}
}

func TestVerifyToken(t *testing.T) {
	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier() failed: %v", err)
	}

	claims, err := verifier.VerifyToken(issue(t, "client-1", []string{ScopeEvents}, time.Hour))
	if err != nil {
		t.Fatalf("VerifyToken() failed: %v", err)
	}
	if claims.Subject != "client-1" {
		t.Errorf("Expected subject client-1, got %s", claims.Subject)
	}
	if len(claims.Scopes) != 1 || claims.Scopes[0] != ScopeEvents {
		t.Errorf("Unexpected scopes %v", claims.Scopes)
	}
}

func TestVerifyTokenRejections(t *testing.T) {
	verifier, _ := NewVerifier(testSecret)

	otherSecret, _ := IssueToken("other-secret", "client-1", []string{ScopeEvents}, time.Hour)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "client-1", "scopes": []string{ScopeEvents},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "client-1", "scopes": []string{ScopeEvents},
	}).SignedString([]byte(testSecret))

	tests := map[string]string{
		"empty":         "",
		"no expiry":     noExpiry,
		"garbage":       "not.a.token",
		"wrong secret":  otherSecret,
		"alg none":      noneAlg,
		"expired":       issue(t, "client-1", []string{ScopeEvents}, -time.Hour),
		"unknown scope": issue(t, "client-1", []string{"control"}, time.Hour),
		"no scopes":     issue(t, "client-1", []string{}, time.Hour),
		"no subject":    issue(t, "", []string{ScopeEvents}, time.Hour),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := verifier.VerifyToken(token); err == nil {
				t.Errorf("Expected token %q to be rejected", name)
			}
		})
	}
}

func TestIssueTokenAlwaysExpires(t *testing.T) {
	if _, err := IssueToken(testSecret, "client-1", []string{ScopeEvents}, 0); err == nil {
		t.Error("Expected zero ttl to be refused")
	}

	token := issue(t, "client-1", []string{ScopeEvents}, -time.Hour)
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("ParseUnverified() failed: %v", err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		t.Fatalf("Expected exp claim, got %v (err %v)", exp, err)
	}
	if !exp.Before(time.Now()) {
		t.Errorf("Expected exp in the past for negative ttl, got %v", exp.Time)
	}

	verifier, _ := NewVerifier(testSecret)
	if _, err := verifier.VerifyToken(token); err == nil {
		t.Error("Expected token with negative ttl to be rejected")
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/events", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := ExtractBearerToken(r)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ExtractBearerToken(%q) = %q, %v", tt.header, got, err)
		}
	}
}

func TestRequireAuthAndScope(t *testing.T) {
	verifier, _ := NewVerifier(testSecret)
	m := NewMiddleware(verifier)

	var seen *Claims
	handler := m.RequireAuth(m.RequireScope(ScopeEvents)(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClaimsFromRequest(r)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantCode   string
	}{
		{"missing token", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"invalid token", "bogus", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"admin scope", issue(t, "ops", []string{ScopeAdmin}, time.Hour), http.StatusOK, ""},
		{"events scope", issue(t, "viewer", []string{ScopeEvents}, time.Hour), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, "/events", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantCode == "" {
				if seen == nil {
					t.Error("Expected claims in request context")
				}
				return
			}
			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Invalid error body: %v", err)
			}
			if body["result"] != "error" || body["code"] != tt.wantCode {
				t.Errorf("Unexpected error body %v", body)
			}
			if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
				t.Error("Expected WWW-Authenticate challenge")
			}
		})
	}
}

func TestRequireScopeForbidden(t *testing.T) {
	m := NewMiddleware(nil)
	handler := m.RequireScope(ScopeEvents)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without claims, got %d", w.Code)
	}

	if HasScopes(&Claims{Subject: "x", Scopes: []string{"other"}}, ScopeEvents) {
		t.Error("HasScopes should fail for missing scope")
	}
	if HasScopes(nil, ScopeEvents) {
		t.Error("HasScopes should fail for nil claims")
	}
}
