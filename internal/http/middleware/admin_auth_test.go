package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func serveAdmin(t *testing.T, secret, authHeader string) (*httptest.ResponseRecorder, *StaffClaims) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	var seen *StaffClaims
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := StaffFromContext(r.Context())
		if !ok {
			t.Fatalf("expected staff claims in context")
		}
		seen = &claims
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, seen
}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec, _ := serveAdmin(t, "", "Bearer "+signedStaffToken(t, "secret", jwt.SigningMethodHS256, time.Minute))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec, _ := serveAdmin(t, "secret", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}
}

func TestAdminJWTRejects(t *testing.T) {
	cases := map[string]string{
		"wrong secret": "Bearer " + signedStaffToken(t, "wrong", jwt.SigningMethodHS256, time.Minute),
		"expired":      "Bearer " + signedStaffToken(t, "secret", jwt.SigningMethodHS256, -time.Hour),
		"alg none":     "Bearer " + noneToken(t),
		"not bearer":   "Basic dXNlcjpwYXNz",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := serveAdmin(t, "secret", header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	rec, claims := serveAdmin(t, "secret", "bearer "+signedStaffToken(t, "secret", jwt.SigningMethodHS256, 5*time.Minute))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if claims == nil || claims.Subject != "recepcion@vatosalfa.mx" || claims.Role != "recepcion" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func signedStaffToken(t *testing.T, secret string, method jwt.SigningMethod, ttl time.Duration) string {
	t.Helper()
	claims := StaffClaims{
		Name: "Recepción",
		Role: "recepcion",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "recepcion@vatosalfa.mx",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func noneToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
