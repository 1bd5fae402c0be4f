package authenticate

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"moiport/entity"
)

type fakeAuth struct{}

func (fakeAuth) ResolveViewer(token string) (*entity.Viewer, error) {
	if token == "good" {
		return &entity.Viewer{TenantID: "t1", UserID: "u1"}, nil
	}
	return nil, errors.New("bad token")
}

func TestAuthorizationHeaderParsing(t *testing.T) {
	handler := New(slog.Default(), fakeAuth{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"bare scheme without token", "Bearer", http.StatusUnauthorized},
		{"scheme with empty token", "Bearer ", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/crm/leads", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Errorf("%s: got status %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}
