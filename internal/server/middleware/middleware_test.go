package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestAuth(t *testing.T) {
	h := Auth("secret", "/api/health")(ok)

	tests := []struct {
		name   string
		path   string
		header [2]string
		want   int
	}{
		{"missing token", "/api/trades", [2]string{}, http.StatusUnauthorized},
		{"wrong token", "/api/trades", [2]string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"api key header", "/api/trades", [2]string{"X-API-Key", "secret"}, http.StatusOK},
		{"bearer", "/api/trades", [2]string{"Authorization", "Bearer secret"}, http.StatusOK},
		{"public path", "/api/health", [2]string{}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header[0] != "" {
				req.Header.Set(tt.header[0], tt.header[1])
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRateLimitPerClient(t *testing.T) {
	h := RateLimit(0.001, 2)(ok)

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if got := hit("1.1.1.1"); got != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, got)
		}
	}
	if got := hit("1.1.1.1"); got != http.StatusTooManyRequests {
		t.Fatalf("over burst status = %d, want 429", got)
	}
	if got := hit("2.2.2.2"); got != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", got)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0, 0)(ok)
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
}

type observed struct{ route, code string }

type recordingObserver struct{ calls []observed }

func (r *recordingObserver) HTTPRequest(route, code string) {
	r.calls = append(r.calls, observed{route, code})
}

func TestLoggingReportsRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prices/{mint}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	obs := &recordingObserver{}
	h := Logging(slog.New(slog.NewTextHandler(io.Discard, nil)), obs)(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/prices/abc", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	want := []observed{{"GET /api/prices/{mint}", "404"}, {"unmatched", "404"}}
	if len(obs.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", obs.calls, want)
	}
	for i := range want {
		if obs.calls[i] != want[i] {
			t.Fatalf("calls[%d] = %v, want %v", i, obs.calls[i], want[i])
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/trades", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow origin = %q, want empty", got)
	}
}
