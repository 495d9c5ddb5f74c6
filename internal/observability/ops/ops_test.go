package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	rtsup "remindbot/internal/runtime/supervisor"
	logx "remindbot/pkg/logx"
)

func testService() *Service {
	return New(Config{}, Sources{
		Reminders: func() any { return map[string]int{"reminders": 2} },
		Supervisors: func() map[string]rtsup.Counters {
			return map[string]rtsup.Counters{"app": {Active: 3}}
		},
	}, logx.Nop())
}

func TestHandlerAuth(t *testing.T) {
	t.Parallel()
	h := testService().Handler(Config{Token: "s3cret"})

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"healthz is open", "/healthz", "", http.StatusOK},
		{"missing token", "/v1/reminders", "", http.StatusUnauthorized},
		{"wrong token", "/v1/reminders", "Bearer nope", http.StatusUnauthorized},
		{"good token", "/v1/reminders", "Bearer s3cret", http.StatusOK},
		{"no notifier source", "/v1/notifier", "Bearer s3cret", http.StatusNotFound},
		{"pprof off", "/debug/pprof/", "Bearer s3cret", http.StatusNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("%s = %d, want %d", tt.path, rec.Code, tt.status)
			}
		})
	}
}

func TestHandlerJSON(t *testing.T) {
	t.Parallel()
	h := testService().Handler(Config{Pprof: true})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runtime", nil))
	var got map[string]rtsup.Counters
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	if got["app"].Active != 3 {
		t.Fatalf("runtime = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("pprof cmdline = %d", rec.Code)
	}
}

func TestServeLifecycle(t *testing.T) {
	t.Parallel()
	s := testService()
	ctx := context.Background()
	s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})

	var addr string
	deadline := time.Now().Add(3 * time.Second)
	for addr == "" {
		if time.Now().After(deadline) {
			t.Fatal("server never bound")
		}
		time.Sleep(10 * time.Millisecond)
		addr = s.Addr()
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	sctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	s.Reconfigure(sctx, Config{Enabled: false})
	if s.Supervisor() != nil {
		t.Fatal("still running after disable")
	}
}

func TestRefusesPublicBindWithoutToken(t *testing.T) {
	t.Parallel()
	if isLoopbackAddr("0.0.0.0:6060") || isLoopbackAddr(":6060") {
		t.Fatal("wildcard treated as loopback")
	}
	if !isLoopbackAddr("127.0.0.1:6060") || !isLoopbackAddr("localhost:1") || !isLoopbackAddr("[::1]:1") {
		t.Fatal("loopback rejected")
	}
}
