package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestRequestID(t *testing.T) {
	const given = "0f8fad5b-d9cb-469f-a165-70867728950e"
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "keeps caller id", header: given, keep: true},
		{name: "generates when missing"},
		{name: "replaces malformed id", header: "not-a-uuid; drop table"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(RequestIDHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Header().Get(RequestIDHeader) != seen {
				t.Fatalf("response id %q != context id %q", rec.Header().Get(RequestIDHeader), seen)
			}
			if tc.keep && seen != given {
				t.Fatalf("id = %q, want %q", seen, given)
			}
			if _, err := uuid.Parse(seen); err != nil {
				t.Fatalf("id %q is not a uuid: %v", seen, err)
			}
		})
	}
}

func TestLoggerUsesRequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	h := RequestID(base)(Logger(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["path"] != "/v1/healthz" || line["status"] != float64(http.StatusTeapot) || line["bytes"] != float64(2) {
		t.Fatalf("log line = %v", line)
	}
	if id, _ := line["request_id"].(string); id == "" {
		t.Fatalf("log line has no request_id: %v", line)
	}
}
