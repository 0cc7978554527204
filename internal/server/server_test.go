package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devonik/email-api/internal/email"
	"github.com/devonik/email-api/internal/handler"
	"github.com/devonik/email-api/internal/mailer"
	"github.com/devonik/email-api/internal/provider/stdout"
	"github.com/devonik/email-api/internal/scheduler"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubOrchestrator struct {
	stopArn   string
	stopCause string
}

func (s *stubOrchestrator) StartExecution(_ context.Context, _ []byte) (*scheduler.Execution, error) {
	return &scheduler.Execution{ExecutionArn: "arn:aws:states:eu-central-1:123:execution:email:1"}, nil
}

func (s *stubOrchestrator) StopExecution(_ context.Context, executionArn, cause string) error {
	s.stopArn = executionArn
	s.stopCause = cause
	return nil
}

func newTestServer(apiKey string, o *stubOrchestrator) *Server {
	return newTestServerWithLogger(apiKey, o, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServerWithLogger(apiKey string, o *stubOrchestrator, logger *slog.Logger) *Server {
	p := stdout.NewWithWriter(io.Discard)
	p.AddTemplate(&email.Template{Name: "reminder", Subject: "Hallo {{name}}", Html: "<p>{{name}}</p>"})

	svc := mailer.New(p, o, mailer.Config{SenderLabel: "Heiland", SenderAddress: "mail@example.com"})
	h := handler.New(svc, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New(ServerConfig{ListenAddr: "127.0.0.1:0", APIKey: apiKey, Logger: logger}, h)
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "health",
			method:     http.MethodGet,
			target:     "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name:       "post email",
			method:     http.MethodPost,
			target:     "/email",
			body:       `{"destinationAddress":"a@example.org","emailTemplate":"reminder","templateData":{"name":"Anna"}}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "post email bad request",
			method:     http.MethodPost,
			target:     "/email",
			body:       `{"subject":"s"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Missing parameter destinationAddress (for single mail) or destinations (for aws bulk mail)",
		},
		{
			name:       "wrong method",
			method:     http.MethodGet,
			target:     "/email",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "schedule",
			method:     http.MethodPost,
			target:     "/email/schedule",
			body:       `{"executionDate":"2024-05-01T08:00:00Z","destinationAddress":"a@example.org","emailTemplate":"reminder","templateData":{"name":"Anna"}}`,
			wantStatus: http.StatusOK,
			wantBody:   `"executionArn":"arn:aws:states:eu-central-1:123:execution:email:1"`,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			target:     "/nope",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer("", &stubOrchestrator{})
			rec := do(t, s.Routes(), tt.method, tt.target, tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body: got %q, want to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCancelRoute(t *testing.T) {
	t.Parallel()

	o := &stubOrchestrator{}
	s := newTestServer("", o)

	rec := do(t, s.Routes(), http.MethodDelete,
		"/email/schedule/arn:aws:states:eu-central-1:123:execution:email:1?cause=moved", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %q)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if o.stopArn != "arn:aws:states:eu-central-1:123:execution:email:1" {
		t.Errorf("arn: got %q", o.stopArn)
	}
	if o.stopCause != "moved" {
		t.Errorf("cause: got %q, want %q", o.stopCause, "moved")
	}
}

func TestAPIKey(t *testing.T) {
	t.Parallel()

	s := newTestServer("s3cret", &stubOrchestrator{})
	routes := s.Routes()
	body := `{"destinationAddress":"a@example.org","subject":"s","text":"t"}`

	rec := do(t, routes, http.MethodPost, "/email", body, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("missing key: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	if got := rec.Body.String(); got != `{"message":"Forbidden"}` {
		t.Errorf("missing key body: got %q", got)
	}
	if rec := do(t, routes, http.MethodPost, "/email/schedule", "{}", nil); rec.Code != http.StatusForbidden {
		t.Errorf("schedule without key: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := do(t, routes, http.MethodPost, "/email", body, map[string]string{"x-api-key": "wrong"}); rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := do(t, routes, http.MethodPost, "/email", body, map[string]string{"x-api-key": "s3cret"}); rec.Code != http.StatusOK {
		t.Errorf("valid key: got %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := do(t, routes, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz without key: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := newTestServerWithLogger("", &stubOrchestrator{}, logger)

	rec := do(t, s.Routes(), http.MethodDelete, "/email/schedule/arn:exec:1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %q)", rec.Code, http.StatusOK, rec.Body.String())
	}

	line := buf.String()
	for _, want := range []string{
		"msg=\"request processed\"",
		"method=DELETE",
		"route=/email/schedule/:executionArn",
		"status=200",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}

	buf.Reset()
	do(t, s.Routes(), http.MethodGet, "/healthz", "", nil)
	if buf.Len() != 0 {
		t.Errorf("health checks should not be logged, got %q", buf.String())
	}
}

func TestListenAndServe_GracefulShutdown(t *testing.T) {
	t.Parallel()

	s := newTestServer("", &stubOrchestrator{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ListenAndServe returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
