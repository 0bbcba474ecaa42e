package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chiv5 "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Guilherme9797/meu-app/internal/domain"
	"github.com/Guilherme9797/meu-app/internal/usecase/health"
	"github.com/Guilherme9797/meu-app/internal/usecase/indexing"
	"github.com/Guilherme9797/meu-app/internal/usecase/intake"
)

type fakeIntake struct {
	reply intake.Reply
	err   error
	calls []string
}

func (f *fakeIntake) HandleIncoming(_ context.Context, phone, _, text, _ string) (intake.Reply, error) {
	f.calls = append(f.calls, phone+":"+text)
	return f.reply, f.err
}

type fakeIndexer struct {
	result indexing.Result
	err    error
}

func (f *fakeIndexer) Rebuild(context.Context) (indexing.Result, error) { return f.result, f.err }
func (f *fakeIndexer) Update(context.Context) (indexing.Result, error)  { return f.result, f.err }
func (f *fakeIndexer) Status() indexing.Stats {
	return indexing.Stats{Documents: f.result.Documents, Chunks: f.result.Chunks}
}

type fakeHealth struct{}

func (fakeHealth) Check(context.Context) health.Report {
	return health.Report{Status: health.Healthy, Checks: map[string]health.CheckResult{"database": health.CheckOK}}
}

type fakeGateway struct {
	verify     bool
	sent       []string
	registered []string
}

func (f *fakeGateway) SendText(_ context.Context, phone, message string) error {
	f.sent = append(f.sent, phone+":"+message)
	return nil
}

func (f *fakeGateway) VerifySignature([]byte, http.Header) bool { return f.verify }

func (f *fakeGateway) UpdateWebhookReceived(_ context.Context, url string) error {
	f.registered = append(f.registered, "received:"+url)
	return nil
}

func (f *fakeGateway) UpdateEveryWebhooks(_ context.Context, url string) error {
	f.registered = append(f.registered, "every:"+url)
	return nil
}

func newTestRouter(t *testing.T, s *Server, adminKeys ...string) *chiv5.Mux {
	t.Helper()
	r := chiv5.NewRouter()
	s.Register(r, adminKeys)
	return r
}

func TestAsk(t *testing.T) {
	svc := &fakeIntake{reply: intake.Reply{SessionID: "s1", Topic: "consumidor", Text: "resposta"}}
	r := newTestRouter(t, NewServer(svc, &fakeIndexer{}, fakeHealth{}, nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask",
		strings.NewReader(`{"question":"posso devolver?","phone":"5511999990000"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var got intake.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Text != "resposta" || got.Topic != "consumidor" {
		t.Errorf("reply = %+v", got)
	}
	if len(svc.calls) != 1 || svc.calls[0] != "5511999990000:posso devolver?" {
		t.Errorf("calls = %v", svc.calls)
	}
}

func TestAsk_Validation(t *testing.T) {
	r := newTestRouter(t, NewServer(&fakeIntake{}, &fakeIndexer{}, fakeHealth{}, nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"phone":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrIndexUnavailable, http.StatusServiceUnavailable},
		{domain.ErrEmbeddingProvider, http.StatusBadGateway},
		{domain.ErrChatProvider, http.StatusBadGateway},
		{domain.ErrSessionNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		r := newTestRouter(t, NewServer(&fakeIntake{err: tt.err}, &fakeIndexer{}, fakeHealth{}, nil, zap.NewNop()))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`)))
		if rec.Code != tt.want {
			t.Errorf("err %v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestWebhook(t *testing.T) {
	svc := &fakeIntake{reply: intake.Reply{SessionID: "s1", Text: "resposta"}}
	gw := &fakeGateway{verify: true}
	r := newTestRouter(t, NewServer(svc, &fakeIndexer{}, fakeHealth{}, gw, zap.NewNop()))

	body := `{"phone":"5511999990000","text":{"message":"olá"},"messageId":"m1","senderName":"Ana"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/zapi", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if len(gw.sent) != 1 || gw.sent[0] != "+5511999990000:resposta" {
		t.Errorf("sent = %v", gw.sent)
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	gw := &fakeGateway{verify: false}
	r := newTestRouter(t, NewServer(&fakeIntake{}, &fakeIndexer{}, fakeHealth{}, gw, zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/zapi", strings.NewReader(`{}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWebhook_IgnoresUnparseablePayload(t *testing.T) {
	svc := &fakeIntake{}
	gw := &fakeGateway{verify: true}
	r := newTestRouter(t, NewServer(svc, &fakeIndexer{}, fakeHealth{}, gw, zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/zapi", strings.NewReader(`{"status":"DELIVERED"}`)))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Errorf("intake called for status payload: %v", svc.calls)
	}
}

func TestWebhook_IgnoresFromMe(t *testing.T) {
	svc := &fakeIntake{}
	gw := &fakeGateway{verify: true}
	r := newTestRouter(t, NewServer(svc, &fakeIndexer{}, fakeHealth{}, gw, zap.NewNop()))

	body := `{"phone":"5511999990000","text":{"message":"eco"},"fromMe":true}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/zapi", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Errorf("intake called for own message: %v", svc.calls)
	}
}

func TestAdmin_RequiresKey(t *testing.T) {
	r := newTestRouter(t, NewServer(&fakeIntake{}, &fakeIndexer{}, fakeHealth{}, nil, zap.NewNop()), "secret")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/index/rebuild", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/index/rebuild", nil)
	req.Header.Set("X-API-Key", "secret")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("X-API-Key: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/index/rebuild", nil)
	req.Header.Set("Authorization", "Bearer secret")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("bearer: status = %d, want 200", rec.Code)
	}
}

func TestAdmin_RebuildConflict(t *testing.T) {
	idx := &fakeIndexer{err: domain.ErrRebuildInProgress}
	r := newTestRouter(t, NewServer(&fakeIntake{}, idx, fakeHealth{}, nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/index/rebuild", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestAdmin_RegisterWebhooks(t *testing.T) {
	gw := &fakeGateway{verify: true}
	r := newTestRouter(t, NewServer(&fakeIntake{}, &fakeIndexer{}, fakeHealth{}, gw, zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/webhooks",
		strings.NewReader(`{"url":"https://app.example.com/webhook/zapi"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	want := []string{
		"received:https://app.example.com/webhook/zapi",
		"every:https://app.example.com/webhook/zapi",
	}
	if len(gw.registered) != 2 || gw.registered[0] != want[0] || gw.registered[1] != want[1] {
		t.Errorf("registered = %v", gw.registered)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, NewServer(&fakeIntake{}, &fakeIndexer{}, fakeHealth{}, nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report health.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Status != health.Healthy {
		t.Errorf("status = %s", report.Status)
	}
}
