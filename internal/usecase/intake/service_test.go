package intake

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Guilherme9797/meu-app/internal/domain"
)

type fakeSessions struct {
	session   domain.Session
	topicSets []string
}

func (f *fakeSessions) GetOrCreate(_ context.Context, phone, name string) (domain.Session, error) {
	if f.session.ID == "" {
		f.session = domain.Session{ID: "sess-1", Phone: phone, Name: name}
	}
	return f.session, nil
}

func (f *fakeSessions) SetTopic(_ context.Context, _, topic string) error {
	f.topicSets = append(f.topicSets, topic)
	return nil
}

type savedExchange struct {
	providerMsgID string
	userText      string
	reply         string
	topic         string
	sources       []domain.AuditSource
}

type fakeMessages struct {
	seen    map[string]bool
	saved   []savedExchange
	history []domain.Message
	saveErr error
	listErr error
}

func (f *fakeMessages) ExistsProviderMsg(_ context.Context, id string) (bool, error) {
	return f.seen[id], nil
}

func (f *fakeMessages) SaveExchange(_ context.Context, _, providerMsgID, userText, reply, topic string, sources []domain.AuditSource) error {
	f.saved = append(f.saved, savedExchange{providerMsgID, userText, reply, topic, sources})
	return f.saveErr
}

func (f *fakeMessages) ListRecent(_ context.Context, _ string, _ int) ([]domain.Message, error) {
	return f.history, f.listErr
}

type fakeRetriever struct {
	chunks   []domain.ScoredChunk
	err      error
	fallback bool
}

func (f *fakeRetriever) Retrieve(context.Context, string, int) ([]domain.ScoredChunk, error) {
	return f.chunks, f.err
}

func (f *fakeRetriever) ShouldFallback([]domain.ScoredChunk) bool { return f.fallback }

type fakeChat struct {
	replies []string
	prompts []string
	calls   int
	err     error
}

func (f *fakeChat) Generate(_ context.Context, _, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.prompts = append(f.prompts, prompt)
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return reply, nil
}

type fakeWeb struct {
	results []domain.WebResult
	err     error
	calls   int
}

func (f *fakeWeb) Search(context.Context, string, int) ([]domain.WebResult, error) {
	f.calls++
	return f.results, f.err
}

func goodChunks() []domain.ScoredChunk {
	return []domain.ScoredChunk{
		{Chunk: domain.Chunk{DocTitle: "cdc", Span: "p. 1", Text: "texto"}, Score: 0.9},
	}
}

func TestHandleIncoming_HappyPath(t *testing.T) {
	sessions := &fakeSessions{}
	messages := &fakeMessages{}
	svc := New(sessions, messages,
		&fakeRetriever{chunks: goodChunks()},
		&fakeChat{replies: []string{"resposta"}},
		&fakeWeb{},
		Config{UseWebFallback: true, AppendCoverageNote: true},
	)

	reply, err := svc.HandleIncoming(context.Background(), "5511999990000", "Ana", "produto com defeito", "msg-1")
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if reply.Text != "resposta" {
		t.Errorf("reply = %q", reply.Text)
	}
	if reply.Topic != TopicConsumidor {
		t.Errorf("topic = %s, want %s", reply.Topic, TopicConsumidor)
	}
	if len(sessions.topicSets) != 1 || sessions.topicSets[0] != TopicConsumidor {
		t.Errorf("topic sets = %v", sessions.topicSets)
	}
	if len(messages.saved) != 1 {
		t.Fatalf("saved = %d, want 1", len(messages.saved))
	}
	if messages.saved[0].providerMsgID != "msg-1" {
		t.Errorf("provider id = %q", messages.saved[0].providerMsgID)
	}
	if len(messages.saved[0].sources) != 1 || messages.saved[0].sources[0].Type != "pdf" {
		t.Errorf("sources = %+v", messages.saved[0].sources)
	}
}

func TestHandleIncoming_DuplicateShortCircuits(t *testing.T) {
	messages := &fakeMessages{seen: map[string]bool{"msg-1": true}}
	retr := &fakeRetriever{err: errors.New("must not be called")}
	svc := New(&fakeSessions{}, messages, retr, &fakeChat{replies: []string{"x"}}, nil, Config{})

	reply, err := svc.HandleIncoming(context.Background(), "55119", "", "oi", "msg-1")
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if !reply.Duplicate {
		t.Error("expected duplicate reply")
	}
	if len(messages.saved) != 0 {
		t.Errorf("saved = %d, want 0", len(messages.saved))
	}
}

func TestHandleIncoming_HistoryReachesPrompt(t *testing.T) {
	messages := &fakeMessages{history: []domain.Message{
		{Role: "user", Content: "fui demitido sem justa causa"},
		{Role: "assistant", Content: "você tem direito ao aviso prévio"},
	}}
	chat := &fakeChat{replies: []string{"resposta"}}
	svc := New(&fakeSessions{}, messages,
		&fakeRetriever{chunks: goodChunks()},
		chat, nil, Config{},
	)

	if _, err := svc.HandleIncoming(context.Background(), "55119", "", "e as verbas rescisórias?", ""); err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if len(chat.prompts) != 1 {
		t.Fatalf("chat prompts = %d, want 1", len(chat.prompts))
	}
	if !strings.Contains(chat.prompts[0], "Cliente: fui demitido sem justa causa") {
		t.Errorf("prompt missing prior client turn:\n%s", chat.prompts[0])
	}
	if !strings.Contains(chat.prompts[0], "Atendente: você tem direito ao aviso prévio") {
		t.Errorf("prompt missing prior assistant turn:\n%s", chat.prompts[0])
	}
}

func TestHandleIncoming_HistoryFailureIsSoft(t *testing.T) {
	messages := &fakeMessages{listErr: errors.New("table locked")}
	svc := New(&fakeSessions{}, messages,
		&fakeRetriever{chunks: goodChunks()},
		&fakeChat{replies: []string{"resposta"}},
		nil, Config{},
	)

	reply, err := svc.HandleIncoming(context.Background(), "55119", "", "pergunta", "")
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if reply.Text != "resposta" {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestHandleIncoming_WebFallback(t *testing.T) {
	web := &fakeWeb{results: []domain.WebResult{{Title: "portal", URL: "https://example.com", Snippet: "s"}}}
	messages := &fakeMessages{}
	svc := New(&fakeSessions{}, messages,
		&fakeRetriever{fallback: true},
		&fakeChat{replies: []string{"resposta"}},
		web,
		Config{UseWebFallback: true, AppendCoverageNote: true},
	)

	reply, err := svc.HandleIncoming(context.Background(), "55119", "", "pergunta rara", "")
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if web.calls != 1 {
		t.Errorf("web calls = %d, want 1", web.calls)
	}
	if !strings.Contains(reply.Text, "orientação é preliminar") {
		t.Errorf("reply missing coverage note: %q", reply.Text)
	}
	if len(messages.saved) != 1 || messages.saved[0].sources[0].Type != "web" {
		t.Errorf("saved sources = %+v", messages.saved)
	}
}

func TestHandleIncoming_WebFailureIsSoft(t *testing.T) {
	web := &fakeWeb{err: errors.New("tavily down")}
	svc := New(&fakeSessions{}, &fakeMessages{},
		&fakeRetriever{fallback: true},
		&fakeChat{replies: []string{"resposta"}},
		web,
		Config{UseWebFallback: true},
	)

	reply, err := svc.HandleIncoming(context.Background(), "55119", "", "pergunta", "")
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if reply.Text != "resposta" {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestHandleIncoming_ChatErrorSurfaces(t *testing.T) {
	wantErr := errors.New("provider down")
	svc := New(&fakeSessions{}, &fakeMessages{},
		&fakeRetriever{chunks: goodChunks()},
		&fakeChat{err: wantErr},
		nil, Config{},
	)

	_, err := svc.HandleIncoming(context.Background(), "55119", "", "pergunta", "")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestHandleIncoming_RefineSecondPass(t *testing.T) {
	chat := &fakeChat{replies: []string{"rascunho", "texto refinado"}}
	svc := New(&fakeSessions{}, &fakeMessages{},
		&fakeRetriever{chunks: goodChunks()},
		chat, nil, Config{Refine: true},
	)

	reply, err := svc.HandleIncoming(context.Background(), "55119", "", "pergunta", "")
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if chat.calls != 2 {
		t.Errorf("chat calls = %d, want 2", chat.calls)
	}
	if reply.Text != "texto refinado" {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestHandleIncoming_SaveFailureIsSoft(t *testing.T) {
	messages := &fakeMessages{saveErr: errors.New("disk full")}
	svc := New(&fakeSessions{}, messages,
		&fakeRetriever{chunks: goodChunks()},
		&fakeChat{replies: []string{"resposta"}},
		nil, Config{},
	)

	reply, err := svc.HandleIncoming(context.Background(), "55119", "", "pergunta", "")
	if err != nil {
		t.Fatalf("HandleIncoming: %v", err)
	}
	if reply.Text != "resposta" {
		t.Errorf("reply = %q", reply.Text)
	}
}
