// Package intake orchestrates one client message end to end: deduplicate,
// classify, retrieve grounded context, fall back to web search when the
// knowledge base is thin, generate the reply, and persist the exchange.
package intake

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Guilherme9797/meu-app/internal/domain"
	"github.com/Guilherme9797/meu-app/internal/logger"
	"github.com/Guilherme9797/meu-app/internal/metrics"
)

// Config holds the pipeline knobs.
type Config struct {
	MaxChunks          int
	MaxWebResults      int
	MaxHistory         int
	UseWebFallback     bool
	AppendCoverageNote bool
	Refine             bool
}

// Service runs the intake pipeline.
type Service struct {
	sessions  SessionStore
	messages  MessageStore
	retriever Retriever
	chat      domain.ChatModel
	web       domain.WebSearcher
	cfg       Config
}

// Reply is the pipeline output for one incoming message.
type Reply struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
	Text      string `json:"reply"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// New creates the intake service. web may be nil when the fallback is
// disabled.
func New(
	sessions SessionStore,
	messages MessageStore,
	retriever Retriever,
	chat domain.ChatModel,
	web domain.WebSearcher,
	cfg Config,
) *Service {
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 6
	}
	if cfg.MaxWebResults <= 0 {
		cfg.MaxWebResults = 4
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 10
	}
	return &Service{
		sessions:  sessions,
		messages:  messages,
		retriever: retriever,
		chat:      chat,
		web:       web,
		cfg:       cfg,
	}
}

// HandleIncoming processes one client message and returns the reply to send
// back. Redelivered provider message ids short-circuit with Duplicate set.
func (s *Service) HandleIncoming(ctx context.Context, phone, name, text, providerMsgID string) (Reply, error) {
	log := logger.FromContext(ctx)

	if providerMsgID != "" {
		seen, err := s.messages.ExistsProviderMsg(ctx, providerMsgID)
		if err != nil {
			return Reply{}, fmt.Errorf("dedupe lookup: %w", err)
		}
		if seen {
			log.Info("Dropping duplicate message",
				zap.String("provider_msg_id", providerMsgID))
			return Reply{Duplicate: true, Text: "Mensagem recebida."}, nil
		}
	}

	session, err := s.sessions.GetOrCreate(ctx, phone, name)
	if err != nil {
		return Reply{}, fmt.Errorf("session: %w", err)
	}

	topic := ClassifyTopic(text)
	if err := s.sessions.SetTopic(ctx, session.ID, topic); err != nil {
		log.Warn("Failed to update session topic", zap.Error(err))
	}

	// History is context enrichment: a lookup failure degrades to a
	// first-message prompt instead of failing the reply.
	history, err := s.messages.ListRecent(ctx, session.ID, s.cfg.MaxHistory)
	if err != nil {
		log.Warn("Failed to load conversation history", zap.Error(err))
		history = nil
	}

	chunks, err := s.retriever.Retrieve(ctx, text, s.cfg.MaxChunks)
	if err != nil {
		return Reply{}, err
	}

	lowCoverage := s.retriever.ShouldFallback(chunks)
	var web []domain.WebResult
	if lowCoverage && s.cfg.UseWebFallback && s.web != nil {
		web = s.searchWeb(ctx, text, topic)
	}

	reply, err := s.chat.Generate(ctx, systemRules, BuildPrompt(text, history, chunks, web))
	if err != nil {
		return Reply{}, err
	}

	if s.cfg.Refine {
		refined, err := s.chat.Generate(ctx, refineSystem, refinePrompt(reply))
		if err != nil {
			log.Warn("Refine pass failed, keeping draft reply", zap.Error(err))
		} else {
			reply = refined
		}
	}

	if lowCoverage && s.cfg.AppendCoverageNote {
		reply += lowCoverageNote
	}

	err = s.messages.SaveExchange(ctx, session.ID, providerMsgID, text, reply, topic, auditSources(chunks, web))
	if err != nil {
		// persistence is best effort, the client still gets the reply
		log.Error("Failed to persist exchange", zap.Error(err))
	}

	log.Info("Handled message",
		zap.String("session_id", session.ID),
		zap.String("topic", topic),
		zap.Int("chunks", len(chunks)),
		zap.Int("web_results", len(web)),
		zap.Bool("low_coverage", lowCoverage))

	return Reply{SessionID: session.ID, Topic: topic, Text: reply}, nil
}

// searchWeb runs the web fallback. Failures are logged and swallowed: web
// evidence is an enrichment, never a hard dependency.
func (s *Service) searchWeb(ctx context.Context, text, topic string) []domain.WebResult {
	query := fmt.Sprintf("%s (direito %s Brasil)", text, topic)
	results, err := s.web.Search(ctx, query, s.cfg.MaxWebResults)
	if err != nil {
		metrics.WebFallbackTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Warn("Web fallback failed", zap.Error(err))
		return nil
	}
	metrics.WebFallbackTotal.WithLabelValues("ok").Inc()
	return results
}
