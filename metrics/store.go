package metrics

import (
	"context"
	"log/slog"
)

// LogStore writes records to a structured logger.
type LogStore struct {
	logger *slog.Logger
}

// NewLogStore creates a LogStore. A nil logger uses slog.Default.
func NewLogStore(logger *slog.Logger) *LogStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogStore{logger: logger}
}

// Insert logs the record at info level.
func (s *LogStore) Insert(_ context.Context, m GenerationMetrics) error {
	attrs := []any{
		"generation_id", m.GenerationID,
		"destination", m.Destination,
		"days", m.Days,
		"strategy", m.Strategy,
		"model", m.Model,
		"success", m.Success,
		"total", m.Total,
		"outline", m.Outline,
		"details", m.Details,
		"corrections", m.CorrectionCount,
		"rag_articles", m.RAGArticles,
	}
	if m.ValidationPassRate != nil {
		attrs = append(attrs, "validation_pass_rate", *m.ValidationPassRate)
	}
	if m.CitationRate != nil {
		attrs = append(attrs, "citation_rate", *m.CitationRate)
	}
	s.logger.Info("Generation metrics", attrs...)
	return nil
}

// Close is a no-op.
func (s *LogStore) Close() error {
	return nil
}
