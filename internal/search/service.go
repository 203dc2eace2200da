package search

import (
	"context"

	"go.uber.org/zap"
)

// Loader reads every searchable record for a full reindex.
type Loader interface {
	LoadAllRecords(ctx context.Context) ([]ProviderRecord, []FacilityRecord, []NoteRecord, error)
}

// Service is the facade that tries the engine first and falls back to Postgres.
type Service struct {
	engine   Engine
	fallback Searcher
	loader   Loader
	logger   *zap.Logger
}

// NewService creates a search service. engine may be nil when Meilisearch is not configured.
func NewService(engine Engine, pgfts *PgFTS, logger *zap.Logger) *Service {
	s := &Service{engine: engine, logger: logger}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts
	}
	return s
}

func (s *Service) engineReady() bool {
	return s.engine != nil && s.engine.Healthy()
}

// Search tries the engine if healthy, otherwise falls back to full-text search.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.engineReady() {
		results, total, err := s.engine.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("search engine error, falling back to postgres", zap.Error(err))
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("postgres search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexRow indexes a changed provider or facility row (fire-and-forget). Other tables are
// not searchable and are ignored.
func (s *Service) IndexRow(table string, row map[string]any) {
	if !s.engineReady() {
		return
	}
	switch table {
	case "providers":
		rec := ProviderFromRow(row)
		s.async("index provider", rec.ID, func() error { return s.engine.IndexProviders([]ProviderRecord{rec}) })
	case "facilities":
		rec := FacilityFromRow(row)
		s.async("index facility", rec.ID, func() error { return s.engine.IndexFacilities([]FacilityRecord{rec}) })
	}
}

// IndexNote indexes a note (fire-and-forget).
func (s *Service) IndexNote(n NoteRecord) {
	if !s.engineReady() {
		return
	}
	s.async("index note", n.ID, func() error { return s.engine.IndexNotes([]NoteRecord{n}) })
}

// Remove drops an entity from the index (fire-and-forget).
func (s *Service) Remove(t ResultType, id string) {
	if !s.engineReady() {
		return
	}
	s.async("delete", id, func() error { return s.engine.Delete(t, id) })
}

// RemoveRow drops a deleted provider or facility.
func (s *Service) RemoveRow(table, id string) {
	switch table {
	case "providers":
		s.Remove(ResultProvider, id)
	case "facilities":
		s.Remove(ResultFacility, id)
	}
}

func (s *Service) async(op, id string, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			s.logger.Warn("search "+op+" failed", zap.String("id", id), zap.Error(err))
		}
	}()
}

// ReindexAll reads every searchable record from Postgres and pushes it to the engine.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.engineReady() || s.loader == nil {
		return
	}
	providers, facilities, notes, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error("search reindex load failed", zap.Error(err))
		return
	}
	if err := s.engine.IndexProviders(providers); err != nil {
		s.logger.Warn("search reindex providers", zap.Error(err))
	}
	if err := s.engine.IndexFacilities(facilities); err != nil {
		s.logger.Warn("search reindex facilities", zap.Error(err))
	}
	if err := s.engine.IndexNotes(notes); err != nil {
		s.logger.Warn("search reindex notes", zap.Error(err))
	}
	s.logger.Info("search reindex complete",
		zap.Int("providers", len(providers)),
		zap.Int("facilities", len(facilities)),
		zap.Int("notes", len(notes)),
	)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
