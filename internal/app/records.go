package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"credentialing/api/internal/fields"
	"credentialing/api/internal/form"
	"credentialing/api/internal/querycache"
	"credentialing/api/internal/store"
)

// entity resolves a grid name to its table, panel configuration and cache keys.
type entity struct {
	name     string
	table    string
	queryKey string
	cfg      *fields.Config
}

func (e entity) listKey() querycache.Key { return querycache.Key{e.queryKey} }

func (e entity) providerListKey(providerID string) querycache.Key {
	return querycache.Key{e.queryKey, "provider", providerID}
}

func (e entity) rowKey(id string) querycache.Key { return querycache.Key{"row", e.table, id} }

func (e entity) optimistic() bool { return e.cfg != nil && e.cfg.Optimistic }

func (s *Service) entity(name string) (entity, error) {
	name = strings.TrimSpace(name)
	if cfg, ok := s.fields.Get(name); ok {
		return entity{name: name, table: cfg.Table, queryKey: cfg.QueryKey, cfg: cfg}, nil
	}
	if _, err := store.LookupTable(name); err != nil {
		return entity{}, domainError(http.StatusNotFound, "UNKNOWN_ENTITY", fmt.Sprintf("Unknown entity %q", name), nil)
	}
	return entity{name: name, table: name, queryKey: name}, nil
}

func (s *Service) panelEntity(name string) (entity, error) {
	e, err := s.entity(name)
	if err != nil {
		return entity{}, err
	}
	if e.cfg == nil {
		return entity{}, domainError(http.StatusNotFound, "NO_PANEL", fmt.Sprintf("No panel configured for %q", name), nil)
	}
	return e, nil
}

// ListRecords returns a grid's rows through the query cache, optionally narrowed to one provider.
func (s *Service) ListRecords(ctx context.Context, name, providerID string) ([]store.Record, error) {
	e, err := s.entity(name)
	if err != nil {
		return nil, err
	}
	key := e.listKey()
	filter := store.Filter{}
	if providerID != "" {
		key = e.providerListKey(providerID)
		filter.Eq = map[string]any{"provider_id": providerID}
	}

	rows := []store.Record{}
	err = s.cache.Fetch(ctx, key, &rows, func(ctx context.Context) (any, error) {
		return s.store.FetchRecords(ctx, e.table, filter)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) GetRecord(ctx context.Context, name, id string) (store.Record, error) {
	e, err := s.entity(name)
	if err != nil {
		return nil, err
	}
	return s.getRow(ctx, e, id)
}

func (s *Service) getRow(ctx context.Context, e entity, id string) (store.Record, error) {
	var row store.Record
	err := s.cache.Fetch(ctx, e.rowKey(id), &row, func(ctx context.Context) (any, error) {
		return s.store.FetchRecord(ctx, e.table, id)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) CreateRecord(ctx context.Context, name string, rec store.Record) (store.Record, error) {
	e, err := s.entity(name)
	if err != nil {
		return nil, err
	}
	row, err := s.store.InsertRecord(ctx, e.table, rec)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, e.listKey())
	s.search.IndexRow(e.table, row)
	return row, nil
}

func (s *Service) DeleteRecord(ctx context.Context, name, id string) error {
	e, err := s.entity(name)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRecord(ctx, e.table, id); err != nil {
		return err
	}
	s.forget(ctx, e.rowKey(id))
	s.invalidate(ctx, e.listKey())
	s.search.RemoveRow(e.table, id)
	return nil
}

// BulkDelete removes the selected grid rows in one statement.
func (s *Service) BulkDelete(ctx context.Context, name string, ids []string) (int64, error) {
	e, err := s.entity(name)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, invalid("ids are required", nil)
	}
	deleted, err := s.store.BulkDelete(ctx, e.table, ids)
	if err != nil {
		return 0, err
	}
	keys := make([]querycache.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, e.rowKey(id))
		s.search.RemoveRow(e.table, id)
	}
	s.forget(ctx, keys...)
	s.invalidate(ctx, e.listKey())
	return deleted, nil
}

// FieldView is a configured field with its resolved control.
type FieldView struct {
	fields.Field
	Kind fields.Kind `json:"kind"`
}

type SectionView struct {
	Title     string      `json:"title"`
	Collapsed bool        `json:"collapsed"`
	Fields    []FieldView `json:"fields"`
}

type FieldsView struct {
	Entity     string        `json:"entity"`
	Table      string        `json:"table"`
	Optimistic bool          `json:"optimistic"`
	Sections   []SectionView `json:"sections"`
}

func (s *Service) Fields(name string) (FieldsView, error) {
	e, err := s.panelEntity(name)
	if err != nil {
		return FieldsView{}, err
	}
	view := FieldsView{Entity: e.name, Table: e.table, Optimistic: e.optimistic()}
	for _, section := range e.cfg.Sections {
		out := SectionView{Title: section.Title, Collapsed: section.Collapsed, Fields: []FieldView{}}
		for _, field := range section.Fields {
			out.Fields = append(out.Fields, FieldView{Field: field, Kind: field.Kind()})
		}
		view.Sections = append(view.Sections, out)
	}
	return view, nil
}

type PanelView struct {
	Entity   string              `json:"entity"`
	ID       string              `json:"id"`
	Tabs     []string            `json:"tabs"`
	Sections []form.PanelSection `json:"sections"`
}

// Panel lays out one row in the side panel: configured sections holding form values.
func (s *Service) Panel(ctx context.Context, name, id string) (PanelView, error) {
	e, err := s.panelEntity(name)
	if err != nil {
		return PanelView{}, err
	}
	row, err := s.getRow(ctx, e, id)
	if err != nil {
		return PanelView{}, err
	}
	return PanelView{
		Entity:   e.name,
		ID:       id,
		Tabs:     form.Tabs,
		Sections: form.New(e.cfg, row).Layout(),
	}, nil
}

type SaveResult struct {
	Record  store.Record `json:"record"`
	Changed bool         `json:"changed"`
}

// SaveRecord applies submitted panel values to a row. Nothing is written when no value differs
// from the stored row. Optimistic entities show the merged row in their cached queries until
// the backend answers, and get both queries restored verbatim if it fails.
func (s *Service) SaveRecord(ctx context.Context, name, id string, values map[string]any) (SaveResult, error) {
	e, err := s.panelEntity(name)
	if err != nil {
		return SaveResult{}, err
	}
	row, err := s.getRow(ctx, e, id)
	if err != nil {
		return SaveResult{}, err
	}

	f := form.New(e.cfg, row)
	for key, value := range values {
		if err := f.HandleChange(key, value); err != nil {
			if errors.Is(err, form.ErrUnknownField) {
				return SaveResult{}, invalid(err.Error(), map[string]any{"field": key})
			}
			return SaveResult{}, err
		}
	}
	if !f.HasUnsavedChanges() {
		return SaveResult{Record: row, Changed: false}, nil
	}

	rowKey := e.rowKey(id).String()
	if _, busy := s.saving.LoadOrStore(rowKey, struct{}{}); busy {
		return SaveResult{}, domainError(http.StatusConflict, "SAVE_IN_FLIGHT", form.ErrSaveInFlight.Error(), nil)
	}
	defer s.saving.Delete(rowKey)

	if err := f.BeginSave(); err != nil {
		return SaveResult{}, domainError(http.StatusConflict, "SAVE_IN_FLIGHT", err.Error(), nil)
	}
	payload := store.Record(f.SavePayload())

	var saved store.Record
	commit := func(ctx context.Context) error {
		var err error
		saved, err = s.store.UpdateRecord(ctx, e.table, id, payload)
		return err
	}

	if e.optimistic() {
		merged := store.Record(f.Merged())
		apply := func(ctx context.Context) error {
			if err := s.cache.Set(ctx, e.rowKey(id), merged); err != nil {
				return err
			}
			return replaceInList(ctx, s.cache, e.listKey(), merged)
		}
		err = s.cache.Optimistic(ctx, []querycache.Key{e.listKey(), e.rowKey(id)}, apply, commit)
		if err != nil {
			s.metrics.Rollbacks.WithLabelValues(e.name).Inc()
		}
	} else {
		err = commit(ctx)
	}

	if err != nil {
		_ = f.FailSave(err)
		s.metrics.Saves.WithLabelValues(e.name, "error").Inc()
		s.logger.Warn("record save failed",
			zap.String("entity", e.name),
			zap.String("id", id),
			zap.Bool("optimistic", e.optimistic()),
			zap.Error(err),
		)
		return SaveResult{}, saveError(err)
	}

	_ = f.CompleteSave(saved)
	s.metrics.Saves.WithLabelValues(e.name, "ok").Inc()
	if e.optimistic() {
		if err := s.cache.Set(ctx, e.rowKey(id), saved); err != nil {
			s.logger.Warn("cache write failed", zap.String("entity", e.name), zap.Error(err))
		}
		if err := replaceInList(ctx, s.cache, e.listKey(), saved); err != nil {
			s.logger.Warn("cache write failed", zap.String("entity", e.name), zap.Error(err))
		}
		s.invalidate(ctx, querycache.Key{e.queryKey, "provider"})
	} else {
		s.forget(ctx, e.rowKey(id))
		s.invalidate(ctx, e.listKey())
	}
	s.search.IndexRow(e.table, saved)
	return SaveResult{Record: saved, Changed: true}, nil
}

// replaceInList swaps the row with the same id inside a cached list. A list that is not
// cached is left alone.
func replaceInList(ctx context.Context, cache *querycache.Cache, key querycache.Key, row store.Record) error {
	id := fmt.Sprint(row["id"])
	return querycache.Mutate(ctx, cache, key, func(rows []store.Record, present bool) ([]store.Record, bool) {
		if !present {
			return nil, false
		}
		for i, existing := range rows {
			if fmt.Sprint(existing["id"]) == id {
				rows[i] = row
				return rows, true
			}
		}
		return rows, false
	})
}

// saveError surfaces the backend's message to the user.
func saveError(err error) error {
	var domainErr *DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, store.ErrNotFound):
		return wrapDomainError(err, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrUnknownColumn):
		return invalid(err.Error(), nil)
	default:
		return wrapDomainError(err, http.StatusInternalServerError, "SAVE_FAILED", err.Error())
	}
}

func (s *Service) invalidate(ctx context.Context, prefix querycache.Key) {
	if err := s.cache.Invalidate(ctx, prefix); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("prefix", prefix.String()), zap.Error(err))
	}
}

func (s *Service) forget(ctx context.Context, keys ...querycache.Key) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache delete failed", zap.Error(err))
	}
}
