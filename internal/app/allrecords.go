package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"credentialing/api/internal/export"
	"credentialing/api/internal/store"
)

// allRecordsTimeout bounds the aggregate fetch across every provider grid.
const allRecordsTimeout = 30 * time.Second

// providerTables are keyed by provider_id.
var providerTables = []string{
	"state_licenses",
	"dea_licenses",
	"state_controlled_substance_licenses",
	"birth_info",
	"addresses",
	"facility_affiliations",
}

// attachedTables reference their record through record_type/record_id.
var attachedTables = []string{"notes", "documents"}

type AllRecords struct {
	Provider store.Record
	Tables   map[string][]store.Record
}

// MarshalJSON flattens the tables next to the provider: {"provider": {...}, "state_licenses": [...]}.
func (a AllRecords) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Tables)+1)
	for table, rows := range a.Tables {
		out[table] = rows
	}
	out["provider"] = a.Provider
	return json.Marshal(out)
}

// AllRecords gathers a provider and every row that hangs off it. Tables load concurrently and
// the whole fetch shares one deadline.
func (s *Service) AllRecords(ctx context.Context, providerID string) (AllRecords, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return AllRecords{}, invalid("provider_id is required", nil)
	}
	if _, err := uuid.Parse(providerID); err != nil {
		return AllRecords{}, invalid("provider_id must be a UUID", map[string]any{"provider_id": providerID})
	}

	ctx, cancel := context.WithTimeout(ctx, allRecordsTimeout)
	defer cancel()

	result := AllRecords{Tables: make(map[string][]store.Record, len(providerTables)+len(attachedTables))}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		row, err := s.store.FetchRecord(gctx, "providers", providerID)
		if err != nil {
			return err
		}
		mu.Lock()
		result.Provider = row
		mu.Unlock()
		return nil
	})

	fetch := func(table string, eq map[string]any) {
		g.Go(func() error {
			rows, err := s.store.FetchRecords(gctx, table, store.Filter{Eq: eq})
			if err != nil {
				return err
			}
			if rows == nil {
				rows = []store.Record{}
			}
			mu.Lock()
			result.Tables[table] = rows
			mu.Unlock()
			return nil
		})
	}
	for _, table := range providerTables {
		fetch(table, map[string]any{"provider_id": providerID})
	}
	for _, table := range attachedTables {
		fetch(table, map[string]any{"record_type": "providers", "record_id": providerID})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return AllRecords{}, wrapDomainError(err, http.StatusGatewayTimeout, "TIMEOUT", "Fetching provider records timed out")
		}
		return AllRecords{}, err
	}
	return result, nil
}

// ProviderReport renders the aggregate as a printable report.
func (s *Service) ProviderReport(ctx context.Context, providerID string, format export.Format) (*export.Result, error) {
	records, err := s.AllRecords(ctx, providerID)
	if err != nil {
		return nil, err
	}
	report := export.BuildReport(s.fields, export.Source{
		Provider: records.Provider,
		Tables:   toRows(records.Tables),
	}, s.now())
	result, err := s.reports.Export(ctx, report, format)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrPDFDependencyMissing):
			return nil, wrapDomainError(err, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server")
		case errors.Is(err, export.ErrUnsupportedFormat):
			return nil, invalid(err.Error(), nil)
		}
		return nil, err
	}
	return result, nil
}

func toRows(tables map[string][]store.Record) map[string][]map[string]any {
	out := make(map[string][]map[string]any, len(tables))
	for table, rows := range tables {
		converted := make([]map[string]any, len(rows))
		for i, row := range rows {
			converted[i] = row
		}
		out[table] = converted
	}
	return out
}
