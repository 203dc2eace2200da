package search

import (
	"context"
	"fmt"
	"strings"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProvider ResultType = "provider"
	ResultFacility ResultType = "facility"
	ResultNote     ResultType = "note"
)

// ParseType accepts "", provider, facility or note.
func ParseType(value string) (ResultType, error) {
	switch t := ResultType(strings.ToLower(strings.TrimSpace(value))); t {
	case "", ResultProvider, ResultFacility, ResultNote:
		return t, nil
	default:
		return "", fmt.Errorf("unknown search type %q", value)
	}
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	// RecordType and RecordID locate the record a note is attached to.
	RecordType string `json:"recordType,omitempty"`
	RecordID   string `json:"recordId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexProviders(items []ProviderRecord) error
	IndexFacilities(items []FacilityRecord) error
	IndexNotes(items []NoteRecord) error
	Delete(t ResultType, id string) error
}

// Engine is a search backend that also maintains its own index.
type Engine interface {
	Searcher
	Indexer
}

type ProviderRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NPI       string `json:"npi"`
	Specialty string `json:"specialty"`
	Status    string `json:"status"`
}

type FacilityRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	State   string `json:"state"`
	Address string `json:"address"`
}

type NoteRecord struct {
	ID         string `json:"id"`
	Body       string `json:"body"`
	Author     string `json:"author"`
	RecordType string `json:"recordType"`
	RecordID   string `json:"recordId"`
}

// ProviderFromRow maps a providers row to its index document.
func ProviderFromRow(row map[string]any) ProviderRecord {
	return ProviderRecord{
		ID:        str(row["id"]),
		Name:      strings.TrimSpace(str(row["first_name"]) + " " + str(row["last_name"])),
		NPI:       str(row["npi"]),
		Specialty: str(row["specialty"]),
		Status:    str(row["status"]),
	}
}

// FacilityFromRow maps a facilities row to its index document.
func FacilityFromRow(row map[string]any) FacilityRecord {
	return FacilityRecord{
		ID:      str(row["id"]),
		Name:    str(row["name"]),
		Type:    str(row["type"]),
		State:   str(row["state"]),
		Address: str(row["address"]),
	}
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
