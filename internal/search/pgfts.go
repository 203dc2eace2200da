package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search unions providers, facilities and notes ranked by ts_rank, with ts_headline snippets.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('simple', $1)"
	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultProvider {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'provider'::text AS type, p.id::text AS id,
				p.first_name || ' ' || p.last_name AS title,
				coalesce(p.specialty, '') AS snippet,
				''::text AS record_type, ''::text AS record_id,
				ts_rank(p.search_vector, %s) AS rank
			FROM providers p
			WHERE p.search_vector @@ %s`, tsQuery, tsQuery))
	}
	if q.FilterType == "" || q.FilterType == ResultFacility {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'facility'::text, f.id::text, f.name,
				ts_headline('simple', coalesce(f.address, ''), %s, 'MaxFragments=1,MaxWords=30'),
				''::text, ''::text,
				ts_rank(f.search_vector, %s)
			FROM facilities f
			WHERE f.search_vector @@ %s`, tsQuery, tsQuery, tsQuery))
	}
	if q.FilterType == "" || q.FilterType == ResultNote {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'note'::text, n.id::text, n.record_type || ' note',
				ts_headline('simple', n.body, %s, 'MaxFragments=1,MaxWords=30'),
				n.record_type, n.record_id::text,
				ts_rank(n.search_vector, %s)
			FROM notes n
			WHERE n.search_vector @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	union := strings.Join(subQueries, " UNION ALL ")
	var total int
	if err := p.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM (%s) sub", union), q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT type, id, title, snippet, record_type, record_id
		FROM (%s) sub
		ORDER BY rank DESC, title ASC
		LIMIT %d OFFSET %d`, union, limit, offset), q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r   Result
			typ string
		)
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.RecordType, &r.RecordID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProviderRecord, []FacilityRecord, []NoteRecord, error) {
	providers := make([]ProviderRecord, 0)
	err := p.scan(ctx, `
		SELECT id::text, first_name || ' ' || last_name, coalesce(npi, ''), coalesce(specialty, ''), coalesce(status, '')
		FROM providers
	`, func(rows *sql.Rows) error {
		var r ProviderRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.NPI, &r.Specialty, &r.Status); err != nil {
			return err
		}
		providers = append(providers, r)
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load providers: %w", err)
	}

	facilities := make([]FacilityRecord, 0)
	err = p.scan(ctx, `
		SELECT id::text, name, coalesce(type, ''), coalesce(state, ''), coalesce(address, '')
		FROM facilities
	`, func(rows *sql.Rows) error {
		var r FacilityRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.State, &r.Address); err != nil {
			return err
		}
		facilities = append(facilities, r)
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load facilities: %w", err)
	}

	notes := make([]NoteRecord, 0)
	err = p.scan(ctx, `
		SELECT id::text, body, coalesce(author, ''), record_type, record_id::text
		FROM notes
	`, func(rows *sql.Rows) error {
		var r NoteRecord
		if err := rows.Scan(&r.ID, &r.Body, &r.Author, &r.RecordType, &r.RecordID); err != nil {
			return err
		}
		notes = append(notes, r)
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load notes: %w", err)
	}
	return providers, facilities, notes, nil
}

func (p *PgFTS) scan(ctx context.Context, query string, each func(*sql.Rows) error) error {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
