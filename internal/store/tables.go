package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotFound      = errors.New("record not found")
)

type ColumnType string

const (
	ColText      ColumnType = "text"
	ColUUID      ColumnType = "uuid"
	ColDate      ColumnType = "date"
	ColTimestamp ColumnType = "timestamp"
	ColBool      ColumnType = "bool"
	ColInt       ColumnType = "int"
	ColNumeric   ColumnType = "numeric"
	ColTextArray ColumnType = "text[]"
	ColJSON      ColumnType = "jsonb"
)

type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	// Generated columns are assigned by the database and never written by callers.
	Generated bool
}

type Table struct {
	Name    string
	Columns []Column
	index   map[string]Column
}

func newTable(name string, cols ...Column) Table {
	all := append([]Column{
		{Name: "id", Type: ColUUID, Generated: true},
	}, cols...)
	all = append(all,
		Column{Name: "created_at", Type: ColTimestamp, Generated: true},
		Column{Name: "updated_at", Type: ColTimestamp, Generated: true},
	)
	t := Table{Name: name, Columns: all, index: make(map[string]Column, len(all))}
	for _, c := range all {
		t.index[c.Name] = c
	}
	return t
}

func (t Table) Column(name string) (Column, bool) {
	c, ok := t.index[name]
	return c, ok
}

func text(name string) Column      { return Column{Name: name, Type: ColText, Nullable: true} }
func reqText(name string) Column   { return Column{Name: name, Type: ColText} }
func date(name string) Column      { return Column{Name: name, Type: ColDate, Nullable: true} }
func ref(name string) Column       { return Column{Name: name, Type: ColUUID} }
func optRef(name string) Column    { return Column{Name: name, Type: ColUUID, Nullable: true} }
func textArray(name string) Column { return Column{Name: name, Type: ColTextArray, Nullable: true} }
func jsonb(name string) Column     { return Column{Name: name, Type: ColJSON, Nullable: true} }

// searchVector is the generated tsvector column, rendered as text by row_to_json.
var searchVector = Column{Name: "search_vector", Type: ColText, Nullable: true, Generated: true}

var tables = map[string]Table{}

func register(t Table) {
	tables[t.Name] = t
}

func init() {
	register(newTable("providers",
		reqText("first_name"), reqText("last_name"), text("title"), text("npi"), text("specialty"),
		text("status"), text("email"), text("phone"), textArray("tags"), textArray("languages"),
		date("start_date"), text("notes_summary"), searchVector,
	))
	register(newTable("state_licenses",
		ref("provider_id"), text("state"), text("license_number"), text("license_type"), text("status"),
		date("issue_date"), date("expiration_date"), textArray("tags"),
	))
	register(newTable("dea_licenses",
		ref("provider_id"), text("state"), text("dea_number"), textArray("schedules"), text("status"),
		date("issue_date"), date("expiration_date"),
	))
	register(newTable("state_controlled_substance_licenses",
		ref("provider_id"), text("state"), text("license_number"), text("status"),
		date("issue_date"), date("expiration_date"),
	))
	register(newTable("birth_info",
		ref("provider_id"), date("date_of_birth"), text("birth_city"), text("birth_state"), text("birth_country"),
	))
	register(newTable("addresses",
		ref("provider_id"), text("type"), text("line1"), text("line2"), text("city"), text("state"), text("zip"),
	))
	register(newTable("facility_affiliations",
		ref("provider_id"), optRef("facility_id"), text("role"), text("status"),
		date("start_date"), date("end_date"), Column{Name: "in_good_standing", Type: ColBool, Nullable: true},
	))
	register(newTable("facilities",
		reqText("name"), text("type"), text("state"), text("address"), text("phone"), textArray("tags"), searchVector,
	))
	register(newTable("facility_properties",
		reqText("key"), reqText("label"), text("type"), text("group"), textArray("options"),
	))
	register(newTable("facility_property_values",
		ref("facility_id"), ref("property_id"), jsonb("value"),
	))
	register(newTable("requirements",
		reqText("name"), text("type"), text("note"),
	))
	register(newTable("requirement_data",
		ref("requirement_id"), reqText("key"), text("label"), text("data_type"),
	))
	register(newTable("facility_requirement_values",
		ref("facility_id"), ref("requirement_data_id"), jsonb("value"),
	))
	register(newTable("contacts",
		optRef("provider_id"), optRef("facility_id"), reqText("name"), text("role"), text("email"), text("phone"),
	))
	register(newTable("notes",
		reqText("record_type"), ref("record_id"), text("author"), reqText("body"), searchVector,
	))
	register(newTable("documents",
		reqText("record_type"), ref("record_id"), reqText("name"), reqText("storage_path"),
		text("content_type"), Column{Name: "size", Type: ColInt}, text("uploaded_by"),
	))
}

// LookupTable resolves a registered table name.
func LookupTable(name string) (Table, error) {
	t, ok := tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t, nil
}

// TableNames lists registered tables in name order.
func TableNames() []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every value in rec has the declared column type. Columns missing from
// rec are not an error.
func (t Table) Validate(rec Record) error {
	for _, name := range sortedKeys(rec) {
		col, ok := t.index[name]
		if !ok {
			return fmt.Errorf("%s: %w %q", t.Name, ErrUnknownColumn, name)
		}
		if err := col.check(rec[name]); err != nil {
			return fmt.Errorf("%s.%s: %w", t.Name, name, err)
		}
	}
	return nil
}

func (c Column) check(v any) error {
	if v == nil {
		if c.Nullable || c.Generated {
			return nil
		}
		return errors.New("null value")
	}
	switch c.Type {
	case ColText:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("want string, got %T", v)
		}
	case ColUUID:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want uuid string, got %T", v)
		}
		if _, err := uuid.Parse(s); err != nil {
			return fmt.Errorf("invalid uuid %q", s)
		}
	case ColDate:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want date string, got %T", v)
		}
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return fmt.Errorf("invalid date %q", s)
		}
	case ColTimestamp:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want timestamp string, got %T", v)
		}
		if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Errorf("invalid timestamp %q", s)
		}
	case ColBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("want bool, got %T", v)
		}
	case ColInt:
		switch n := v.(type) {
		case json.Number:
			if _, err := n.Int64(); err != nil {
				return fmt.Errorf("want integer, got %s", n)
			}
		case int, int32, int64:
		case float64:
			if n != float64(int64(n)) {
				return fmt.Errorf("want integer, got %v", n)
			}
		default:
			return fmt.Errorf("want integer, got %T", v)
		}
	case ColNumeric:
		switch v.(type) {
		case json.Number, int, int32, int64, float64:
		default:
			return fmt.Errorf("want number, got %T", v)
		}
	case ColTextArray:
		switch items := v.(type) {
		case []string:
		case []any:
			for i, item := range items {
				if _, ok := item.(string); !ok {
					return fmt.Errorf("element %d: want string, got %T", i, item)
				}
			}
		default:
			return fmt.Errorf("want string array, got %T", v)
		}
	case ColJSON:
	}
	return nil
}

// writable filters rec to caller-writable columns. Blank strings become NULL for typed
// columns so cleared selects and dates store as empty.
func (t Table) writable(rec Record) (Record, error) {
	out := make(Record, len(rec))
	for _, name := range sortedKeys(rec) {
		col, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w %q", t.Name, ErrUnknownColumn, name)
		}
		if col.Generated && name != "id" {
			continue
		}
		v := rec[name]
		if s, ok := v.(string); ok && s == "" && col.Type != ColText {
			v = nil
		}
		if name == "id" && v == nil {
			continue
		}
		out[name] = v
	}
	return out, nil
}

func sortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
