// Package seed fills the license tables with reproducible sample rows for every provider.
package seed

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"credentialing/api/internal/fields"
	"credentialing/api/internal/store"
)

// Tables that can be seeded, in the order "all" runs them.
const (
	TableStateLicenses       = "state_licenses"
	TableDEALicenses         = "dea_licenses"
	TableControlledSubstance = "state_controlled_substance_licenses"
)

var Tables = []string{TableStateLicenses, TableDEALicenses, TableControlledSubstance}

var ErrUnknownTable = errors.New("table cannot be seeded")

const (
	minRowsPerProvider = 3
	maxRowsPerProvider = 5
)

// issueWindowStart is the earliest generated issue date.
var issueWindowStart = time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)

// Options are the dropdown values generated rows draw from, so seeded data renders with
// the same labels as hand-entered data.
type Options struct {
	States       []string
	Statuses     []string
	LicenseTypes []string
	Schedules    []string
}

// OptionsFrom reads the shared option lists from the field registry.
func OptionsFrom(reg *fields.Registry) (Options, error) {
	ids := func(name string) []string {
		opts := reg.Options(name)
		out := make([]string, 0, len(opts))
		for _, o := range opts {
			out = append(out, o.ID)
		}
		return out
	}
	opts := Options{
		States:       ids("states"),
		Statuses:     ids("license_statuses"),
		LicenseTypes: ids("license_types"),
		Schedules:    ids("dea_schedules"),
	}
	for name, list := range map[string][]string{
		"states":           opts.States,
		"license_statuses": opts.Statuses,
		"license_types":    opts.LicenseTypes,
		"dea_schedules":    opts.Schedules,
	} {
		if len(list) == 0 {
			return Options{}, fmt.Errorf("seed options: %q is empty", name)
		}
	}
	return opts, nil
}

// Generate builds 3-5 rows per provider for table. The output depends only on the inputs.
func Generate(table string, providerIDs []string, opts Options, seed int64) ([]store.Record, error) {
	var row func(*rand.Rand, string) store.Record
	switch table {
	case TableStateLicenses:
		row = opts.stateLicense
	case TableDEALicenses:
		row = opts.deaLicense
	case TableControlledSubstance:
		row = opts.controlledSubstanceLicense
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(len(table))))
	rows := make([]store.Record, 0, len(providerIDs)*maxRowsPerProvider)
	for _, providerID := range providerIDs {
		n := minRowsPerProvider + rng.IntN(maxRowsPerProvider-minRowsPerProvider+1)
		for range n {
			rows = append(rows, row(rng, providerID))
		}
	}
	return rows, nil
}

func pick(rng *rand.Rand, list []string) string {
	return list[rng.IntN(len(list))]
}

func digits(rng *rand.Rand, n int) string {
	var b strings.Builder
	for range n {
		b.WriteByte(byte('0' + rng.IntN(10)))
	}
	return b.String()
}

func letters(rng *rand.Rand, n int) string {
	var b strings.Builder
	for range n {
		b.WriteByte(byte('A' + rng.IntN(26)))
	}
	return b.String()
}

// dates returns an issue date in the window and an expiration two or three years later.
func dates(rng *rand.Rand) (string, string) {
	issued := issueWindowStart.AddDate(0, 0, rng.IntN(365*12))
	expires := issued.AddDate(2+rng.IntN(2), 0, 0)
	return issued.Format(time.DateOnly), expires.Format(time.DateOnly)
}

func (o Options) stateLicense(rng *rand.Rand, providerID string) store.Record {
	state := pick(rng, o.States)
	issued, expires := dates(rng)
	return store.Record{
		"provider_id":     providerID,
		"state":           state,
		"license_number":  state + "-" + digits(rng, 6),
		"license_type":    pick(rng, o.LicenseTypes),
		"status":          pick(rng, o.Statuses),
		"issue_date":      issued,
		"expiration_date": expires,
	}
}

func (o Options) deaLicense(rng *rand.Rand, providerID string) store.Record {
	issued, expires := dates(rng)
	// Every registration carries at least one schedule.
	schedules := make([]string, 0, len(o.Schedules))
	for _, s := range o.Schedules {
		if rng.IntN(2) == 0 {
			schedules = append(schedules, s)
		}
	}
	if len(schedules) == 0 {
		schedules = append(schedules, pick(rng, o.Schedules))
	}
	return store.Record{
		"provider_id":     providerID,
		"state":           pick(rng, o.States),
		"dea_number":      letters(rng, 2) + digits(rng, 7),
		"schedules":       schedules,
		"status":          pick(rng, o.Statuses),
		"issue_date":      issued,
		"expiration_date": expires,
	}
}

func (o Options) controlledSubstanceLicense(rng *rand.Rand, providerID string) store.Record {
	state := pick(rng, o.States)
	issued, expires := dates(rng)
	return store.Record{
		"provider_id":     providerID,
		"state":           state,
		"license_number":  "CS-" + state + digits(rng, 5),
		"status":          pick(rng, o.Statuses),
		"issue_date":      issued,
		"expiration_date": expires,
	}
}
