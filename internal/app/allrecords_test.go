package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing/api/internal/export"
	"credentialing/api/internal/store"
)

const reportProviderID = "7b0e1f58-4c1a-4d8e-9b7e-1a2b3c4d5e60"

func allRecordsStore() *fakeStore {
	return &fakeStore{
		fetchRecordFn: func(_ context.Context, table, id string) (store.Record, error) {
			if table != "providers" || id != reportProviderID {
				return nil, store.ErrNotFound
			}
			return store.Record{"id": reportProviderID, "first_name": "Jane", "last_name": "Doe"}, nil
		},
		fetchRecordsFn: func(_ context.Context, table string, filter store.Filter) ([]store.Record, error) {
			switch table {
			case "state_licenses":
				return []store.Record{{"id": "s1", "provider_id": filter.Eq["provider_id"], "state": "CA"}}, nil
			case "notes":
				return []store.Record{{"id": "n1", "record_type": filter.Eq["record_type"], "body": "Checked NPDB"}}, nil
			}
			return nil, nil
		},
	}
}

func TestAllRecordsGathersEveryTable(t *testing.T) {
	svc := newTestService(t, allRecordsStore())

	records, err := svc.AllRecords(context.Background(), reportProviderID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", records.Provider["first_name"])
	assert.Len(t, records.Tables, len(providerTables)+len(attachedTables))
	require.Len(t, records.Tables["state_licenses"], 1)
	assert.Equal(t, reportProviderID, records.Tables["state_licenses"][0]["provider_id"])
	assert.Equal(t, "providers", records.Tables["notes"][0]["record_type"])
	assert.NotNil(t, records.Tables["dea_licenses"], "empty tables encode as []")

	raw, err := json.Marshal(records)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "provider")
	assert.JSONEq(t, "[]", string(decoded["birth_info"]))
}

func TestAllRecordsErrors(t *testing.T) {
	svc := newTestService(t, allRecordsStore())

	_, err := svc.AllRecords(context.Background(), " ")
	requireDomainCode(t, err, http.StatusBadRequest, "VALIDATION_ERROR")

	_, err = svc.AllRecords(context.Background(), "p1")
	requireDomainCode(t, err, http.StatusBadRequest, "VALIDATION_ERROR")

	_, err = svc.AllRecords(context.Background(), "7b0e1f58-4c1a-4d8e-9b7e-1a2b3c4d5eff")
	assert.ErrorIs(t, err, store.ErrNotFound)

	slow := allRecordsStore()
	slow.fetchRecordsFn = func(ctx context.Context, _ string, _ store.Filter) ([]store.Record, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	svc = newTestService(t, slow)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.AllRecords(ctx, reportProviderID)
	requireDomainCode(t, err, http.StatusGatewayTimeout, "TIMEOUT")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProviderReport(t *testing.T) {
	var rendered export.Report
	var format export.Format
	svc := newTestService(t, allRecordsStore())
	svc.reports = &fakeReports{exportFn: func(_ context.Context, report export.Report, f export.Format) (*export.Result, error) {
		rendered, format = report, f
		return &export.Result{Data: []byte("<html>"), Filename: "jane-doe.html", MimeType: "text/html"}, nil
	}}

	result, err := svc.ProviderReport(context.Background(), reportProviderID, export.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "jane-doe.html", result.Filename)
	assert.Equal(t, export.FormatHTML, format)
	assert.Equal(t, "Jane Doe Credentialing Report", rendered.Title)

	svc.reports = &fakeReports{exportFn: func(context.Context, export.Report, export.Format) (*export.Result, error) {
		return nil, export.ErrPDFDependencyMissing
	}}
	_, err = svc.ProviderReport(context.Background(), reportProviderID, export.FormatPDF)
	requireDomainCode(t, err, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE")
	assert.ErrorIs(t, err, export.ErrPDFDependencyMissing)
}
