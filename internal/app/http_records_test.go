package app

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"credentialing/api/internal/store"
)

func sessionToken(t *testing.T, svc *Service, role string) string {
	t.Helper()
	session, err := svc.issueSession(userFixture(t, role))
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

func recordsStore(t *testing.T, role string) *fakeStore {
	fs := storeWithUser(t, role)
	fs.fetchRecordsFn = func(context.Context, string, store.Filter) ([]store.Record, error) {
		return []store.Record{providerRow()}, nil
	}
	fs.fetchRecordFn = func(context.Context, string, string) (store.Record, error) {
		return providerRow(), nil
	}
	return fs
}

func TestViewerCannotWrite(t *testing.T) {
	svc := newTestService(t, recordsStore(t, "viewer"))
	server := NewHTTPServer(svc, "*")
	token := sessionToken(t, svc, "viewer")

	rr := doRequest(t, server, http.MethodGet, "/api/records/providers", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected viewer read to succeed, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodPut, "/api/records/providers/p1", token, map[string]any{
		"values": map[string]any{"npi": "2222222222"},
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodPost, "/api/annotations", token, map[string]any{"page_url": "/providers", "body": "x"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for annotation, got %d", rr.Code)
	}
}

func TestBulkDeleteIsAdminOnly(t *testing.T) {
	svc := newTestService(t, recordsStore(t, "editor"))
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodPost, "/api/records/providers/bulk-delete", sessionToken(t, svc, "editor"), map[string]any{
		"ids": []string{"p1", "p2"},
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected editor bulk delete to be forbidden, got %d", rr.Code)
	}

	admin := newTestService(t, recordsStore(t, "admin"))
	server = NewHTTPServer(admin, "*")
	rr = doRequest(t, server, http.MethodPost, "/api/records/providers/bulk-delete", sessionToken(t, admin, "admin"), map[string]any{
		"ids": []string{"p1", "p2"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if deleted := decodePayload(t, rr)["deleted"]; deleted != float64(2) {
		t.Fatalf("expected deleted=2, got %v", deleted)
	}
}

func TestEditorSavesRecord(t *testing.T) {
	fs := recordsStore(t, "editor")
	fs.updateRecordFn = func(_ context.Context, _ string, _ string, changes store.Record) (store.Record, error) {
		return merge(providerRow(), changes), nil
	}
	svc := newTestService(t, fs)
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodPut, "/api/records/providers/p1", sessionToken(t, svc, "editor"), map[string]any{
		"values": map[string]any{"npi": "2222222222"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodePayload(t, rr)
	if payload["changed"] != true {
		t.Fatalf("expected changed=true, got %v", payload)
	}
	record, _ := payload["record"].(map[string]any)
	if record["npi"] != "2222222222" {
		t.Fatalf("expected saved npi, got %v", record["npi"])
	}
}

func TestUnknownEntityReturnsNotFound(t *testing.T) {
	svc := newTestService(t, recordsStore(t, "editor"))
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/records/spaceships", sessionToken(t, svc, "editor"), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if code := decodePayload(t, rr)["code"]; code != "UNKNOWN_ENTITY" {
		t.Fatalf("expected UNKNOWN_ENTITY, got %v", code)
	}
}

func TestFieldsAndPanelEndpoints(t *testing.T) {
	svc := newTestService(t, recordsStore(t, "viewer"))
	server := NewHTTPServer(svc, "*")
	token := sessionToken(t, svc, "viewer")

	rr := doRequest(t, server, http.MethodGet, "/api/fields/providers", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if table := decodePayload(t, rr)["table"]; table != "providers" {
		t.Fatalf("expected table providers, got %v", table)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/panels/providers/p1", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	tabs, _ := decodePayload(t, rr)["tabs"].([]any)
	if len(tabs) != 4 || tabs[0] != "Details" {
		t.Fatalf("expected four panel tabs, got %v", tabs)
	}
}

func TestPanelWidthEndpoints(t *testing.T) {
	svc := newTestService(t, recordsStore(t, "viewer"))
	server := NewHTTPServer(svc, "*")
	token := sessionToken(t, svc, "viewer")

	rr := doRequest(t, server, http.MethodPut, "/api/preferences/panel-width", token, map[string]int{"width": 5000, "viewport": 1400})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if width := decodePayload(t, rr)["width"]; width != float64(700) {
		t.Fatalf("expected width 700, got %v", width)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/preferences/panel-width?viewport=1400", token, nil)
	if width := decodePayload(t, rr)["width"]; width != float64(700) {
		t.Fatalf("expected stored width 700, got %v", width)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/preferences/panel-width", token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without viewport, got %d", rr.Code)
	}
}

func TestUploadEndpointReportsPartialFailure(t *testing.T) {
	fs := storeWithUser(t, "editor")
	var table docTable
	table.wire(fs)
	svc := newTestService(t, fs)
	server := NewHTTPServer(svc, "*")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, name := range []string{"license.pdf", "reject.pdf"} {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write([]byte("content of " + name))
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/records/providers/p1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, svc, "editor"))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusMultiStatus {
		t.Fatalf("expected status 207, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodePayload(t, rr)
	if payload["uploaded"] != float64(1) || payload["failed"] != float64(1) {
		t.Fatalf("expected one success and one failure, got %v", payload)
	}
}

func TestSearchEndpoint(t *testing.T) {
	svc := newTestService(t, recordsStore(t, "viewer"))
	server := NewHTTPServer(svc, "*")
	token := sessionToken(t, svc, "viewer")

	rr := doRequest(t, server, http.MethodGet, "/api/search?q=jane&type=provider&limit=5", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	queries := svc.search.(*fakeSearch).queries
	if len(queries) != 1 || queries[0].Text != "jane" || queries[0].Limit != 5 {
		t.Fatalf("unexpected search query %+v", queries)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/search?q=jane&type=planet", token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown type, got %d", rr.Code)
	}
}

func TestReportEndpointStreamsFile(t *testing.T) {
	svc := newTestService(t, allRecordsStore())
	svc.store.(*fakeStore).getUserByIDFn = storeWithUser(t, "viewer").getUserByIDFn
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/providers/"+reportProviderID+"/report.pdf", sessionToken(t, svc, "viewer"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="report.pdf"` {
		t.Fatalf("unexpected disposition %q", cd)
	}
}
