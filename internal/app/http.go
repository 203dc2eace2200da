package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"credentialing/api/internal/annotate"
	"credentialing/api/internal/auth"
	"credentialing/api/internal/blob"
	"credentialing/api/internal/export"
	"credentialing/api/internal/fields"
	"credentialing/api/internal/form"
	"credentialing/api/internal/rbac"
	"credentialing/api/internal/search"
	"credentialing/api/internal/store"
)

const maxUploadMemory = 32 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: service.logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, session Session, action rbac.Action) {
	s.logger.Info("permission denied",
		zap.String("request_id", requestID(r.Context())),
		zap.String("user_id", session.UserID),
		zap.String("role", session.Role),
		zap.String("action", string(action)),
	)
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

// allow writes a 403 and returns false when the session's role may not perform action.
func (s *HTTPServer) allow(w http.ResponseWriter, r *http.Request, session Session, action rbac.Action) bool {
	if s.service.Can(session.Role, action) {
		return true
	}
	s.forbid(w, r, session, action)
	return false
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		payload := map[string]any{"ok": true}
		if head, ok := s.service.Revision(); ok {
			payload["branch"] = head.Branch
			payload["commit"] = head.ShortCommit()
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		if s.service.metrics == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		s.service.metrics.Handler().ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userName":      session.UserName,
			"userId":        session.UserID,
			"email":         session.Email,
			"role":          session.Role,
		})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		if err := s.service.Logout(r.Context(), session); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "fields":
		if r.Method == http.MethodGet && len(parts) == 3 {
			view, err := s.service.Fields(parts[2])
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, view)
			return
		}
	case "panels":
		if r.Method == http.MethodGet && len(parts) == 4 {
			view, err := s.service.Panel(r.Context(), parts[2], parts[3])
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, view)
			return
		}
	case "preferences":
		if len(parts) == 3 && parts[2] == "panel-width" {
			s.handlePanelWidth(w, r, session)
			return
		}
	case "records":
		if len(parts) >= 3 {
			s.handleRecords(w, r, session, parts[2], parts[3:])
			return
		}
	case "documents":
		if len(parts) >= 3 {
			s.handleDocument(w, r, session, parts[2], parts[3:])
			return
		}
	case "notes":
		if r.Method == http.MethodDelete && len(parts) == 3 {
			if !s.allow(w, r, session, rbac.ActionDelete) {
				return
			}
			if err := s.service.DeleteNote(r.Context(), parts[2]); err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	case "annotations":
		s.handleAnnotations(w, r, session, parts[2:])
		return
	case "functions":
		if r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "all-records" {
			records, err := s.service.AllRecords(r.Context(), r.URL.Query().Get("provider_id"))
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, records)
			return
		}
	case "providers":
		if r.Method == http.MethodGet && len(parts) == 4 {
			format, ok := reportFormat(parts[3])
			if ok {
				s.handleReport(w, r, parts[2], format)
				return
			}
		}
	case "search":
		if r.Method == http.MethodGet && len(parts) == 2 {
			s.handleSearch(w, r)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "email and password are required", nil)
		return
	}

	session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     session.Token,
		"userName":  session.UserName,
		"userId":    session.UserID,
		"email":     session.Email,
		"role":      session.Role,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handlePanelWidth(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		viewport, err := strconv.Atoi(r.URL.Query().Get("viewport"))
		if err != nil || viewport <= 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "viewport must be a positive integer", nil)
			return
		}
		width, err := s.service.PanelWidth(r.Context(), session.UserID, viewport)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"width": width, "min": form.MinPanelWidth, "max": viewport / 2})
	case http.MethodPut:
		var body struct {
			Width    int `json:"width"`
			Viewport int `json:"viewport"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.Viewport <= 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "viewport must be a positive integer", nil)
			return
		}
		width, err := s.service.SetPanelWidth(r.Context(), session.UserID, body.Width, body.Viewport)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"width": width})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleRecords(w http.ResponseWriter, r *http.Request, session Session, entity string, rest []string) {
	ctx := r.Context()

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			rows, err := s.service.ListRecords(ctx, entity, r.URL.Query().Get("provider_id"))
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": rows})
		case http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionWrite) {
				return
			}
			var body store.Record
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			row, err := s.service.CreateRecord(ctx, entity, body)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, row)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(rest) == 1 && rest[0] == "bulk-delete" && r.Method == http.MethodPost {
		if !s.allow(w, r, session, rbac.ActionAdmin) {
			return
		}
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		deleted, err := s.service.BulkDelete(ctx, entity, body.IDs)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
		return
	}

	id := rest[0]
	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			row, err := s.service.GetRecord(ctx, entity, id)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, row)
		case http.MethodPut:
			if !s.allow(w, r, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				Values map[string]any `json:"values"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			result, err := s.service.SaveRecord(ctx, entity, id, body.Values)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		case http.MethodDelete:
			if !s.allow(w, r, session, rbac.ActionDelete) {
				return
			}
			if err := s.service.DeleteRecord(ctx, entity, id); err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(rest) == 2 {
		switch {
		case rest[1] == "documents" && r.Method == http.MethodGet:
			docs, err := s.service.ListDocuments(ctx, entity, id)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": docs})
			return
		case rest[1] == "documents" && r.Method == http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionUpload) {
				return
			}
			s.handleUpload(w, r, session, entity, id)
			return
		case rest[1] == "notes" && r.Method == http.MethodGet:
			notes, err := s.service.ListNotes(ctx, entity, id)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": notes})
			return
		case rest[1] == "notes" && r.Method == http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				Body string `json:"body"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			note, err := s.service.CreateNote(ctx, session, entity, id, body.Body)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, note)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, session Session, entity, id string) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form data", nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var files []Upload
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			files = append(files, uploadFromHeader(header))
		}
	}

	summary, err := s.service.UploadDocuments(r.Context(), session, entity, id, files)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	status := http.StatusCreated
	if summary.Uploaded == 0 {
		status = http.StatusUnprocessableEntity
	} else if summary.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, summary)
}

func uploadFromHeader(header *multipart.FileHeader) Upload {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Upload{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodDelete:
		if !s.allow(w, r, session, rbac.ActionDelete) {
			return
		}
		if err := s.service.DeleteDocument(r.Context(), id); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case len(rest) == 1 && rest[0] == "url" && r.Method == http.MethodGet:
		url, err := s.service.DocumentURL(r.Context(), id)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url, "expiresIn": int(presignExpiry.Seconds())})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAnnotations(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	ctx := r.Context()

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			q, err := annotationQuery(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			items, err := s.service.ListAnnotations(ctx, q)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items, "branch": s.service.CurrentBranch()})
		case http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionAnnotate) {
				return
			}
			var body CreateAnnotationInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			created, err := s.service.CreateAnnotation(ctx, session, body)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(rest) == 1 && rest[0] == "overlay" {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, s.service.OverlayState(session.UserID))
		case http.MethodPost:
			if !s.allow(w, r, session, rbac.ActionAnnotate) {
				return
			}
			var body annotate.Input
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			state, err := s.service.Overlay(session.UserID, body)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, state)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(rest) == 1 {
		id := rest[0]
		switch r.Method {
		case http.MethodPut:
			if !s.allow(w, r, session, rbac.ActionAnnotate) {
				return
			}
			var body UpdateAnnotationInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			updated, err := s.service.UpdateAnnotation(ctx, id, body)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if !s.allow(w, r, session, rbac.ActionAnnotate) {
				return
			}
			if err := s.service.DeleteAnnotation(ctx, id); err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// annotationQuery reads page and branch plus the optional vw/vh viewport and bw/bh card size.
func annotationQuery(r *http.Request) (AnnotationQuery, error) {
	values := r.URL.Query()
	q := AnnotationQuery{Page: values.Get("page"), Branch: values.Get("branch")}

	number := func(key string) (float64, bool, error) {
		raw := values.Get(key)
		if raw == "" {
			return 0, false, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return 0, false, fmt.Errorf("%s must be a positive number", key)
		}
		return v, true, nil
	}

	vw, hasVW, err := number("vw")
	if err != nil {
		return q, err
	}
	vh, hasVH, err := number("vh")
	if err != nil {
		return q, err
	}
	if hasVW && hasVH {
		q.Viewport = &annotate.Viewport{Width: vw, Height: vh}
	}
	bw, _, err := number("bw")
	if err != nil {
		return q, err
	}
	bh, _, err := number("bh")
	if err != nil {
		return q, err
	}
	q.Box = annotate.Size{Width: bw, Height: bh}
	return q, nil
}

func reportFormat(segment string) (export.Format, bool) {
	switch segment {
	case "report.pdf":
		return export.FormatPDF, true
	case "report.html":
		return export.FormatHTML, true
	default:
		return "", false
	}
}

func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request, providerID string, format export.Format) {
	result, err := s.service.ProviderReport(r.Context(), providerID, format)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	text := strings.TrimSpace(values.Get("q"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	filterType, err := search.ParseType(values.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	limit, _ := strconv.Atoi(values.Get("limit"))
	offset, _ := strconv.Atoi(values.Get("offset"))
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), search.Query{
		Text:       text,
		FilterType: filterType,
		Limit:      limit,
		Offset:     offset,
	}))
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		if s.service.metrics != nil {
			s.service.metrics.Requests.WithLabelValues(r.Method, strconv.Itoa(writer.status)).Inc()
		}
		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrUnknownTable):
		return http.StatusNotFound, "UNKNOWN_ENTITY", err.Error(), nil
	case errors.Is(err, store.ErrUnknownColumn), errors.Is(err, fields.ErrNoOptions):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, form.ErrSaveInFlight):
		return http.StatusConflict, "SAVE_IN_FLIGHT", err.Error(), nil
	case errors.Is(err, annotate.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", "Request timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
