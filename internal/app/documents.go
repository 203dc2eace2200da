package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"credentialing/api/internal/blob"
	"credentialing/api/internal/querycache"
	"credentialing/api/internal/search"
	"credentialing/api/internal/store"
	"credentialing/api/internal/util"
)

const (
	presignExpiry     = 15 * time.Minute
	maxParallelUpload = 4
)

func documentsKey(recordType, recordID string) querycache.Key {
	return querycache.Key{"documents", recordType, recordID}
}

func notesKey(recordType, recordID string) querycache.Key {
	return querycache.Key{"notes", recordType, recordID}
}

func (s *Service) recordRef(recordType, recordID string) (string, error) {
	e, err := s.entity(recordType)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(recordID) == "" {
		return "", invalid("record id is required", nil)
	}
	return e.table, nil
}

// ListDocuments returns a record's documents, including uploads still in flight.
func (s *Service) ListDocuments(ctx context.Context, recordType, recordID string) ([]store.Document, error) {
	table, err := s.recordRef(recordType, recordID)
	if err != nil {
		return nil, err
	}
	docs := []store.Document{}
	err = s.cache.Fetch(ctx, documentsKey(table, recordID), &docs, func(ctx context.Context) (any, error) {
		return s.store.ListDocuments(ctx, table, recordID)
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Upload is one file of a multipart upload.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type UploadError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type UploadSummary struct {
	Uploaded  int              `json:"uploaded"`
	Failed    int              `json:"failed"`
	Documents []store.Document `json:"documents"`
	Errors    []UploadError    `json:"errors"`
}

// UploadDocuments stores every file independently. Each gets a temporary entry in the cached
// document list while it uploads, swapped for the persisted row on success and removed on
// failure. One file failing never affects the others.
func (s *Service) UploadDocuments(ctx context.Context, session Session, recordType, recordID string, files []Upload) (UploadSummary, error) {
	table, err := s.recordRef(recordType, recordID)
	if err != nil {
		return UploadSummary{}, err
	}
	if len(files) == 0 {
		return UploadSummary{}, invalid("no files uploaded", nil)
	}
	// The list must be cached before temp entries are added, or the first read after the
	// upload would only see them.
	if _, err := s.ListDocuments(ctx, table, recordID); err != nil {
		return UploadSummary{}, err
	}

	summary := UploadSummary{Documents: []store.Document{}, Errors: []UploadError{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUpload)
	for _, file := range files {
		g.Go(func() error {
			doc, err := s.uploadOne(gctx, session, table, recordID, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, UploadError{File: file.Name, Error: err.Error()})
				s.metrics.Uploads.WithLabelValues("error").Inc()
				return nil
			}
			summary.Uploaded++
			summary.Documents = append(summary.Documents, doc)
			s.metrics.Uploads.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()
	return summary, nil
}

func (s *Service) uploadOne(ctx context.Context, session Session, table, recordID string, file Upload) (store.Document, error) {
	key := documentsKey(table, recordID)
	tempID := util.TempID()
	s.mutateDocuments(ctx, key, func(docs []store.Document) []store.Document {
		return append(docs, store.Document{
			ID:          tempID,
			RecordType:  table,
			RecordID:    recordID,
			Name:        file.Name,
			ContentType: file.ContentType,
			Size:        file.Size,
			UploadedBy:  session.UserName,
			CreatedAt:   s.now(),
			Pending:     true,
		})
	})

	doc, err := s.storeUpload(ctx, session, table, recordID, file)
	if err != nil {
		s.mutateDocuments(ctx, key, func(docs []store.Document) []store.Document {
			return withoutDocument(docs, tempID)
		})
		s.logger.Warn("document upload failed",
			zap.String("record_type", table),
			zap.String("record_id", recordID),
			zap.String("file", file.Name),
			zap.Error(err),
		)
		return store.Document{}, err
	}

	s.mutateDocuments(ctx, key, func(docs []store.Document) []store.Document {
		for i := range docs {
			if docs[i].ID == tempID {
				docs[i] = doc
				return docs
			}
		}
		return append(docs, doc)
	})
	return doc, nil
}

func (s *Service) storeUpload(ctx context.Context, session Session, table, recordID string, file Upload) (store.Document, error) {
	reader, err := file.Open()
	if err != nil {
		return store.Document{}, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer reader.Close()

	objectKey := blob.DocumentKey(session.UserID, s.now(), file.Name)
	info, err := s.blobs.Put(ctx, objectKey, reader, file.Size, blob.PutOptions{
		ContentType: file.ContentType,
		Metadata:    map[string]string{"record-type": table, "record-id": recordID},
	})
	if err != nil {
		return store.Document{}, fmt.Errorf("upload %s: %w", file.Name, err)
	}

	size := file.Size
	if info.Size > 0 {
		size = info.Size
	}
	doc, err := s.store.InsertDocument(ctx, store.Document{
		RecordType:  table,
		RecordID:    recordID,
		Name:        file.Name,
		StoragePath: objectKey,
		ContentType: file.ContentType,
		Size:        size,
		UploadedBy:  session.UserName,
	})
	if err != nil {
		if _, delErr := s.blobs.Delete(ctx, objectKey); delErr != nil {
			s.logger.Warn("orphaned document object", zap.String("key", objectKey), zap.Error(delErr))
		}
		return store.Document{}, fmt.Errorf("save %s: %w", file.Name, err)
	}
	return doc, nil
}

// mutateDocuments edits a cached document list. Lists that are not cached are left for the
// next read to load.
func (s *Service) mutateDocuments(ctx context.Context, key querycache.Key, fn func([]store.Document) []store.Document) {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	err := querycache.Mutate(ctx, s.cache, key, func(docs []store.Document, present bool) ([]store.Document, bool) {
		if !present {
			return nil, false
		}
		return fn(docs), true
	})
	if err != nil {
		s.logger.Warn("document cache update failed", zap.String("key", key.String()), zap.Error(err))
	}
}

func withoutDocument(docs []store.Document, id string) []store.Document {
	out := docs[:0]
	for _, doc := range docs {
		if doc.ID != id {
			out = append(out, doc)
		}
	}
	return out
}

// DeleteDocument removes the stored object and its metadata row.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if util.IsTempID(id) {
		return domainError(http.StatusConflict, "UPLOAD_PENDING", "Document is still uploading", nil)
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.blobs.Delete(ctx, doc.StoragePath); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("delete object: %w", err)
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.mutateDocuments(ctx, documentsKey(doc.RecordType, doc.RecordID), func(docs []store.Document) []store.Document {
		return withoutDocument(docs, id)
	})
	return nil
}

// DocumentURL returns a short-lived download link for a stored document.
func (s *Service) DocumentURL(ctx context.Context, id string) (string, error) {
	if util.IsTempID(id) {
		return "", domainError(http.StatusConflict, "UPLOAD_PENDING", "Document is still uploading", nil)
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.PresignURL(ctx, doc.StoragePath, presignExpiry)
	if err != nil {
		if errors.Is(err, blob.ErrUnsupported) {
			return "", domainError(http.StatusNotImplemented, "UNSUPPORTED", "Download links need object storage", nil)
		}
		return "", err
	}
	return url, nil
}

func (s *Service) ListNotes(ctx context.Context, recordType, recordID string) ([]store.Note, error) {
	table, err := s.recordRef(recordType, recordID)
	if err != nil {
		return nil, err
	}
	notes := []store.Note{}
	err = s.cache.Fetch(ctx, notesKey(table, recordID), &notes, func(ctx context.Context) (any, error) {
		return s.store.ListNotes(ctx, table, recordID)
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *Service) CreateNote(ctx context.Context, session Session, recordType, recordID, body string) (store.Note, error) {
	table, err := s.recordRef(recordType, recordID)
	if err != nil {
		return store.Note{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return store.Note{}, invalid("note body is required", nil)
	}
	note, err := s.store.InsertNote(ctx, store.Note{
		RecordType: table,
		RecordID:   recordID,
		Author:     session.UserName,
		Body:       body,
	})
	if err != nil {
		return store.Note{}, err
	}
	s.forget(ctx, notesKey(table, recordID))
	s.search.IndexNote(search.NoteRecord{
		ID:         note.ID,
		Body:       note.Body,
		Author:     note.Author,
		RecordType: note.RecordType,
		RecordID:   note.RecordID,
	})
	return note, nil
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, querycache.Key{"notes"})
	s.search.Remove(search.ResultNote, id)
	return nil
}
