package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing/api/internal/store"
)

func textUpload(name, body string) Upload {
	return Upload{
		Name:        name,
		ContentType: "text/plain",
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

// docTable is an in-memory documents table for the fake store.
type docTable struct {
	mu   sync.Mutex
	docs map[string]store.Document
}

func (d *docTable) wire(fs *fakeStore) {
	d.docs = map[string]store.Document{}
	fs.insertDocumentFn = func(_ context.Context, doc store.Document) (store.Document, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if strings.HasPrefix(doc.Name, "reject") {
			return store.Document{}, errors.New("row rejected")
		}
		doc.ID = "doc-" + doc.Name
		d.docs[doc.ID] = doc
		return doc, nil
	}
	fs.getDocumentFn = func(_ context.Context, id string) (store.Document, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		doc, ok := d.docs[id]
		if !ok {
			return store.Document{}, store.ErrNotFound
		}
		return doc, nil
	}
	fs.deleteDocumentFn = func(_ context.Context, id string) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.docs, id)
		return nil
	}
}

func TestUploadDocumentsIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	var table docTable
	table.wire(fs)
	svc := newTestService(t, fs)
	session := Session{UserID: "user-1", UserName: "Avery"}

	broken := textUpload("broken.txt", "")
	broken.Open = func() (io.ReadCloser, error) { return nil, errors.New("disk error") }

	summary, err := svc.UploadDocuments(ctx, session, "providers", "p1", []Upload{
		textUpload("license.pdf", "license"),
		broken,
		textUpload("reject-me.txt", "nope"),
		textUpload("cv.txt", "resume"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Uploaded)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Errors, 2)

	docs, err := svc.ListDocuments(ctx, "providers", "p1")
	require.NoError(t, err)
	names := []string{}
	for _, doc := range docs {
		assert.False(t, doc.Pending, "no temporary entry survives the upload")
		names = append(names, doc.Name)
	}
	assert.ElementsMatch(t, []string{"license.pdf", "cv.txt"}, names)

	objects, err := svc.blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, objects, 2, "a rejected row does not leave its object behind")
}

func TestDeleteDocumentRemovesObjectAndCacheEntry(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	var table docTable
	table.wire(fs)
	svc := newTestService(t, fs)

	_, err := svc.UploadDocuments(ctx, Session{UserID: "user-1"}, "providers", "p1", []Upload{textUpload("npdb.pdf", "report")})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDocument(ctx, "doc-npdb.pdf"))

	docs, err := svc.ListDocuments(ctx, "providers", "p1")
	require.NoError(t, err)
	assert.Empty(t, docs)
	objects, err := svc.blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestPendingDocumentCannotBeDeleted(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	err := svc.DeleteDocument(context.Background(), "temp-123")
	requireDomainCode(t, err, http.StatusConflict, "UPLOAD_PENDING")
}

func TestDocumentURLNeedsObjectStorage(t *testing.T) {
	fs := &fakeStore{
		getDocumentFn: func(context.Context, string) (store.Document, error) {
			return store.Document{ID: "doc-1", StoragePath: "documents/a.pdf"}, nil
		},
	}
	svc := newTestService(t, fs)

	_, err := svc.DocumentURL(context.Background(), "doc-1")
	requireDomainCode(t, err, http.StatusNotImplemented, "UNSUPPORTED")
}

func TestCreateNoteRefreshesList(t *testing.T) {
	ctx := context.Background()
	var stored []store.Note
	fs := &fakeStore{
		listNotesFn: func(context.Context, string, string) ([]store.Note, error) {
			return stored, nil
		},
		insertNoteFn: func(_ context.Context, note store.Note) (store.Note, error) {
			note.ID = "note-1"
			stored = append(stored, note)
			return note, nil
		},
	}
	svc := newTestService(t, fs)

	notes, err := svc.ListNotes(ctx, "providers", "p1")
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = svc.CreateNote(ctx, Session{UserName: "Avery"}, "providers", "p1", "   ")
	requireDomainCode(t, err, http.StatusBadRequest, "VALIDATION_ERROR")

	note, err := svc.CreateNote(ctx, Session{UserName: "Avery"}, "providers", "p1", "  Called the board  ")
	require.NoError(t, err)
	assert.Equal(t, "Called the board", note.Body)
	assert.Equal(t, "Avery", note.Author)

	notes, err = svc.ListNotes(ctx, "providers", "p1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "note-1", notes[0].ID)
}
