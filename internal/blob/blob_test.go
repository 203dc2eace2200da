package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"license.pdf":             "license.pdf",
		"DEA cert (2024).pdf":     "DEA_cert__2024_.pdf",
		"../../etc/passwd":        "passwd",
		`C:\scans\board cert.png`: "board_cert.png",
		"résumé.docx":             "r_sum_.docx",
		"...":                     "file",
		"":                        "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
	long := SanitizeFilename(strings.Repeat("a", 200) + ".pdf")
	assert.Len(t, long, maxNameLength)
	assert.True(t, strings.HasSuffix(long, ".pdf"))
}

func TestDocumentKey(t *testing.T) {
	at := time.UnixMilli(1714557600123)
	assert.Equal(t, "user-1/1714557600123-npi_letter.pdf", DocumentKey("user-1", at, "npi letter.pdf"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	assert.Equal(t, DriverMemory, s.Driver())

	info, err := s.Put(ctx, "u1/1-a.pdf", bytes.NewBufferString("payload"), 7, PutOptions{ContentType: "application/pdf"})
	require.NoError(t, err)
	assert.EqualValues(t, 7, info.Size)

	_, err = s.Put(ctx, "u1/1-a.pdf", bytes.NewBufferString("again"), 5, PutOptions{})
	assert.ErrorIs(t, err, ErrExists)

	got, r, err := s.Get(ctx, "u1/1-a.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(r)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, "application/pdf", got.ContentType)

	_, err = s.Head(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _ = s.Put(ctx, "u2/2-b.pdf", bytes.NewBufferString("x"), 1, PutOptions{})
	list, err := s.List(ctx, "u1/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u1/1-a.pdf", list[0].Key)

	existed, err := s.Delete(ctx, "u1/1-a.pdf")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, _ = s.Delete(ctx, "u1/1-a.pdf")
	assert.False(t, existed)

	_, err = s.PresignURL(ctx, "u2/2-b.pdf", time.Minute)
	assert.ErrorIs(t, err, ErrUnsupported)
}
