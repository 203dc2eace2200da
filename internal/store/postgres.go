package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"credentialing/api/internal/annotate"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id::text, display_name, email, password_hash, role, created_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, strings.TrimSpace(email)).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id::text, display_name, email, password_hash, role, created_at
		FROM users
		WHERE id::text = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}
	return user, nil
}

// UpsertUser creates or updates a user by email. Used to bootstrap accounts.
func (s *PostgresStore) UpsertUser(ctx context.Context, user User) (User, error) {
	role := user.Role
	if role == "" {
		role = "viewer"
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, display_name, password_hash, role)
		VALUES (LOWER($1), $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET display_name = EXCLUDED.display_name, password_hash = EXCLUDED.password_hash, role = EXCLUDED.role
		RETURNING id::text, created_at
	`, strings.TrimSpace(user.Email), user.DisplayName, user.PasswordHash, role).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	user.Role = role
	return user, nil
}

// ListProviderIDs returns every provider id in creation order.
func (s *PostgresStore) ListProviderIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id::text FROM providers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list provider ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan provider id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider ids: %w", err)
	}
	return ids, nil
}

const annotationColumns = `id::text, page_url, git_branch, selector, element_label, body, author,
	position_x, position_y, placement::text, resolved, created_at, updated_at`

func scanAnnotation(row interface{ Scan(...any) error }) (annotate.Annotation, error) {
	var (
		item      annotate.Annotation
		branch    sql.NullString
		placement string
	)
	err := row.Scan(
		&item.ID,
		&item.PageURL,
		&branch,
		&item.Selector,
		&item.ElementLabel,
		&item.Body,
		&item.Author,
		&item.PositionX,
		&item.PositionY,
		&placement,
		&item.Resolved,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return annotate.Annotation{}, err
	}
	if branch.Valid {
		item.GitBranch = &branch.String
	}
	item.Placement = annotate.Placement(placement)
	return item, nil
}

// ListAnnotations returns annotations for a page. A non-empty branch limits the result to
// that branch and branchless annotations.
func (s *PostgresStore) ListAnnotations(ctx context.Context, pageURL, branch string) ([]annotate.Annotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+annotationColumns+`
		FROM annotations
		WHERE page_url = $1
		  AND (git_branch IS NULL OR git_branch = '' OR git_branch = $2)
		ORDER BY created_at ASC
	`, pageURL, branch)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	items := make([]annotate.Annotation, 0)
	for rows.Next() {
		item, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetAnnotation(ctx context.Context, id string) (annotate.Annotation, error) {
	item, err := scanAnnotation(s.db.QueryRowContext(ctx, `SELECT `+annotationColumns+` FROM annotations WHERE id::text = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return annotate.Annotation{}, fmt.Errorf("annotation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return annotate.Annotation{}, fmt.Errorf("read annotation: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) InsertAnnotation(ctx context.Context, a annotate.Annotation) (annotate.Annotation, error) {
	item, err := scanAnnotation(s.db.QueryRowContext(ctx, `
		INSERT INTO annotations (page_url, git_branch, selector, element_label, body, author, position_x, position_y, placement)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9::annotation_placement)
		RETURNING `+annotationColumns,
		a.PageURL, deref(a.GitBranch), a.Selector, a.ElementLabel, a.Body, a.Author, a.PositionX, a.PositionY, string(a.Placement),
	))
	if err != nil {
		return annotate.Annotation{}, fmt.Errorf("insert annotation: %w", err)
	}
	return item, nil
}

// UpdateAnnotation edits the body and resolved flag.
func (s *PostgresStore) UpdateAnnotation(ctx context.Context, id, body string, resolved bool) (annotate.Annotation, error) {
	item, err := scanAnnotation(s.db.QueryRowContext(ctx, `
		UPDATE annotations
		SET body = $2, resolved = $3, updated_at = NOW()
		WHERE id::text = $1
		RETURNING `+annotationColumns,
		id, body, resolved,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return annotate.Annotation{}, fmt.Errorf("annotation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return annotate.Annotation{}, fmt.Errorf("update annotation: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteAnnotation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("annotation %s: %w", id, ErrNotFound)
	}
	return nil
}

const documentColumns = `id::text, record_type, record_id::text, name, storage_path, COALESCE(content_type, ''),
	size, COALESCE(uploaded_by, ''), created_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var item Document
	err := row.Scan(&item.ID, &item.RecordType, &item.RecordID, &item.Name, &item.StoragePath, &item.ContentType, &item.Size, &item.UploadedBy, &item.CreatedAt)
	return item, err
}

func (s *PostgresStore) ListDocuments(ctx context.Context, recordType, recordID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE record_type = $1 AND record_id::text = $2
		ORDER BY created_at DESC
	`, recordType, recordID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (Document, error) {
	item, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id::text = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	item, err := scanDocument(s.db.QueryRowContext(ctx, `
		INSERT INTO documents (record_type, record_id, name, storage_path, content_type, size, uploaded_by)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7)
		RETURNING `+documentColumns,
		doc.RecordType, doc.RecordID, doc.Name, doc.StoragePath, doc.ContentType, doc.Size, doc.UploadedBy,
	))
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

const noteColumns = `id::text, record_type, record_id::text, COALESCE(author, ''), body, created_at`

func scanNote(row interface{ Scan(...any) error }) (Note, error) {
	var item Note
	err := row.Scan(&item.ID, &item.RecordType, &item.RecordID, &item.Author, &item.Body, &item.CreatedAt)
	return item, err
}

func (s *PostgresStore) ListNotes(ctx context.Context, recordType, recordID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE record_type = $1 AND record_id::text = $2
		ORDER BY created_at DESC
	`, recordType, recordID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		item, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertNote(ctx context.Context, note Note) (Note, error) {
	item, err := scanNote(s.db.QueryRowContext(ctx, `
		INSERT INTO notes (record_type, record_id, author, body)
		VALUES ($1, $2::uuid, $3, $4)
		RETURNING `+noteColumns,
		note.RecordType, note.RecordID, note.Author, note.Body,
	))
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
