package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"credentialing/api/internal/annotate"
	"credentialing/api/internal/auth"
	"credentialing/api/internal/authpw"
	"credentialing/api/internal/blob"
	"credentialing/api/internal/config"
	"credentialing/api/internal/export"
	"credentialing/api/internal/fields"
	"credentialing/api/internal/form"
	"credentialing/api/internal/gitrepo"
	"credentialing/api/internal/metrics"
	"credentialing/api/internal/querycache"
	"credentialing/api/internal/rbac"
	"credentialing/api/internal/search"
	"credentialing/api/internal/store"
	"credentialing/api/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Email     string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	UpsertUser(context.Context, store.User) (store.User, error)

	FetchRecords(context.Context, string, store.Filter) ([]store.Record, error)
	FetchRecord(context.Context, string, string) (store.Record, error)
	InsertRecord(context.Context, string, store.Record) (store.Record, error)
	UpdateRecord(context.Context, string, string, store.Record) (store.Record, error)
	DeleteRecord(context.Context, string, string) error
	BulkDelete(context.Context, string, []string) (int64, error)

	ListDocuments(context.Context, string, string) ([]store.Document, error)
	GetDocument(context.Context, string) (store.Document, error)
	InsertDocument(context.Context, store.Document) (store.Document, error)
	DeleteDocument(context.Context, string) error
	ListNotes(context.Context, string, string) ([]store.Note, error)
	InsertNote(context.Context, store.Note) (store.Note, error)
	DeleteNote(context.Context, string) error

	ListAnnotations(context.Context, string, string) ([]annotate.Annotation, error)
	GetAnnotation(context.Context, string) (annotate.Annotation, error)
	InsertAnnotation(context.Context, annotate.Annotation) (annotate.Annotation, error)
	UpdateAnnotation(context.Context, string, string, bool) (annotate.Annotation, error)
	DeleteAnnotation(context.Context, string) error

	Ping(ctx context.Context) error
}

// TokenStore holds revoked access tokens and per-user UI preferences.
type TokenStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	SetPreference(ctx context.Context, userID, key, value string) error
	GetPreference(ctx context.Context, userID, key string) (string, bool, error)
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexRow(table string, row map[string]any)
	IndexNote(n search.NoteRecord)
	Remove(t search.ResultType, id string)
	RemoveRow(table, id string)
}

type branchSource interface {
	Branch() string
}

// headSource is implemented by branch sources that can also name the checked-out commit.
type headSource interface {
	Head() (gitrepo.Head, error)
}

type reportRenderer interface {
	Export(ctx context.Context, report export.Report, format export.Format) (*export.Result, error)
}

// Deps are the collaborators main wires into the service.
type Deps struct {
	Store   *store.PostgresStore
	Cache   *querycache.Cache
	Blobs   blob.Store
	Tokens  TokenStore
	Search  *search.Service
	Fields  *fields.Registry
	Branch  branchSource
	Reports *export.Service
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	cache     *querycache.Cache
	blobs     blob.Store
	tokens    TokenStore
	search    searchService
	fields    *fields.Registry
	git       branchSource
	reports   reportRenderer
	passwords *authpw.Service
	overlay   *annotate.Sessions
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	// saving holds the row keys with a save outstanding.
	saving sync.Map
	// docMu serializes read-modify-write of cached document lists.
	docMu sync.Mutex
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		cache:     deps.Cache,
		blobs:     deps.Blobs,
		tokens:    deps.Tokens,
		search:    deps.Search,
		fields:    deps.Fields,
		git:       deps.Branch,
		reports:   deps.Reports,
		passwords: authpw.NewService(deps.Store),
		overlay:   annotate.NewSessions(),
		metrics:   deps.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Revision reports the checkout the server runs from, when it is a git repository.
func (s *Service) Revision() (gitrepo.Head, bool) {
	src, ok := s.git.(headSource)
	if !ok {
		return gitrepo.Head{}, false
	}
	head, err := src.Head()
	if err != nil {
		return gitrepo.Head{}, false
	}
	return head, true
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// SignIn checks the password and issues an access token.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), nil)
		}
		return Session{}, err
	}
	return s.issueSession(user)
}

func (s *Service) issueSession(user store.User) (Session, error) {
	expiresAt := s.now().Add(s.cfg.AccessTTL)
	jti := util.NewID()
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      string(rbac.Normalize(user.Role)),
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken validates a bearer token. The role comes from the user row so role changes
// apply without waiting for the token to expire.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	session := Session{
		Token:    token,
		UserID:   user.ID,
		UserName: user.DisplayName,
		Email:    user.Email,
		Role:     string(rbac.Normalize(user.Role)),
		JTI:      claims.ID,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func (s *Service) Logout(ctx context.Context, session Session) error {
	if session.JTI == "" {
		return nil
	}
	return s.tokens.RevokeToken(ctx, session.JTI, session.ExpiresAt)
}

const (
	panelWidthPreference = "panel_width"
	defaultPanelWidth    = 600
)

// PanelWidth returns the user's stored side panel width, clamped for the current viewport.
func (s *Service) PanelWidth(ctx context.Context, userID string, viewport int) (int, error) {
	width := defaultPanelWidth
	raw, ok, err := s.tokens.GetPreference(ctx, userID, panelWidthPreference)
	if err != nil {
		return 0, err
	}
	if ok {
		if stored, convErr := strconv.Atoi(strings.TrimSpace(raw)); convErr == nil {
			width = stored
		}
	}
	return form.ClampPanelWidth(width, viewport), nil
}

// SetPanelWidth clamps a dragged width and persists it for the user.
func (s *Service) SetPanelWidth(ctx context.Context, userID string, requested, viewport int) (int, error) {
	width := form.ClampPanelWidth(requested, viewport)
	if err := s.tokens.SetPreference(ctx, userID, panelWidthPreference, strconv.Itoa(width)); err != nil {
		return 0, err
	}
	return width, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}
