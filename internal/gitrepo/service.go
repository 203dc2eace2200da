// Package gitrepo reads the branch and commit of the checkout the app is served from.
// Annotations are scoped by branch so review notes on a feature branch stay there.
package gitrepo

import (
	"fmt"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Head describes the checked-out commit.
type Head struct {
	Branch      string    `json:"branch"`
	Commit      string    `json:"commit"`
	Message     string    `json:"message,omitempty"`
	CommittedAt time.Time `json:"committed_at"`
}

func (h Head) ShortCommit() string {
	if len(h.Commit) > 7 {
		return h.Commit[:7]
	}
	return h.Commit
}

// ReadHead opens the repository containing dir and resolves HEAD. Branch is empty when HEAD
// is detached.
func ReadHead(dir string) (Head, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Head{}, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Head()
	if err != nil {
		return Head{}, fmt.Errorf("read HEAD: %w", err)
	}

	head := Head{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		head.Branch = ref.Name().Short()
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Head{}, fmt.Errorf("read commit %s: %w", head.ShortCommit(), err)
	}
	head.Message = strings.TrimSpace(commit.Message)
	head.CommittedAt = commit.Committer.When
	return head, nil
}

// CurrentBranch returns the checked-out branch name. A repository without commits still
// reports the branch HEAD points at.
func CurrentBranch(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short(), nil
	}
	return "", nil
}

// Service caches the detected branch. A configured override always wins.
type Service struct {
	dir      string
	override string

	mu       sync.Mutex
	branch   string
	detected bool
}

func New(dir, override string) *Service {
	return &Service{dir: dir, override: override}
}

// Branch returns the current branch, or "" when it cannot be determined.
func (s *Service) Branch() string {
	if s.override != "" {
		return s.override
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.detected {
		s.branch, _ = CurrentBranch(s.dir)
		s.detected = true
	}
	return s.branch
}

// Head reports the checked-out commit with the effective branch.
func (s *Service) Head() (Head, error) {
	head, err := ReadHead(s.dir)
	if err != nil {
		return Head{Branch: s.Branch()}, err
	}
	if s.override != "" {
		head.Branch = s.override
	}
	return head, nil
}
