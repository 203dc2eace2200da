package annotate

import (
	"strings"
	"time"
)

type Annotation struct {
	ID           string    `json:"id"`
	PageURL      string    `json:"page_url"`
	GitBranch    *string   `json:"git_branch"`
	Selector     string    `json:"selector"`
	ElementLabel string    `json:"element_label"`
	Body         string    `json:"body"`
	Author       string    `json:"author"`
	PositionX    float64   `json:"position_x"`
	PositionY    float64   `json:"position_y"`
	Placement    Placement `json:"placement"`
	Resolved     bool      `json:"resolved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Point is the raw click coordinate the annotation was created at.
func (a Annotation) Point() Point {
	return Point{X: a.PositionX, Y: a.PositionY}
}

// Visible reports whether an annotation belongs on page under branch. Annotations without a
// branch show on every branch.
func Visible(a Annotation, page, branch string) bool {
	if a.PageURL != page {
		return false
	}
	if a.GitBranch == nil || *a.GitBranch == "" {
		return true
	}
	return *a.GitBranch == branch
}

func Filter(list []Annotation, page, branch string) []Annotation {
	out := make([]Annotation, 0, len(list))
	for _, a := range list {
		if Visible(a, page, branch) {
			out = append(out, a)
		}
	}
	return out
}

// RootSelector is the annotation UI container.
const RootSelector = "[data-annotation-root]"

var interactiveSelectors = []string{
	"button",
	"input",
	"select",
	"textarea",
	"a[href]",
	"[role=button]",
	"[role=link]",
	"[role=checkbox]",
	"[role=menuitem]",
	"[role=tab]",
	"[tabindex]",
}

// DisabledSelector matches every interactive page element outside the annotation UI. The
// client disables pointer events on it while the overlay is active.
func DisabledSelector() string {
	parts := make([]string, 0, len(interactiveSelectors))
	for _, s := range interactiveSelectors {
		parts = append(parts, s+":not("+RootSelector+" *)")
	}
	return strings.Join(parts, ", ")
}
