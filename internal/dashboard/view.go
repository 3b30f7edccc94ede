package dashboard

import (
	"time"

	"github.com/seenimoa/dtfscope/internal/viz"
	"github.com/seenimoa/dtfscope/pkg/models"
)

// State is a step of the dashboard lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateRendered State = "rendered"
	StateError    State = "error"
	StateWarning  State = "warning"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateRendered || s == StateError || s == StateWarning
}

// Request is one user interaction: the sidebar search text and the
// dropdown selection (category name or id; empty picks the first match).
type Request struct {
	Search   string `json:"search"`
	Category string `json:"category"`
}

// Key identifies equivalent requests.
func (r Request) Key() string { return r.Search + "\x00" + r.Category }

// PanelStatus is the outcome of one independently built panel.
type PanelStatus string

const (
	PanelReady  PanelStatus = "ready"
	PanelNoData PanelStatus = "no_data"
	PanelFailed PanelStatus = "failed"
)

// Panel names. The chart panels reuse the viz kinds.
const (
	PanelTreemap   = string(viz.KindTreemap)
	PanelHistogram = string(viz.KindHistogram)
	PanelScatter   = string(viz.KindScatter)
	PanelHeadlines = "headlines"
)

// Panel reports how one chart or the headline list turned out.
type Panel struct {
	Name    string      `json:"name"`
	Status  PanelStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// View is everything a renderer needs to draw one dashboard page.
type View struct {
	State    State             `json:"state"`
	Request  Request           `json:"request"`
	Message  string            `json:"message,omitempty"`
	Err      error             `json:"-"`
	Matches  []models.Category `json:"matches,omitempty"`
	Category *models.Category  `json:"category,omitempty"`

	Metrics   models.MetricsSummary `json:"metrics"`
	Treemap   *viz.Treemap          `json:"treemap,omitempty"`
	Histogram *viz.Histogram        `json:"histogram,omitempty"`
	Scatter   *viz.Scatter          `json:"scatter,omitempty"`
	Headlines []models.Headline     `json:"headlines,omitempty"`
	Panels    []Panel               `json:"panels,omitempty"`

	RenderedAt time.Time `json:"rendered_at"`
}

// Panel returns the named panel status, if it was built.
func (v *View) Panel(name string) (Panel, bool) {
	for _, p := range v.Panels {
		if p.Name == name {
			return p, true
		}
	}
	return Panel{}, false
}

// CategoryName is the resolved category name, or "" before resolution.
func (v *View) CategoryName() string {
	if v.Category == nil {
		return ""
	}
	return v.Category.Name
}
