package ingest

import (
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/model"
)

// SubsetStatus describes where a subset of the committed snapshot came from.
type SubsetStatus string

const (
	// SubsetFresh means every record was fetched in this run.
	SubsetFresh SubsetStatus = "fresh"
	// SubsetCarried means the previous epoch's records were kept.
	SubsetCarried SubsetStatus = "carried"
	// SubsetPartial means some records are fresh and some carried.
	SubsetPartial SubsetStatus = "partial"
	// SubsetFailed means the subset could not be fetched and nothing was carried.
	SubsetFailed SubsetStatus = "failed"
)

// Subset names in report order.
const (
	SubsetTeams     = "teams"
	SubsetPlayers   = "players"
	SubsetGameweeks = "gameweeks"
	SubsetFixtures  = "fixtures"
	SubsetHistory   = "history"
	SubsetPrices    = "prices"
)

// maxReportedDrops caps the drop list kept on a report; counts stay exact.
const maxReportedDrops = 100

// SubsetReport is the outcome of one subset in a run.
type SubsetReport struct {
	Name     string       `json:"name"`
	Status   SubsetStatus `json:"status"`
	Count    int          `json:"count"`
	Dropped  int          `json:"dropped"`
	Attempts int          `json:"attempts,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Report summarizes one ingestion run.
type Report struct {
	RunID         string         `json:"run_id"`
	Committed     bool           `json:"committed"`
	Epoch         model.Epoch    `json:"epoch"`
	PreviousEpoch model.Epoch    `json:"previous_epoch"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Subsets       []SubsetReport `json:"subsets"`
	Drops         []Drop         `json:"drops,omitempty"`
	ErrorKind     fault.Kind     `json:"error_kind,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Subset returns the report of the named subset.
func (r Report) Subset(name string) (SubsetReport, bool) {
	for _, s := range r.Subsets {
		if s.Name == name {
			return s, true
		}
	}
	return SubsetReport{}, false
}

// DroppedTotal sums dropped records across subsets.
func (r Report) DroppedTotal() int {
	n := 0
	for _, s := range r.Subsets {
		n += s.Dropped
	}
	return n
}

func (r *Report) addDrops(ds []Drop) {
	room := maxReportedDrops - len(r.Drops)
	if room <= 0 {
		return
	}
	if len(ds) > room {
		ds = ds[:room]
	}
	r.Drops = append(r.Drops, ds...)
}

func (r *Report) setSubset(s SubsetReport) {
	for i := range r.Subsets {
		if r.Subsets[i].Name == s.Name {
			r.Subsets[i] = s
			return
		}
	}
	r.Subsets = append(r.Subsets, s)
}
