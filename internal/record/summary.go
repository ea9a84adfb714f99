package record

import (
	"github.com/rs/zerolog"
)

// Outcome is what happened to one input row.
type Outcome string

const (
	OutcomeWritten    Outcome = "written"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeNoData     Outcome = "no_data"
)

// Summary counts a run.
type Summary struct {
	RunID      string         `json:"run_id"`
	Inputs     int            `json:"inputs"`
	Resolved   int            `json:"resolved"`
	Unresolved int            `json:"unresolved"`
	NoData     int            `json:"no_data"`
	Rows       int            `json:"rows"`
	Providers  map[string]int `json:"providers"`
}

// Add folds one instrument outcome into s.
func (s *Summary) Add(outcome Outcome, provider string, rows int) {
	s.Inputs++
	switch outcome {
	case OutcomeUnresolved:
		s.Unresolved++
		return
	case OutcomeNoData:
		s.NoData++
	}
	s.Resolved++
	s.Rows += rows
	if s.Providers == nil {
		s.Providers = map[string]int{}
	}
	s.Providers[provider]++
}

// Log writes s as one info event.
func (s Summary) Log(log zerolog.Logger) {
	ev := log.Info().
		Str("run_id", s.RunID).
		Int("inputs", s.Inputs).
		Int("resolved", s.Resolved).
		Int("unresolved", s.Unresolved).
		Int("no_data", s.NoData).
		Int("rows", s.Rows)
	d := zerolog.Dict()
	for k, v := range s.Providers {
		d = d.Int(k, v)
	}
	ev.Dict("providers", d).Msg("run summary")
}
