package search

import (
	"maps"
	"slices"

	"github.com/hazyhaar/abnlookup/pkg/abn"
)

// Phase is the controller's position in the submit cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseLoading
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseLoading:
		return "loading"
	default:
		return "idle"
	}
}

// State is a snapshot of the search form.
type State struct {
	Mode    abn.Mode            `json:"mode"`
	Term    string              `json:"term"`
	Results []abn.DisplayRecord `json:"results"`
	Loading bool                `json:"loading"`
	Error   string              `json:"error,omitempty"`
}

func (s State) IsIdentifierMode() bool  { return s.Mode == abn.ModeIdentifier }
func (s State) IsNameMode() bool        { return s.Mode == abn.ModeName }
func (s State) ModeLabel() string       { return s.Mode.Label() }
func (s State) TermPlaceholder() string { return s.Mode.Placeholder() }
func (s State) HasResults() bool        { return len(s.Results) > 0 }

// clone returns a copy that shares no mutable memory with s.
func (s State) clone() State {
	c := s
	c.Results = make([]abn.DisplayRecord, len(s.Results))
	for i, r := range s.Results {
		r.BusinessNames = slices.Clone(r.BusinessNames)
		r.Attributes = maps.Clone(r.Attributes)
		c.Results[i] = r
	}
	return c
}
