package session

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/splitcheck/internal/receipt"
)

// Result is a participant's confirmed share of a receipt
type Result struct {
	Total       decimal.Decimal   `json:"total"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
	Breakdown   []string          `json:"breakdown"`
	Selection   receipt.Selection `json:"selection"`
	ConfirmedAt time.Time         `json:"confirmed_at"`
}

// Session is the shared state of one receipt being split. Receipt is
// written once at creation; selections and results are keyed by
// participant id.
type Session struct {
	Key        string                       `json:"key"`
	Receipt    *receipt.Receipt             `json:"receipt"`
	Selections map[string]receipt.Selection `json:"selections"`
	Results    map[string]*Result           `json:"results"`
	Photo      string                       `json:"photo,omitempty"`
	CreatedAt  time.Time                    `json:"created_at"`
}

func newSession(key string, r *receipt.Receipt, now time.Time) *Session {
	return &Session{
		Key:        key,
		Receipt:    r,
		Selections: make(map[string]receipt.Selection),
		Results:    make(map[string]*Result),
		CreatedAt:  now,
	}
}

// selection returns the participant's live selection, creating it if needed
func (s *Session) selection(participant string) receipt.Selection {
	if s.Selections == nil {
		s.Selections = make(map[string]receipt.Selection)
	}
	sel, ok := s.Selections[participant]
	if !ok {
		sel = make(receipt.Selection)
		s.Selections[participant] = sel
	}
	return sel
}

// clone copies everything a writer may mutate. The receipt is immutable
// and stays shared.
func (s *Session) clone() *Session {
	out := *s
	out.Selections = make(map[string]receipt.Selection, len(s.Selections))
	for participant, sel := range s.Selections {
		out.Selections[participant] = sel.Snapshot()
	}
	out.Results = make(map[string]*Result, len(s.Results))
	for participant, result := range s.Results {
		if result == nil {
			continue
		}
		out.Results[participant] = result.clone()
	}
	return &out
}

func (r *Result) clone() *Result {
	out := *r
	out.Breakdown = append([]string(nil), r.Breakdown...)
	out.Selection = r.Selection.Snapshot()
	return &out
}

// setResult stores a copy of result so the caller keeps no handle on
// session state
func (s *Session) setResult(participant string, result *Result) {
	if s.Results == nil {
		s.Results = make(map[string]*Result)
	}
	s.Results[participant] = result.clone()
}
