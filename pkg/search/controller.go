// CLAUDE:SUMMARY Search controller: owns the form state, validates and dispatches one lookup per submit, discards stale results.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hazyhaar/abnlookup/pkg/abn"
)

// LookupService is the remote registry as seen by the controller.
type LookupService interface {
	// SearchByABN returns the record for an 11-digit ABN, or nil when the
	// registry has no match.
	SearchByABN(ctx context.Context, id string) (*abn.Record, error)
	// SearchByName returns matching records in relevance order.
	SearchByName(ctx context.Context, name string) ([]abn.Record, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the diagnostics logger. Lookup failures are reported there.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller drives a single search form. It is safe for concurrent use;
// state changes made by one handler are never interleaved with another's.
type Controller struct {
	svc    LookupService
	logger *slog.Logger

	mu    sync.Mutex
	state State
	phase Phase
	// seq identifies the active submission. SetMode and Submit advance it;
	// a settling lookup whose seq is no longer current is discarded.
	seq uint64
}

// New returns a controller in identifier mode with an empty form.
func New(svc LookupService, opts ...Option) *Controller {
	c := &Controller{
		svc:    svc,
		logger: slog.Default(),
		state:  State{Mode: abn.ModeIdentifier, Results: []abn.DisplayRecord{}},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns a copy of the current form state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Phase returns where the controller is in the submit cycle.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SetMode switches the search mode and resets the form. A lookup still in
// flight is orphaned: its result will not be applied.
func (c *Controller) SetMode(m abn.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.state = State{Mode: m, Results: []abn.DisplayRecord{}}
	c.phase = PhaseIdle
}

// SetTerm records the raw search input and clears any displayed error.
func (c *Controller) SetTerm(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Term = raw
	c.state.Error = ""
}

// Submit validates the current term and, if valid, runs the lookup for the
// current mode. It blocks until the lookup settles.
//
// The outcome is always reflected in State. The returned error is nil on
// success, a *abn.ValidationError or *LookupError on failure, ErrBusy when a
// search is already running, and ErrStale when the form moved on before the
// lookup returned.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Loading {
		c.mu.Unlock()
		return ErrBusy
	}

	c.phase = PhaseValidating
	mode := c.state.Mode
	term, err := abn.Validate(mode, c.state.Term)
	if err != nil {
		c.state.Error = err.Error()
		c.phase = PhaseIdle
		c.mu.Unlock()
		return err
	}

	c.seq++
	seq := c.seq
	c.state.Loading = true
	c.state.Error = ""
	c.state.Results = []abn.DisplayRecord{}
	c.phase = PhaseLoading
	c.mu.Unlock()

	defer c.release(seq)

	results, err := c.dispatch(ctx, mode, term)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		c.logger.Debug("discarding stale search result", "mode", mode, "term", term)
		return ErrStale
	}

	c.state.Loading = false
	c.phase = PhaseIdle
	if err != nil {
		c.logger.Error("lookup failed", "mode", mode, "term", term, "error", err)
		c.state.Error = ExtractMessage(err)
		return err
	}
	c.state.Results = results
	return nil
}

// release clears the loading flag if seq is still the active submission.
// It covers exits that never reach the normal settle path.
func (c *Controller) release(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == seq && c.state.Loading {
		c.state.Loading = false
		c.phase = PhaseIdle
	}
}

func (c *Controller) dispatch(ctx context.Context, mode abn.Mode, term string) ([]abn.DisplayRecord, error) {
	if mode == abn.ModeName {
		recs, err := c.svc.SearchByName(ctx, term)
		if err != nil {
			return nil, asLookupError(mode, err)
		}
		return abn.TransformAll(recs), nil
	}

	rec, err := c.svc.SearchByABN(ctx, term)
	if err != nil {
		return nil, asLookupError(mode, err)
	}
	if rec == nil {
		return []abn.DisplayRecord{}, nil
	}
	return []abn.DisplayRecord{abn.Transform(*rec)}, nil
}

func asLookupError(mode abn.Mode, err error) error {
	var le *LookupError
	if errors.As(err, &le) {
		return err
	}
	return &LookupError{Op: mode.String(), Err: err}
}
