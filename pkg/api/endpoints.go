// CLAUDE:SUMMARY Transport-agnostic endpoints: one search per call through a fresh controller, plus source listing.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/abnlookup/pkg/abn"
	"github.com/hazyhaar/abnlookup/pkg/importer"
	"github.com/hazyhaar/abnlookup/pkg/kit"
	"github.com/hazyhaar/abnlookup/pkg/search"
)

// Shared request/response types used by both HTTP and MCP transports.

type searchReq struct {
	Mode abn.Mode
	Term string
}

// searchResponse is the form state after one submit.
type searchResponse struct {
	Mode        string              `json:"mode"`
	Term        string              `json:"term"`
	Label       string              `json:"label"`
	Placeholder string              `json:"placeholder"`
	Results     []abn.DisplayRecord `json:"results"`
	Error       string              `json:"error,omitempty"`
}

type sourcesResponse struct {
	Sources []importer.Source `json:"sources"`
}

func newSearchResponse(st search.State) *searchResponse {
	results := st.Results
	if results == nil {
		results = []abn.DisplayRecord{}
	}
	return &searchResponse{
		Mode:        st.Mode.String(),
		Term:        st.Term,
		Label:       st.ModeLabel(),
		Placeholder: st.TermPlaceholder(),
		Results:     results,
		Error:       st.Error,
	}
}

// searchEndpoint runs one submit on a controller owned by the call. The
// response is always populated; err is the submit outcome.
func searchEndpoint(svc search.LookupService, logger *slog.Logger) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*searchReq)
		c := search.New(svc, search.WithLogger(logger))
		c.SetMode(req.Mode)
		c.SetTerm(req.Term)
		err := c.Submit(ctx)
		return newSearchResponse(c.State()), err
	}
}

func listSourcesEndpoint(sdb *importer.SourceDB) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		sources, err := sdb.ListSources()
		if err != nil {
			return nil, fmt.Errorf("list sources: %w", err)
		}
		return sourcesResponse{Sources: sources}, nil
	}
}

// displayErrors replaces endpoint errors with the text a user should see:
// the validation message, the registry's own message, or the fallback.
func displayErrors(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		resp, err := next(ctx, request)
		if err == nil {
			return resp, nil
		}
		var verr *abn.ValidationError
		if errors.As(err, &verr) {
			return resp, errors.New(verr.Error())
		}
		return resp, errors.New(search.ExtractMessage(err))
	}
}
