package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-kit/log"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/assistant"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/ingest"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/portfolio"
)

// Ingestor is the part of the ingestion controller the HTTP layer drives.
type Ingestor interface {
	Submit(ctx context.Context, files []ingest.Incoming) (*ingest.Batch, error)
	Snapshot(ctx context.Context) (ingest.Snapshot, error)
	Delete(ctx context.Context, id string) error
	Dismiss(ctx context.Context, id string) (bool, error)
	Preview(ctx context.Context, handle string) (ingest.Preview, bool, error)
	Subscribe(ctx context.Context) (<-chan ingest.Snapshot, func(), error)
}

type Dependencies struct {
	Ingest    Ingestor
	Assistant assistant.Assistant
	Portfolio *portfolio.Provider
	Logger    log.Logger

	Middleware []func(http.Handler) http.Handler
	// MaxUploadBytes bounds the whole multipart body of a submission.
	MaxUploadBytes int64
	AllowedOrigins []string
}

type Router struct {
	mux     *http.ServeMux
	handler http.Handler
}

func New(deps Dependencies) (*Router, error) {
	if deps.Ingest == nil {
		return nil, errors.New("ingest controller is required")
	}
	if deps.Portfolio == nil {
		deps.Portfolio = portfolio.Default()
	}
	if deps.Logger == nil {
		deps.Logger = log.NewNopLogger()
	}

	mux := http.NewServeMux()
	ctx := context.Background()

	NewDocumentRoutes(deps.Ingest, deps.MaxUploadBytes, deps.Logger).RegisterHandlers(ctx, mux)
	NewEventRoutes(deps.Ingest, deps.AllowedOrigins, deps.Logger).RegisterHandlers(ctx, mux)
	NewAssistantRoutes(deps.Assistant, deps.Logger).RegisterHandlers(ctx, mux)
	NewPortfolioRoutes(deps.Portfolio).RegisterHandlers(ctx, mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var handler http.Handler = mux
	for i := len(deps.Middleware) - 1; i >= 0; i-- {
		handler = deps.Middleware[i](handler)
	}

	return &Router{
		mux:     mux,
		handler: handler,
	}, nil
}

func (r *Router) Handler() http.Handler {
	if r == nil {
		return nil
	}
	return r.handler
}
