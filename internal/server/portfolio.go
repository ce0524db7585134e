package server

import (
	"context"
	"net/http"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/portfolio"
)

type PortfolioRoutes struct {
	provider *portfolio.Provider
}

func NewPortfolioRoutes(p *portfolio.Provider) *PortfolioRoutes {
	return &PortfolioRoutes{provider: p}
}

func (r *PortfolioRoutes) RegisterHandlers(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /api/portfolio", r.handlePortfolio)
}

func (r *PortfolioRoutes) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets":         r.provider.Assets(),
		"alerts":         r.provider.Alerts(),
		"reserve":        r.provider.Reserve(),
		"byCategory":     r.provider.ByCategory(),
		"totalWealth":    r.provider.TotalWealth(),
		"totalFormatted": portfolio.FormatAOA(r.provider.TotalWealth()),
	})
}
