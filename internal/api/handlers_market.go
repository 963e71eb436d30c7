package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finmentor/internal/market"
)

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	q, found, err := s.deps.Market.Quote(r.Context(), symbol)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out := map[string]any{"found": found}
	if found {
		out["quote"] = q
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	period := r.URL.Query().Get("period")
	bars, found, err := s.deps.Market.PriceHistory(r.Context(), symbol, period)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	if period == "" {
		period = market.DefaultPeriod
	}
	symbol, _ = market.NormalizeSymbol(symbol)

	if r.URL.Query().Get("format") == "csv" {
		if !found {
			writeError(w, http.StatusNotFound, "no price history for "+symbol)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s.csv"`, symbol, period))
		w.WriteHeader(http.StatusOK)
		if err := market.WriteCSV(w, bars); err != nil {
			s.log.Warn("csv export failed", "symbol", symbol, "err", err)
		}
		return
	}

	if bars == nil {
		bars = []market.Bar{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"period": period,
		"found":  found,
		"bars":   bars,
	})
}

func (s *Server) handleDividends(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	divs, found, err := s.deps.Market.Dividends(r.Context(), symbol)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	if divs == nil {
		divs = []market.Dividend{}
	}
	symbol, _ = market.NormalizeSymbol(symbol)
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    symbol,
		"found":     found,
		"dividends": divs,
	})
}
