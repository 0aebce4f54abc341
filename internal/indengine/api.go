package indengine

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"screening-systemv1/config"
	"screening-systemv1/internal/screening"
)

func (svc *Service) routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/rebuild":     svc.handleRebuild,
		"/indicators/": svc.handleIndicator,
	}
}

type rebuildRequest struct {
	// Indicators in TYPE:key=value;... form; empty rebuilds the configured set.
	Indicators []string `json:"indicators"`
}

type indicatorSummary struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
	Symbols    int      `json:"symbols"`
}

// handleRebuild handles POST /rebuild.
func (svc *Service) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	specs := svc.cfg.Indicators
	if len(req.Indicators) > 0 {
		parsed, err := config.ParseIndicatorSpecs(strings.Join(req.Indicators, ","))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		probe := config.Config{Indicators: parsed}
		if _, err := probe.IndicatorConfigs(); err != nil {
			http.Error(w, "validation: "+err.Error(), http.StatusBadRequest)
			return
		}
		specs = parsed
	}

	built, err := svc.Build(r.Context(), specs)
	if err != nil {
		svc.log.Warn("rebuild failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]indicatorSummary, 0, len(built))
	for _, ind := range built {
		out = append(out, summarize(ind))
	}
	writeJSON(w, map[string]any{"status": "ok", "indicators": out})
}

// handleIndicator handles GET /indicators/<name>[?attribute=A&symbol=S].
// Without a symbol it returns the summary; with one, the attribute series.
func (svc *Service) handleIndicator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/indicators/")
	ind, ok := svc.Indicator(name)
	if !ok {
		http.Error(w, "unknown indicator "+name, http.StatusNotFound)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeJSON(w, summarize(ind))
		return
	}
	attrName := r.URL.Query().Get("attribute")
	attr, ok := ind.Attribute(attrName)
	if !ok {
		http.Error(w, "unknown attribute "+attrName, http.StatusNotFound)
		return
	}
	dates, values, ok := attr.Series(symbol)
	if !ok {
		http.Error(w, "no series for "+symbol, http.StatusNotFound)
		return
	}

	type point struct {
		Date  string   `json:"date"`
		Value *float64 `json:"value"` // null for no value
	}
	points := make([]point, len(dates))
	for i, d := range dates {
		points[i].Date = d.Format("2006-01-02")
		if v := values[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			points[i].Value = &v
		}
	}
	writeJSON(w, map[string]any{"indicator": name, "attribute": attrName, "symbol": symbol, "series": points})
}

func summarize(ind *screening.Indicator) indicatorSummary {
	s := indicatorSummary{Name: ind.Name, Attributes: ind.AttributeNames()}
	if len(s.Attributes) > 0 {
		if a, ok := ind.Attribute(s.Attributes[0]); ok {
			s.Symbols = len(a.Symbols())
		}
	}
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
