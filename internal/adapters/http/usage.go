package httpadapter

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

const (
	defaultActivityWindow = 7 * 24 * time.Hour
	defaultOverviewWindow = 30 * 24 * time.Hour
)

func (rt *Router) usageActivity(w http.ResponseWriter, r *http.Request) {
	granularity := domain.UsageGranularity(r.URL.Query().Get("granularity"))
	switch granularity {
	case "":
		granularity = domain.GranularityDay
	case domain.GranularityHour, domain.GranularityDay, domain.GranularityWeek, domain.GranularityMonth:
	default:
		writeError(w, r, domain.NewValidationError("granularity", "Granularity must be hour, day, week or month"))
		return
	}
	window, err := rt.usageRange(r, defaultActivityWindow)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activity, err := rt.deps.Usage.Activity(r.Context(), granularity, window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (rt *Router) usageOverview(w http.ResponseWriter, r *http.Request) {
	window, err := rt.usageRange(r, defaultOverviewWindow)
	if err != nil {
		writeError(w, r, err)
		return
	}
	overview, err := rt.deps.Usage.Overview(r.Context(), window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (rt *Router) usageHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	usageType := query.Get("type")
	if usageType != "" {
		if _, ok := domain.ParseMode(usageType); !ok {
			writeError(w, r, domain.NewValidationError("type", "Type must be invoice or manual"))
			return
		}
	}
	history, err := rt.deps.Usage.History(r.Context(), usageType, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// usageRange reads start and end as RFC 3339; a missing end is now and a
// missing start lies fallback before the end.
func (rt *Router) usageRange(r *http.Request, fallback time.Duration) (domain.UsageRange, error) {
	query := r.URL.Query()
	end := rt.deps.Now().UTC()
	if raw := query.Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.UsageRange{}, domain.NewValidationError("end", "End must be an RFC 3339 time")
		}
		end = parsed
	}
	start := end.Add(-fallback)
	if raw := query.Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.UsageRange{}, domain.NewValidationError("start", "Start must be an RFC 3339 time")
		}
		start = parsed
	}
	if !start.Before(end) {
		return domain.UsageRange{}, domain.NewValidationError("start", "Start must be before end")
	}
	return domain.UsageRange{Start: start, End: end}, nil
}

func (rt *Router) pricing(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Pricing == nil {
		writeError(w, r, domain.WrapError(domain.ErrNotFound, "pricing", errors.New("pricing catalog is not loaded")))
		return
	}
	query := r.URL.Query()
	planID, tierID := query.Get("plan"), query.Get("tier")
	if planID == "" || tierID == "" {
		writeJSON(w, http.StatusOK, rt.deps.Pricing)
		return
	}

	pages, err := strconv.Atoi(query.Get("pages"))
	if err != nil || pages < 0 {
		writeError(w, r, domain.NewValidationError("pages", "Pages must be a non-negative number"))
		return
	}
	total, err := rt.deps.Pricing.Estimate(planID, tierID, pages)
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "estimate price", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plan":     planID,
		"tier":     tierID,
		"pages":    pages,
		"total":    total,
		"currency": rt.deps.Pricing.Currency,
	})
}
