package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rickgao/kalshi-rankings/internal/cache"
	"github.com/rickgao/kalshi-rankings/internal/pipeline"
	"github.com/rickgao/kalshi-rankings/internal/store"
	"github.com/rickgao/kalshi-rankings/internal/version"
)

const (
	defaultDaysBack = 30
	maxDaysBack     = 90
	defaultTopN     = 10
	maxTopN         = 48
)

type rankingRow struct {
	TeamName    string     `json:"team_name"`
	Probability null.Float `json:"probability"`
	Rank        int        `json:"rank"`
	TeamID      null.Int   `json:"team_id"`
	YesBid      null.Int   `json:"yes_bid"`
	YesAsk      null.Int   `json:"yes_ask"`
	Volume      null.Int   `json:"volume"`
}

type rankingsResponse struct {
	EventTicker string       `json:"event_ticker"`
	AsOf        *time.Time   `json:"as_of"`
	Rankings    []rankingRow `json:"rankings"`
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event := s.eventTicker(r)

	rows, err := s.store.Rankings(ctx, event)
	if err != nil {
		s.internalError(w, "load rankings", err)
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No rankings found for event %s. Run the ETL job first.", event))
		return
	}

	quotes, err := s.store.LatestQuotes(ctx, event)
	if err != nil {
		s.internalError(w, "load latest quotes", err)
		return
	}

	resp := rankingsResponse{
		EventTicker: event,
		AsOf:        &rows[0].AsOf,
		Rankings:    make([]rankingRow, 0, len(rows)),
	}
	for _, rk := range rows {
		row := rankingRow{
			TeamName:    rk.TeamName,
			Probability: rk.AvgYesBidOpen,
			Rank:        rk.Rank,
			TeamID:      rk.TeamID,
		}
		if q, ok := quotes[rk.TeamName]; ok {
			row.YesBid, row.YesAsk, row.Volume = q.YesBidOpen, q.YesAskClose, q.Volume
		}
		resp.Rankings = append(resp.Rankings, row)
	}

	writeJSON(w, http.StatusOK, resp)
}

type historyRow struct {
	TeamName    string     `json:"team_name"`
	Timestamp   int64      `json:"timestamp"`
	Probability null.Int   `json:"probability"`
	Bid         null.Int   `json:"bid"`
	Ask         null.Int   `json:"ask"`
	Mid         null.Float `json:"mid"`
	Volume      null.Int   `json:"volume"`
}

type historyResponse struct {
	EventTicker string       `json:"event_ticker"`
	Teams       []string     `json:"teams"`
	History     []historyRow `json:"history"`
	DataFrom    time.Time    `json:"data_from"`
	DataTo      time.Time    `json:"data_to"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event := s.eventTicker(r)

	daysBack, err := intParam(r, "days_back", defaultDaysBack, 1, maxDaysBack)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	topN, err := intParam(r, "top_n_teams", defaultTopN, 1, maxTopN)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rows, err := s.store.Rankings(ctx, event)
	if err != nil {
		s.internalError(w, "load rankings", err)
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No rankings found for event %s. Run the ETL job first.", event))
		return
	}

	teams := make([]string, 0, topN)
	for _, rk := range rows {
		if len(teams) == topN {
			break
		}
		teams = append(teams, rk.TeamName)
	}

	now := s.now().UTC()
	since := now.Add(-time.Duration(daysBack) * 24 * time.Hour).Truncate(time.Second)

	points, err := s.store.History(ctx, store.HistoryQuery{EventTicker: event, Since: since, Teams: teams})
	if err != nil {
		s.internalError(w, "load history", err)
		return
	}

	resp := historyResponse{
		EventTicker: event,
		Teams:       teams,
		History:     make([]historyRow, 0, len(points)),
		DataFrom:    since,
		DataTo:      now,
	}
	for _, p := range points {
		resp.History = append(resp.History, historyRow{
			TeamName:    p.TeamName,
			Timestamp:   p.EndPeriodTS,
			Probability: p.YesBidOpen,
			Bid:         p.YesBidOpen,
			Ask:         p.YesAskClose,
			Mid:         p.MidCents,
			Volume:      p.Volume,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type teamPoint struct {
	Timestamp   int64    `json:"timestamp"`
	Probability null.Int `json:"probability"`
	Volume      null.Int `json:"volume"`
}

type teamResponse struct {
	EventTicker        string      `json:"event_ticker"`
	TeamName           string      `json:"team_name"`
	CurrentRank        *int        `json:"current_rank"`
	CurrentProbability null.Float  `json:"current_probability"`
	History            []teamPoint `json:"history"`
	DataFrom           time.Time   `json:"data_from"`
	DataTo             time.Time   `json:"data_to"`
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event := s.eventTicker(r)
	team := r.PathValue("team_name")

	daysBack, err := intParam(r, "days_back", defaultDaysBack, 1, maxDaysBack)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	now := s.now().UTC()
	since := now.Add(-time.Duration(daysBack) * 24 * time.Hour).Truncate(time.Second)

	points, err := s.store.History(ctx, store.HistoryQuery{EventTicker: event, Since: since, Teams: []string{team}})
	if err != nil {
		s.internalError(w, "load history", err)
		return
	}
	if len(points) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No history found for team '%s' in event %s.", team, event))
		return
	}

	resp := teamResponse{
		EventTicker: event,
		TeamName:    team,
		History:     make([]teamPoint, 0, len(points)),
		DataFrom:    since,
		DataTo:      now,
	}
	for _, p := range points {
		resp.History = append(resp.History, teamPoint{
			Timestamp:   p.EndPeriodTS,
			Probability: p.YesBidOpen,
			Volume:      p.Volume,
		})
	}

	rows, err := s.store.Rankings(ctx, event)
	if err != nil {
		s.internalError(w, "load rankings", err)
		return
	}
	for _, rk := range rows {
		if rk.TeamName == team {
			rank := rk.Rank
			resp.CurrentRank = &rank
			resp.CurrentProbability = rk.AvgYesBidOpen
			break
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type currentResponse struct {
	pipeline.Snapshot
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
	Warning   string    `json:"warning,omitempty"`
}

func encodeCurrent(r cache.Result[pipeline.Snapshot]) ([]byte, error) {
	return json.Marshal(currentResponse{
		Snapshot:  r.Value,
		FetchedAt: r.FetchedAt,
		Stale:     r.Stale,
		Warning:   r.Warning,
	})
}

func (s *Server) current(ctx context.Context, event string) ([]byte, int, error) {
	if s.snapshots == nil {
		return nil, http.StatusServiceUnavailable, fmt.Errorf("current rankings are not enabled")
	}
	res, err := s.snapshots.Get(ctx, event)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("current rankings unavailable: %w", err)
	}
	b, err := encodeCurrent(res)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return b, http.StatusOK, nil
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	b, status, err := s.current(r.Context(), s.eventTicker(r))
	if err != nil {
		s.logger.Warn("current rankings failed", "error", err)
		writeError(w, status, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// initialSnapshot prefers the stored view so a connecting client does not
// trigger an upstream fetch. Without a stored entry it falls back to Get.
func (s *Server) initialSnapshot(ctx context.Context, event string) ([]byte, error) {
	if s.snapshots != nil {
		res, err := s.snapshots.Peek(ctx, event)
		if err == nil {
			return encodeCurrent(res)
		}
		if !errors.Is(err, cache.ErrNoEntry) {
			return nil, err
		}
	}
	b, _, err := s.current(ctx, event)
	return b, err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	initial, err := s.initialSnapshot(r.Context(), s.eventTicker(r))
	if err != nil {
		// Still accept the client; it will receive the next refresh.
		s.logger.Warn("no initial snapshot for websocket client", "error", err)
		initial = nil
	}
	s.hub.ServeWS(w, r, initial)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Version    string         `json:"version"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Version:    version.Version,
		Components: map[string]any{"ws_clients": s.hub.ClientCount()},
	}

	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Components["database"] = map[string]string{
			"status": "disconnected",
			"error":  err.Error(),
		}
		status = http.StatusServiceUnavailable
	} else {
		health.Components["database"] = "connected"
	}

	writeJSON(w, status, health)
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.logger.Error("request failed", "op", what, "error", err)
	writeError(w, http.StatusInternalServerError, what+" failed")
}

// intParam parses an optional integer query parameter bounded to [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
