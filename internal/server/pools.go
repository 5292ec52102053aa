package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rickgao/kalshi-rankings/internal/pool"
)

// maxPoolBody bounds pool request bodies; brackets are at most 500 characters.
const maxPoolBody = 8 << 10

type referenceTeam struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	CountryCode string  `json:"country_code"`
	GroupLetter *string `json:"group_letter"`
	FlagEmoji   *string `json:"flag_emoji"`
}

func (s *Server) handleReferenceTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.LoadTeams(r.Context())
	if err != nil {
		s.internalError(w, "load teams", err)
		return
	}

	out := make([]referenceTeam, 0, len(teams))
	for _, t := range teams {
		out = append(out, referenceTeam{
			ID:          t.ID,
			Name:        t.Name,
			CountryCode: t.CountryCode,
			GroupLetter: optional(t.GroupLabel),
			FlagEmoji:   optional(t.FlagEmoji),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createPoolRequest struct {
	Name        string `json:"name"`
	CreatorName string `json:"creator_name"`
	BracketData string `json:"bracket_data"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := s.pools.Create(r.Context(), req.Name, req.CreatorName, req.BracketData)
	if err != nil {
		s.poolError(w, "create pool", err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", pool.DefaultMemberLimit, 1, pool.MaxMemberLimit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	view, err := s.pools.Get(r.Context(), r.PathValue("code"), limit)
	if err != nil {
		s.poolError(w, "get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type joinPoolRequest struct {
	DisplayName string `json:"display_name"`
	BracketData string `json:"bracket_data"`
}

func (s *Server) handleJoinPool(w http.ResponseWriter, r *http.Request) {
	var req joinPoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	joined, err := s.pools.Join(r.Context(), r.PathValue("code"), req.DisplayName, req.BracketData)
	if err != nil {
		s.poolError(w, "join pool", err)
		return
	}
	writeJSON(w, http.StatusOK, joined)
}

type updateBracketRequest struct {
	BracketData string `json:"bracket_data"`
}

func (s *Server) handleUpdateBracket(w http.ResponseWriter, r *http.Request) {
	var req updateBracketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.pools.UpdateBracket(r.Context(), r.PathValue("code"), r.PathValue("display_name"),
		r.Header.Get("X-Member-Token"), req.BracketData)
	if err != nil {
		s.poolError(w, "update bracket", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Bracket updated successfully"})
}

func (s *Server) handleLeavePool(w http.ResponseWriter, r *http.Request) {
	err := s.pools.Leave(r.Context(), r.PathValue("code"), r.PathValue("display_name"),
		r.Header.Get("X-Member-Token"))
	if err != nil {
		s.poolError(w, "leave pool", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully left the team"})
}

func (s *Server) handleDeletePool(w http.ResponseWriter, r *http.Request) {
	err := s.pools.Delete(r.Context(), r.PathValue("code"), r.Header.Get("X-Creator-Token"))
	if err != nil {
		s.poolError(w, "delete pool", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Team deleted successfully"})
}

// poolError maps pool errors to status codes.
func (s *Server) poolError(w http.ResponseWriter, op string, err error) {
	var ve *pool.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusUnprocessableEntity, ve.Error())
	case errors.Is(err, pool.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pool.ErrNameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pool.ErrTokenRequired):
		writeError(w, http.StatusUnauthorized, "token header required")
	case errors.Is(err, pool.ErrInvalidToken):
		writeError(w, http.StatusForbidden, "invalid token")
	default:
		s.internalError(w, op, err)
	}
}

// decodeBody reads a JSON body into v, writing a 422 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPoolBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
