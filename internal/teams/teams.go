// Package teams loads the static competitor reference data and resolves
// market competitor names to team ids.
package teams

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/rickgao/kalshi-rankings/internal/model"
	"golang.org/x/text/cases"
)

// Normalize returns the lookup key for a competitor name: trimmed and case folded.
func Normalize(name string) string {
	// A Caser is stateful and must not be shared across goroutines.
	return cases.Fold().String(strings.TrimSpace(name))
}

// Lookup maps normalized competitor names to team ids.
type Lookup map[string]int64

// NewLookup builds a Lookup from reference rows. Later duplicates win.
func NewLookup(teams []model.Team) Lookup {
	l := make(Lookup, len(teams))
	for _, t := range teams {
		l[Normalize(t.Name)] = t.ID
	}
	return l
}

// Resolve returns the team id for name, or null when the name is unknown.
func (l Lookup) Resolve(name string) null.Int {
	if id, ok := l[Normalize(name)]; ok {
		return null.IntFrom(id)
	}
	return null.Int{}
}

// fileTeam is one entry of the reference JSON file.
type fileTeam struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	CountryCode string  `json:"country_code"`
	GroupLetter *string `json:"group_letter"`
	FlagEmoji   *string `json:"flag_emoji"`
}

// LoadFile reads the reference JSON: [{id, name, country_code, group_letter, flag_emoji}].
func LoadFile(path string) ([]model.Team, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read teams file: %w", err)
	}

	var rows []fileTeam
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse teams file: %w", err)
	}

	out := make([]model.Team, 0, len(rows))
	for i, r := range rows {
		if r.ID == 0 || strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("teams file entry %d: id and name are required", i)
		}
		t := model.Team{
			ID:          r.ID,
			Name:        strings.TrimSpace(r.Name),
			CountryCode: r.CountryCode,
		}
		if r.GroupLetter != nil {
			t.GroupLabel = *r.GroupLetter
		}
		if r.FlagEmoji != nil {
			t.FlagEmoji = *r.FlagEmoji
		}
		out = append(out, t)
	}
	return out, nil
}
