package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/guregu/null/v6"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2025-01-01T00:00:00Z", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"2026-07-19T18:00:00-04:00", time.Date(2026, 7, 19, 22, 0, 0, 0, time.UTC), false},
		{"2025-06-01T12:30:00", time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := ParseTime(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestEventResponseToModel(t *testing.T) {
	var resp EventResponse
	if err := json.Unmarshal([]byte(eventJSON), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	event, markets, err := resp.ToModel("kxmenworldcup-26")
	if err != nil {
		t.Fatalf("ToModel: %v", err)
	}

	if event.SeriesTicker != "KXMENWORLDCUP" {
		t.Errorf("SeriesTicker = %q, want %q", event.SeriesTicker, "KXMENWORLDCUP")
	}
	if len(markets) != 2 {
		t.Fatalf("len(markets) = %d, want 2", len(markets))
	}

	m := markets[0]
	if m.TeamName != "Argentina" {
		t.Errorf("TeamName = %q, want %q", m.TeamName, "Argentina")
	}
	if m.SeriesTicker != "KXMENWORLDCUP" {
		t.Errorf("market SeriesTicker = %q, want %q", m.SeriesTicker, "KXMENWORLDCUP")
	}
	// Close time is the expected expiration, not close_time.
	wantClose := time.Date(2026, 7, 19, 22, 0, 0, 0, time.UTC)
	if !m.CloseTime.Equal(wantClose) {
		t.Errorf("CloseTime = %v, want %v", m.CloseTime, wantClose)
	}
}

func TestAPIMarketToModel_FallbackClose(t *testing.T) {
	m := APIMarket{
		Ticker:    "KXMENWORLDCUP-26-BRA",
		OpenTime:  "2025-01-01T00:00:00Z",
		CloseTime: "2026-07-20T00:00:00Z",
	}
	ev := APIEvent{EventTicker: "KXMENWORLDCUP-26"}
	got, err := m.ToModel(ev.ToModel(""))
	if err != nil {
		t.Fatalf("ToModel: %v", err)
	}
	if !got.CloseTime.Equal(time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("CloseTime = %v, want close_time fallback", got.CloseTime)
	}

	m.OpenTime = ""
	if _, err := m.ToModel(ev.ToModel("")); err == nil {
		t.Error("expected error for missing open_time")
	}
}

func TestAPICandlestickToModel(t *testing.T) {
	c := APICandlestick{
		EndPeriodTS: 1735693200,
		Volume:      null.IntFrom(10),
		YesBid:      &APIBookOHLC{Open: null.IntFrom(16), Close: null.IntFrom(16)},
	}

	raw := c.ToModel()

	if raw.EndPeriodTS != 1735693200 {
		t.Errorf("EndPeriodTS = %d, want %d", raw.EndPeriodTS, 1735693200)
	}
	if raw.Price != nil {
		t.Errorf("Price = %+v, want nil", raw.Price)
	}
	if raw.YesAsk != nil {
		t.Errorf("YesAsk = %+v, want nil", raw.YesAsk)
	}
	if raw.YesBid == nil || raw.YesBid.Open != null.IntFrom(16) || raw.YesBid.High.Valid {
		t.Errorf("YesBid = %+v", raw.YesBid)
	}
	if raw.OpenInterest.Valid {
		t.Errorf("OpenInterest = %v, want null", raw.OpenInterest)
	}
}
