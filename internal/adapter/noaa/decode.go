package noaa

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
)

// flexFloat tolerates the provider serializing numeric fields either as JSON
// numbers or as quoted strings, which varies by endpoint.
type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Leave the field unset; the record-level decoder decides whether
		// that makes the record unusable.
		return nil
	}
	f.value = v
	f.valid = true
	return nil
}

// decodeStation parses one station-search record. Records missing any of
// id/latitude/longitude are unusable and reported as such.
func decodeStation(raw json.RawMessage) (domain.Station, bool) {
	var rec struct {
		ID        string    `json:"id"`
		Latitude  flexFloat `json:"latitude"`
		Longitude flexFloat `json:"longitude"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Station{}, false
	}
	if rec.ID == "" || !rec.Latitude.valid || !rec.Longitude.valid {
		return domain.Station{}, false
	}
	return domain.Station{
		ID:        rec.ID,
		Latitude:  rec.Latitude.value,
		Longitude: rec.Longitude.value,
	}, true
}

// decodeDailyRecord expands one daily-summaries record into per-variable
// observations. Absent keys mean the variable was not measured that day and
// produce no observation; they are never zero-filled.
func decodeDailyRecord(raw json.RawMessage, stationID string) []domain.DailyObservation {
	var rec map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil
	}

	dateRaw, ok := rec["DATE"]
	if !ok {
		return nil
	}
	var date string
	if err := json.Unmarshal(dateRaw, &date); err != nil {
		return nil
	}
	// The data endpoint may return timestamps; keep the date portion.
	if len(date) > len(domain.DateLayout) {
		date = date[:len(domain.DateLayout)]
	}

	var obs []domain.DailyObservation
	for _, v := range domain.Variables {
		valRaw, ok := rec[string(v)]
		if !ok {
			continue
		}
		var f flexFloat
		if err := f.UnmarshalJSON(valRaw); err != nil || !f.valid {
			continue
		}
		obs = append(obs, domain.DailyObservation{
			StationID: stationID,
			Date:      date,
			Variable:  v,
			Value:     f.value,
		})
	}
	return obs
}
