package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"AgriCast/pkg/util"
)

// Timestamp accepts RFC3339 strings, plain dates and unix seconds on input
// and always renders RFC3339 on output.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			s = strconv.FormatInt(int64(f), 10)
		}
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, ok := util.ParseTime(s)
	if !ok {
		return fmt.Errorf("invalid timestamp %q", s)
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// TimeSeriesPoint is one chronological observation fed to anomaly detection.
type TimeSeriesPoint struct {
	Timestamp  Timestamp `json:"timestamp"`
	Value      float64   `json:"value"`
	Change     float64   `json:"change"`
	Volatility float64   `json:"volatility"`
}

// ClimateRecord is one daily climate observation. Absent fields stay nil so
// callers can tell missing readings from zero readings.
type ClimateRecord struct {
	Date           Timestamp `json:"date"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Precipitation  *float64  `json:"precipitation,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`
	SolarRadiation *float64  `json:"solar_radiation,omitempty"`
	GDD            *float64  `json:"gdd,omitempty"`
	SoilMoisture   *float64  `json:"soil_moisture,omitempty"`
}

// Complete reports whether the record carries both temperature and precipitation.
func (r ClimateRecord) Complete() bool {
	return r.Temperature != nil && r.Precipitation != nil
}
