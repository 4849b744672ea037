package wallclock

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Minutes
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "17:30", want: 1050},
		{in: "00:00", want: 0},
		{in: "23:59:59", want: 1439},
		{in: " 8:05 ", want: 485},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddCarriesAndWraps(t *testing.T) {
	assert.Equal(t, "10:15", MustParse("09:45").Add(30).String())
	assert.Equal(t, "15:00", MustParse("14:00").Add(60).String())
	assert.Equal(t, "00:30", MustParse("23:30").Add(60).String())
	assert.Equal(t, "23:50", MustParse("00:10").Add(-20).String())
}

func TestOn(t *testing.T) {
	loc := time.FixedZone("TRT", 3*60*60)
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	got := MustParse("14:30").On(day, loc)
	assert.Equal(t, time.Date(2026, 3, 14, 14, 30, 0, 0, loc), got)
	assert.Equal(t, MustParse("14:30"), FromTime(got))
}

func TestJSON(t *testing.T) {
	var payload struct {
		Start Minutes `json:"start"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start":"10:30"}`), &payload))
	assert.Equal(t, Minutes(630), payload.Start)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"10:30"}`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"start":"25:00"}`), &payload))
}
