package validate

import (
	"net/http"
	"strings"
	"testing"

	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingBody struct {
	Date       string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string   `json:"start_time" validate:"required,wallclock"`
	ServiceIDs []string `json:"service_ids" validate:"required,min=1,dive,required"`
}

func TestDecode(t *testing.T) {
	var ok bookingBody
	require.NoError(t, Decode(strings.NewReader(`{"date":"2026-03-16","start_time":"14:00","service_ids":["a"]}`), &ok))

	cases := map[string]string{
		`{`: "failed to decode request body",
		`{"start_time":"14:00","service_ids":["a"]}`:                    "date is required",
		`{"date":"16.03.2026","start_time":"14:00","service_ids":["a"]}`: "date must match 2006-01-02",
		`{"date":"2026-03-16","start_time":"25:00","service_ids":["a"]}`: "start_time must be a time of day as HH:MM",
		`{"date":"2026-03-16","start_time":"14:00","service_ids":[]}`:    "service_ids must be at least 1",
	}
	for body, want := range cases {
		var b bookingBody
		err := Decode(strings.NewReader(body), &b)
		require.Error(t, err, body)
		assert.Equal(t, http.StatusBadRequest, failure.GetCode(err))
		assert.Contains(t, err.Error(), want)
	}
}

func TestVar(t *testing.T) {
	require.NoError(t, Var("date", "2026-03-16", "datetime=2006-01-02"))
	err := Var("date", "nope", "datetime=2006-01-02")
	require.Error(t, err)
	assert.Equal(t, "date must match 2006-01-02", err.Error())
}
