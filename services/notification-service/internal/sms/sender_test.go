package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/salonpanel/salonpanel/libs/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSender(t *testing.T) {
	var got map[string]string
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"msg-1"}`))
	}))
	defer srv.Close()

	id, err := NewWebhookSender(srv.URL, "tok").Send(context.Background(), "+905551112233", "merhaba")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "Bearer tok", authHeader)
	assert.Equal(t, map[string]string{"to": "+905551112233", "body": "merhaba"}, got)
}

func TestWebhookSenderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("carrier down\n"))
	}))
	defer srv.Close()

	_, err := NewWebhookSender(srv.URL, "").Send(context.Background(), "x", "y")
	require.Error(t, err)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadGateway, perr.Status)
	assert.Equal(t, "sms-webhook returned 502: carrier down", err.Error())
}

func TestWebhookSenderForwardsRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(runtime.RequestIDHeader)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ctx := runtime.WithRequestID(context.Background(), "req-42")
	id, err := NewWebhookSender(srv.URL, "").Send(ctx, "+905551112233", "hi")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, "req-42", seen)
}

func TestNew(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "sms-noop", s.ProviderID())

	s, err = New(Config{Provider: "Twilio", TwilioSID: "AC1", TwilioToken: "t", TwilioFrom: "+1555"})
	require.NoError(t, err)
	assert.Equal(t, "twilio", s.ProviderID())

	_, err = New(Config{Provider: "twilio", TwilioSID: "AC1"})
	assert.EqualError(t, err, "twilio provider missing auth token, from number")
	_, err = New(Config{Provider: "webhook"})
	assert.Error(t, err)
	_, err = New(Config{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestASCII(t *testing.T) {
	assert.Equal(t, "IiSsGgUuOoCc", ASCII("İıŞşĞğÜüÖöÇç"))
	assert.Equal(t, "cafe naive", ASCII("café naïve"))
	assert.Equal(t, "Sayin Musteri", ASCII("Sayın Müşteri"))
}
