package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/httpx"
	"github.com/salonpanel/salonpanel/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Upstreams are the base URLs of the services behind the gateway.
type Upstreams struct {
	Booking      string
	Notification string
}

type upstream struct {
	name  string
	url   *url.URL
	proxy *httputil.ReverseProxy
}

func newUpstream(name, raw string, transport http.RoundTripper, logger *slog.Logger) (*upstream, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s url must be absolute: %q", name, raw)
	}
	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.Transport = transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("upstream request failed", "upstream", name, "path", r.URL.Path, "err", err)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": name + " unavailable"})
	}
	return &upstream{name: name, url: u, proxy: proxy}, nil
}

// ready probes the upstream's /healthz.
func (u *upstream) ready(client *http.Client) runtime.ReadyCheck {
	target := u.url.JoinPath("/healthz").String()
	return runtime.ReadyCheck{Name: u.name, Check: func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}}
}

// newAPIRouter verifies the bearer token at the edge, applies the rate limit and forwards
// each route family to its service. The Authorization header is passed through untouched
// so services still derive the BusinessContext themselves.
func newAPIRouter(booking, notification *upstream, verifier *auth.Verifier, limit httpx.Middleware, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.RequireAuth(verifier, logger))
	if limit != nil {
		r.Use(limit)
	}

	r.Handle("/api/v1/slots", booking.proxy)
	r.Handle("/api/v1/calendar", booking.proxy)
	r.Handle("/api/v1/bookings", booking.proxy)
	r.Handle("/api/v1/bookings/*", booking.proxy)

	r.Handle("/api/v1/appointments/*", notification.proxy)
	r.Handle("/api/v1/sms-settings", notification.proxy)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, logger, failure.NotFound("route"))
	})
	return r
}

func buildHandler(up Upstreams, verifier *auth.Verifier, limit httpx.Middleware, logger *slog.Logger) (http.Handler, error) {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	booking, err := newUpstream("booking", up.Booking, transport, logger)
	if err != nil {
		return nil, err
	}
	notification, err := newUpstream("notification", up.Notification, transport, logger)
	if err != nil {
		return nil, err
	}

	probe := &http.Client{Transport: transport, Timeout: 2 * time.Second}
	mux := runtime.NewBaseMuxWithReady(booking.ready(probe), notification.ready(probe))
	mux.Handle("/api/", newAPIRouter(booking, notification, verifier, limit, logger))
	return mux, nil
}
