package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/kws-go/internal/datastore"
	"github.com/tphakala/kws-go/internal/logger"
	"github.com/tphakala/kws-go/internal/myaudio"
	metricspkg "github.com/tphakala/kws-go/internal/observability/metrics"
	"github.com/tphakala/kws-go/internal/pipeline"
)

// StateProvider returns the latest pipeline state.
type StateProvider interface {
	State() pipeline.State
}

// RingProvider returns capture ring statistics.
type RingProvider interface {
	Stats() myaudio.RingStats
}

// Endpoint serves /metrics and the JSON API.
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	metrics       *Metrics
	state         StateProvider
	ring          RingProvider
	history       datastore.Interface
}

// StateResponse is returned by /api/v1/state.
type StateResponse struct {
	pipeline.State
	Ring *myaudio.RingStats `json:"ring,omitempty"`
}

// NewEndpoint builds the HTTP endpoint. ring and history may be nil.
func NewEndpoint(listen string, m *Metrics, state StateProvider, ring RingProvider, history datastore.Interface) *Endpoint {
	e := &Endpoint{
		echo:          echo.New(),
		listenAddress: listen,
		metrics:       m,
		state:         state,
		ring:          ring,
		history:       history,
	}
	e.echo.HideBanner = true
	e.echo.HidePort = true
	e.echo.Logger = logger.NewEchoAdapter(GetLogger().Module("echo"))

	e.echo.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.echo.GET("/healthz", e.health)

	api := e.echo.Group("/api/v1")
	api.GET("/state", e.getState)
	api.GET("/detections", e.getDetections)
	api.GET("/detections/summary", e.getSummary)
	api.GET("/system", e.getSystem)

	return e
}

// Handler returns the router, mainly for tests.
func (e *Endpoint) Handler() http.Handler {
	return e.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (e *Endpoint) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		GetLogger().Info("metrics endpoint starting", logger.String("address", e.listenAddress))
		if err := e.echo.Start(e.listenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	GetLogger().Info("stopping metrics endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.echo.Shutdown(shutdownCtx); err != nil {
		GetLogger().Error("metrics endpoint shutdown error", logger.Error(err))
		return err
	}
	<-errCh
	return nil
}

func (e *Endpoint) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (e *Endpoint) getState(c echo.Context) error {
	if e.state == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "pipeline not running")
	}
	resp := StateResponse{State: e.state.State()}
	if e.ring != nil {
		stats := e.ring.Stats()
		resp.Ring = &stats
	}
	return c.JSON(http.StatusOK, resp)
}

func (e *Endpoint) getDetections(c echo.Context) error {
	if e.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "detection store disabled")
	}

	opts := datastore.ListOptions{Label: c.QueryParam("label")}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		opts.Limit = limit
	}
	if v := c.QueryParam("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC3339")
		}
		opts.Since = since
	}

	rows, err := e.history.List(c.Request().Context(), opts)
	if err != nil {
		GetLogger().Error("listing detections failed", logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list detections")
	}
	return c.JSON(http.StatusOK, rows)
}

func (e *Endpoint) getSummary(c echo.Context) error {
	if e.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "detection store disabled")
	}
	rows, err := e.history.Summary(c.Request().Context())
	if err != nil {
		GetLogger().Error("detection summary failed", logger.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to summarize detections")
	}
	return c.JSON(http.StatusOK, rows)
}

func (e *Endpoint) getSystem(c echo.Context) error {
	return c.JSON(http.StatusOK, CollectSystemInfo())
}
