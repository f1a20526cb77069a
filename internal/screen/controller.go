package screen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-now/internal/client"
	"github.com/kjstillabower/weather-now/internal/location"
	"github.com/kjstillabower/weather-now/internal/models"
	"github.com/kjstillabower/weather-now/internal/observability"
)

// Trigger names what started a cycle, for logs and metrics.
type Trigger string

const (
	TriggerMount   Trigger = "mount"
	TriggerRefresh Trigger = "refresh"
	TriggerRetry   Trigger = "retry"
	TriggerFetch   Trigger = "fetch"
)

// every cycle shares one key: at most one authorize/locate/fetch pipeline runs at a time.
const cycleKey = "cycle"

// Controller drives the authorize → locate → fetch pipeline and owns the view state.
// Calls made while a cycle is in flight join that cycle and return its result.
type Controller struct {
	locator location.Service
	weather client.WeatherClient
	logger  *zap.Logger

	mu        sync.RWMutex
	state     State
	coord     *models.GeoCoordinate
	listeners []func(State)

	cycles singleflight.Group
}

// NewController returns a controller in the Loading state. Call Initialize once the screen is shown.
func NewController(locator location.Service, weather client.WeatherClient, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		locator: locator,
		weather: weather,
		logger:  logger,
		state:   Loading(),
	}
	observability.SetScreenState(int(PhaseLoading), false)
	return c
}

// State returns the current view state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// OnChange registers fn to be called after every state transition, outside the controller lock.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Coordinate returns the coordinate held from the last successful locate.
func (c *Controller) Coordinate() (models.GeoCoordinate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.coord == nil {
		return models.GeoCoordinate{}, false
	}
	return *c.coord, true
}

// Initialize runs a full cycle: authorization, one position fix, one weather fetch.
func (c *Controller) Initialize(ctx context.Context) State {
	return c.run(ctx, TriggerMount, nil, c.initialize)
}

// Fetch looks up weather for coord without touching authorization or location.
func (c *Controller) Fetch(ctx context.Context, coord models.GeoCoordinate) State {
	return c.run(ctx, TriggerFetch, nil, func(ctx context.Context, logger *zap.Logger) State {
		return c.fetch(ctx, coord, logger)
	})
}

// Refresh revalidates the displayed state. With a held coordinate it only re-fetches;
// otherwise it runs a full cycle.
func (c *Controller) Refresh(ctx context.Context) State {
	begin := func(s State) State { return s.WithRefreshing(true) }
	return c.run(ctx, TriggerRefresh, begin, func(ctx context.Context, logger *zap.Logger) State {
		if coord, ok := c.Coordinate(); ok {
			return c.fetch(ctx, coord, logger)
		}
		return c.initialize(ctx, logger)
	})
}

// Retry re-enters Loading and runs a full cycle. It only acts in the Error state;
// otherwise the current state is returned unchanged.
func (c *Controller) Retry(ctx context.Context) State {
	if c.State().Phase() != PhaseError {
		return c.State()
	}
	begin := func(s State) State {
		if s.Phase() == PhaseError {
			return Loading()
		}
		return s
	}
	return c.run(ctx, TriggerRetry, begin, c.initialize)
}

func (c *Controller) run(ctx context.Context, trigger Trigger, begin func(State) State, work func(context.Context, *zap.Logger) State) State {
	leader := false
	v, _, _ := c.cycles.Do(cycleKey, func() (interface{}, error) {
		leader = true
		cycleID := uuid.NewString()
		if observability.CorrelationID(ctx) == "" {
			ctx = observability.WithCorrelationID(ctx, cycleID)
		}
		logger := c.logger.With(zap.String("cycle_id", cycleID), zap.String("trigger", string(trigger)))

		if begin != nil {
			c.update(begin)
		}
		logger.Debug("cycle started")

		start := time.Now()
		final := work(ctx, logger)

		outcome := final.Phase().String()
		if f, ok := final.Failure(); ok {
			outcome = f.Kind.String()
		}
		observability.ScreenCyclesTotal.WithLabelValues(string(trigger), outcome).Inc()
		logger.Info("cycle finished", zap.String("outcome", outcome), zap.Duration("duration", time.Since(start)))
		return final, nil
	})
	if !leader {
		observability.ScreenCycleJoinsTotal.Inc()
		c.logger.Debug("joined in-flight cycle", zap.String("trigger", string(trigger)))
	}
	return v.(State)
}

func (c *Controller) initialize(ctx context.Context, logger *zap.Logger) State {
	auth, err := c.locator.RequestAuthorization(ctx)
	if err != nil || auth != location.AuthorizationGranted {
		logger.Warn("location permission denied", zap.Error(err))
		c.forgetCoordinate()
		return c.finish(Failed(permissionDenied(err)))
	}

	coord, err := c.locator.CurrentPosition(ctx)
	if err != nil {
		logger.Warn("location unavailable", zap.Error(err))
		c.forgetCoordinate()
		return c.finish(Failed(locationUnavailable(err)))
	}
	c.holdCoordinate(coord)

	return c.fetch(ctx, coord, logger)
}

func (c *Controller) fetch(ctx context.Context, coord models.GeoCoordinate, logger *zap.Logger) State {
	snapshot, err := c.weather.GetCurrentWeather(ctx, coord)
	if err == nil {
		logger.Debug("weather fetched", zap.String("place", snapshot.Place), zap.Float64("temperature", snapshot.Temperature))
		return c.finish(Ready(snapshot))
	}

	logger.Warn("weather fetch failed", zap.Error(err), zap.String("category", string(client.CategorizeError(err))))
	var upstream *client.UpstreamError
	if errors.As(err, &upstream) {
		return c.finish(Failed(upstreamFailure(upstream.Message, err)))
	}
	return c.finish(Failed(fetchFailed(err)))
}

// finish replaces the displayed state wholesale; the new state never carries the refreshing overlay.
func (c *Controller) finish(next State) State {
	next = next.WithRefreshing(false)
	c.update(func(State) State { return next })
	return next
}

func (c *Controller) update(fn func(State) State) {
	c.mu.Lock()
	c.state = fn(c.state)
	state := c.state
	listeners := make([]func(State), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	observability.SetScreenState(int(state.Phase()), state.Refreshing())
	for _, fn := range listeners {
		fn(state)
	}
}

func (c *Controller) holdCoordinate(coord models.GeoCoordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coord = &coord
}

func (c *Controller) forgetCoordinate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coord = nil
}
