package serving

import (
	"context"
	"time"

	"github.com/vineetp6/serving/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultDrainTimeout = 30 * time.Second
	defaultDrainPoll    = 10 * time.Millisecond
	defaultEncoding     = types.EncodingValues
)

// Config encapsulates all tunables for core construction.
type Config struct {
	// Loader produces engines for Coordinator.Load; required for any
	// lifecycle use, the request path never touches it.
	Loader Loader
	// RetainVersions caps available versions per name; 0 = unlimited.
	RetainVersions int
	// DrainTimeout bounds how long a graceful unload waits for in-flight
	// calls before giving up with StillInUse.
	DrainTimeout time.Duration
	// DrainPoll is the in-flight poll interval during drain.
	DrainPoll time.Duration
	// OutputEncoding is the default tensor encoding for responses when a
	// call does not set one.
	OutputEncoding types.TensorEncoding
	// Events receives lifecycle events; nil installs a no-op publisher.
	Events EventPublisher
}

// Core bundles the registry, router and lifecycle coordinator built from
// one Config. All three share the same registry instance.
type Core struct {
	Registry    *Registry
	Router      *Router
	Coordinator *Coordinator

	startTime time.Time
}

// NewWithConfig constructs the routing and lifecycle core from Config.
func NewWithConfig(cfg Config) *Core {
	if cfg.Events == nil {
		cfg.Events = noopPublisher{}
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.DrainPoll <= 0 {
		cfg.DrainPoll = defaultDrainPoll
	}
	if cfg.OutputEncoding == "" {
		cfg.OutputEncoding = defaultEncoding
	}
	reg := newRegistry(cfg.RetainVersions)
	rt := &Router{
		reg:      reg,
		events:   cfg.Events,
		encoding: cfg.OutputEncoding,
	}
	co := &Coordinator{
		reg:          reg,
		loader:       cfg.Loader,
		events:       cfg.Events,
		encoding:     cfg.OutputEncoding,
		drainTimeout: cfg.DrainTimeout,
		drainPoll:    cfg.DrainPoll,
	}
	return &Core{
		Registry:    reg,
		Router:      rt,
		Coordinator: co,
		startTime:   time.Now(),
	}
}

// Passthroughs so callers can hold one value for routing and lifecycle.

func (c *Core) Classify(ctx context.Context, req *types.ClassifyRequest, opts RunOptions) (*types.ClassifyResponse, error) {
	return c.Router.Classify(ctx, req, opts)
}

func (c *Core) Regress(ctx context.Context, req *types.RegressRequest, opts RunOptions) (*types.RegressResponse, error) {
	return c.Router.Regress(ctx, req, opts)
}

func (c *Core) Predict(ctx context.Context, req *types.PredictRequest, opts RunOptions) (*types.PredictResponse, error) {
	return c.Router.Predict(ctx, req, opts)
}

func (c *Core) MultiInference(ctx context.Context, req *types.MultiInferenceRequest, opts RunOptions) (*types.MultiInferenceResponse, error) {
	return c.Router.MultiInference(ctx, req, opts)
}

func (c *Core) Metadata(ctx context.Context, req *types.MetadataRequest, opts RunOptions) (*types.ModelMetadata, error) {
	return c.Router.Metadata(ctx, req, opts)
}

func (c *Core) OpenStream(spec types.ModelSpec, opts RunOptions, cb SessionCallback) (*Session, error) {
	return c.Router.OpenStream(spec, opts, cb)
}

func (c *Core) Load(ctx context.Context, src types.ModelSource) error {
	return c.Coordinator.Load(ctx, src)
}

func (c *Core) Unload(name string, version int64) error {
	return c.Coordinator.Unload(name, version)
}

func (c *Core) ForceUnload(name string, version int64) error {
	return c.Coordinator.ForceUnload(name, version)
}
