package serving

import (
	"context"
	"time"

	"github.com/vineetp6/serving/pkg/types"
)

// Coordinator sequences publish, retire and unload so that a retiring
// version finishes its in-flight work before its resources are released,
// and no new request can be routed to it once retirement is recorded.
type Coordinator struct {
	reg          *Registry
	loader       Loader
	events       EventPublisher
	encoding     types.TensorEncoding
	drainTimeout time.Duration
	drainPoll    time.Duration
}

// Load loads the model at src and publishes it as an available servable.
// The registry entry appears fully available or not at all; versions
// displaced by the retain policy are drained in the background.
func (c *Coordinator) Load(ctx context.Context, src types.ModelSource) error {
	engine, err := c.loader.Load(ctx, src.Name, src.Version, src.Path, LoadOptions{
		OutputEncoding: c.encoding,
	})
	if err != nil {
		return err
	}
	id := ServableID{Name: src.Name, Version: src.Version}
	retired, err := c.reg.Publish(id, engine)
	if err != nil {
		// Publish refused the handle; hand it straight back.
		_ = c.loader.Unload(engine)
		return err
	}
	lifecycleTotal.WithLabelValues("publish").Inc()
	c.events.Publish(Event{Name: "publish", Model: id.Name, Version: id.Version, Fields: map[string]any{"path": src.Path}})
	for _, sv := range retired {
		lifecycleTotal.WithLabelValues("retire").Inc()
		c.events.Publish(Event{Name: "retire", Model: sv.id.Name, Version: sv.id.Version, Fields: map[string]any{"reason": "retain_policy"}})
		go c.drainAndUnload(sv.id)
	}
	return nil
}

// Unload retires (name, version), waits for its in-flight calls to drain,
// then drops the entry and releases the engine. Returns StillInUse if the
// drain timeout expires first; the version stays retiring and a later
// Unload may finish the job.
func (c *Coordinator) Unload(name string, version int64) error {
	sv, ok := c.reg.Lookup(name, version)
	if !ok {
		return c.reg.lookupErr(name, version)
	}
	if err := c.reg.MarkRetiring(name, version); err != nil {
		return err
	}
	lifecycleTotal.WithLabelValues("retire").Inc()
	c.events.Publish(Event{Name: "retire", Model: name, Version: version, Fields: map[string]any{"reason": "unload"}})

	deadline := time.Now().Add(c.drainTimeout)
	for sv.inflight.Load() > 0 {
		if time.Now().After(deadline) {
			c.events.Publish(Event{Name: "unload_timeout", Model: name, Version: version, Fields: map[string]any{"inflight": sv.inflight.Load()}})
			return ErrStillInUse(sv.id, sv.inflight.Load())
		}
		time.Sleep(c.drainPoll)
	}
	return c.finishUnload(sv)
}

// ForceUnload skips the drain wait. It still refuses to break the
// ordering: a servable with in-flight calls reports StillInUse.
func (c *Coordinator) ForceUnload(name string, version int64) error {
	sv, ok := c.reg.Lookup(name, version)
	if !ok {
		return c.reg.lookupErr(name, version)
	}
	if n := sv.inflight.Load(); n > 0 {
		return ErrStillInUse(sv.id, n)
	}
	if err := c.reg.MarkRetiring(name, version); err != nil {
		return err
	}
	return c.finishUnload(sv)
}

// DrainAll gracefully unloads every servable, oldest first. Used on
// shutdown; errors are reported through events and the last one returned.
func (c *Coordinator) DrainAll() error {
	var last error
	for _, mv := range c.reg.Models() {
		for _, v := range mv.Versions {
			if v.State == string(StateUnloaded) {
				continue
			}
			if err := c.Unload(mv.Name, v.Version); err != nil {
				c.events.Publish(Event{Name: "drain_error", Model: mv.Name, Version: v.Version, Fields: map[string]any{"error": err.Error()}})
				last = err
			}
		}
	}
	return last
}

// drainAndUnload backs the retain policy: poll until the displaced
// version is idle, then unload it. Streaming sessions pinned to the
// version keep it alive past the timeout; the poll keeps going because
// nothing new can be routed to a retiring entry.
func (c *Coordinator) drainAndUnload(id ServableID) {
	sv, ok := c.reg.Lookup(id.Name, id.Version)
	if !ok {
		return
	}
	for sv.inflight.Load() > 0 {
		time.Sleep(c.drainPoll)
	}
	_ = c.finishUnload(sv)
}

func (c *Coordinator) finishUnload(sv *servable) error {
	if err := c.reg.MarkUnloaded(sv.id.Name, sv.id.Version); err != nil {
		return err
	}
	if c.loader != nil {
		if err := c.loader.Unload(sv.engine); err != nil {
			c.events.Publish(Event{Name: "unload_error", Model: sv.id.Name, Version: sv.id.Version, Fields: map[string]any{"error": err.Error()}})
		}
	}
	lifecycleTotal.WithLabelValues("unload").Inc()
	c.events.Publish(Event{Name: "unload", Model: sv.id.Name, Version: sv.id.Version})
	return nil
}
