package serving

import (
	"context"
	"errors"
	"sync"

	"github.com/vineetp6/serving/pkg/types"
)

// defaultSignatureName is used when a streamed request omits the graph
// signature.
const defaultSignatureName = "serving_default"

type sessionState int

const (
	sessionOpen sessionState = iota
	sessionAwaitingChunk
	sessionCompleted
	sessionFailed
)

// SessionCallback receives streamed responses and, on failure, exactly
// one terminal error. It is the session's only output channel.
type SessionCallback func(resp *types.PredictResponse, err error)

// Session is one open streaming-predict exchange. It is pinned to the
// servable resolved at open time: later publishes or retirements of the
// same name never redirect it. The session holds one in-flight reference
// from open until the first of Close or failure, released exactly once.
//
// Chunks are sent by a single producer; responses reach the single
// consumer through the callback only.
type Session struct {
	mu    sync.Mutex
	state sessionState

	rt   *Router
	sv   *servable
	opts RunOptions
	cb   SessionCallback

	releaseOnce sync.Once
}

// OpenStream resolves (name, version) exactly once and opens a streaming
// session against the resolved servable.
func (rt *Router) OpenStream(spec types.ModelSpec, opts RunOptions, cb SessionCallback) (*Session, error) {
	sv, err := rt.reg.Resolve(spec.Name, spec.Version)
	if err != nil {
		routesTotal.WithLabelValues(spec.Name, "predict_streamed", "unresolved").Inc()
		return nil, err
	}
	if opts.OutputEncoding == "" {
		opts.OutputEncoding = rt.encoding
	}
	rt.openStreams.Add(1)
	openStreamsGauge.Inc()
	rt.events.Publish(Event{Name: "stream_open", Model: sv.id.Name, Version: sv.id.Version})
	return &Session{
		rt:   rt,
		sv:   sv,
		opts: opts,
		cb:   cb,
	}, nil
}

// SendChunk forwards one request chunk to the pinned servable's streaming
// operation. The engine may invoke the callback zero or more times before
// SendChunk returns. An engine failure moves the session to the failed
// state, delivers the terminal error through the callback, and releases
// the in-flight reference; subsequent chunks are rejected.
func (s *Session) SendChunk(ctx context.Context, req *types.PredictRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case sessionCompleted:
		return ErrInvalidArgument("stream %s: session closed", s.sv.id)
	case sessionFailed:
		return ErrInvalidArgument("stream %s: session failed", s.sv.id)
	}
	s.state = sessionAwaitingChunk

	spec := req.Spec
	spec.Name = s.sv.id.Name
	spec.Version = s.sv.id.Version
	if spec.SignatureName == "" {
		spec.SignatureName = defaultSignatureName
	}

	cctx, cancel := s.opts.context(ctx)
	defer cancel()
	err := s.sv.engine.PredictStreamed(cctx, s.opts, req, func(resp *types.PredictResponse) {
		resp.Spec = spec
		// The configured encoding applies on the streamed path the same
		// as on unary predict.
		if resp.Encoding == "" {
			resp.Encoding = s.opts.OutputEncoding
		}
		s.cb(resp, nil)
	})
	if err != nil {
		s.state = sessionFailed
		terr := err
		if errors.Is(err, context.DeadlineExceeded) {
			terr = ErrDeadlineExceeded(s.sv.id)
		} else {
			terr = ErrRuntime(s.sv.id, err)
		}
		s.release("failed")
		s.cb(nil, terr)
		routesTotal.WithLabelValues(s.sv.id.Name, "predict_streamed", "error").Inc()
		return terr
	}
	s.sv.callsTotal.Add(1)
	s.sv.touch()
	routesTotal.WithLabelValues(s.sv.id.Name, "predict_streamed", "ok").Inc()
	return nil
}

// Close completes the session and releases the pinned reference.
// Idempotent: closing an already-closed or failed session is a no-op,
// and the reference is never released twice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == sessionCompleted || s.state == sessionFailed {
		return nil
	}
	s.state = sessionCompleted
	s.release("closed")
	return nil
}

// release must be called with s.mu held, or from a path that already
// owns the terminal transition.
func (s *Session) release(reason string) {
	s.releaseOnce.Do(func() {
		s.sv.release()
		s.rt.openStreams.Add(-1)
		openStreamsGauge.Dec()
		s.rt.events.Publish(Event{
			Name:    "stream_" + reason,
			Model:   s.sv.id.Name,
			Version: s.sv.id.Version,
		})
	})
}

// Servable reports the identity the session is pinned to.
func (s *Session) Servable() ServableID { return s.sv.id }
