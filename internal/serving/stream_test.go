package serving

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vineetp6/serving/pkg/types"
)

// collector gathers callback deliveries for assertions.
type collector struct {
	mu    sync.Mutex
	resps []*types.PredictResponse
	errs  []error
}

func (c *collector) cb(resp *types.PredictResponse, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errs = append(c.errs, err)
		return
	}
	c.resps = append(c.resps, resp)
}

func TestStream_PinnedAcrossRetirement(t *testing.T) {
	c := newTestCore(Config{})
	mustPublish(t, c.Registry, "m", 1)

	var col collector
	sess, err := c.Router.OpenStream(types.ModelSpec{Name: "m"}, RunOptions{}, col.cb)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := sess.Servable(); got.Version != 1 {
		t.Fatalf("pinned to %v, want version 1", got)
	}

	// A newer publish and the old version's retirement do not redirect
	// the open session.
	mustPublish(t, c.Registry, "m", 2)
	if err := c.Registry.MarkRetiring("m", 1); err != nil {
		t.Fatalf("retire: %v", err)
	}

	if err := sess.SendChunk(context.Background(), &types.PredictRequest{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(col.resps))
	}
	if spec := col.resps[0].Spec; spec.Name != "m" || spec.Version != 1 {
		t.Fatalf("response spec %v, want m/1", spec)
	}
	if col.resps[0].Spec.SignatureName != defaultSignatureName {
		t.Fatalf("signature %q, want default", col.resps[0].Spec.SignatureName)
	}
}

func TestStream_HoldsReferenceUntilClose(t *testing.T) {
	c := newTestCore(Config{})
	mustPublish(t, c.Registry, "m", 1)
	sv, _ := c.Registry.Lookup("m", 1)

	sess, err := c.Router.OpenStream(types.ModelSpec{Name: "m"}, RunOptions{}, func(*types.PredictResponse, error) {})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := sv.inflight.Load(); n != 1 {
		t.Fatalf("inflight=%d after open, want 1", n)
	}
	if err := sess.SendChunk(context.Background(), &types.PredictRequest{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if n := sv.inflight.Load(); n != 1 {
		t.Fatalf("inflight=%d between chunks, want 1", n)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := sv.inflight.Load(); n != 0 {
		t.Fatalf("inflight=%d after close, want 0", n)
	}
}

func TestStream_CloseIdempotent(t *testing.T) {
	c := newTestCore(Config{})
	mustPublish(t, c.Registry, "m", 1)
	sv, _ := c.Registry.Lookup("m", 1)

	sess, err := c.Router.OpenStream(types.ModelSpec{Name: "m"}, RunOptions{}, func(*types.PredictResponse, error) {})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := sess.Close(); err != nil {
			t.Fatalf("close #%d: %v", i+1, err)
		}
	}
	if n := sv.inflight.Load(); n != 0 {
		t.Fatalf("inflight=%d after repeated close, want 0", n)
	}
	if err := sess.SendChunk(context.Background(), &types.PredictRequest{}); !IsInvalidArgument(err) {
		t.Fatalf("send after close: %v", err)
	}
}

func TestStream_FailureReleasesExactlyOnce(t *testing.T) {
	c := newTestCore(Config{})
	fe := mustPublish(t, c.Registry, "m", 1)
	sv, _ := c.Registry.Lookup("m", 1)
	fe.streamErr = errors.New("decode fault")

	var col collector
	sess, err := c.Router.OpenStream(types.ModelSpec{Name: "m"}, RunOptions{}, col.cb)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	serr := sess.SendChunk(context.Background(), &types.PredictRequest{})
	if !IsRuntime(serr) {
		t.Fatalf("expected RuntimeError, got %v", serr)
	}
	col.mu.Lock()
	if len(col.errs) != 1 || !errors.Is(col.errs[0], fe.streamErr) {
		t.Fatalf("terminal errors %v, want exactly one wrapping the engine error", col.errs)
	}
	col.mu.Unlock()

	// Closing after failure must not release twice.
	if err := sess.Close(); err != nil {
		t.Fatalf("close after failure: %v", err)
	}
	if n := sv.inflight.Load(); n != 0 {
		t.Fatalf("inflight=%d, want 0", n)
	}
	if err := sess.SendChunk(context.Background(), &types.PredictRequest{}); !IsInvalidArgument(err) {
		t.Fatalf("send after failure: %v", err)
	}
}

func TestStream_EncodingStampedOnResponses(t *testing.T) {
	c := newTestCore(Config{OutputEncoding: types.EncodingContent})
	fe := mustPublish(t, c.Registry, "m", 1)
	fe.streamN = 3

	var col collector
	sess, err := c.Router.OpenStream(types.ModelSpec{Name: "m"}, RunOptions{}, col.cb)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sess.Close()
	if err := sess.SendChunk(context.Background(), &types.PredictRequest{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.resps) != 3 {
		t.Fatalf("got %d responses, want 3", len(col.resps))
	}
	for i, resp := range col.resps {
		if resp.Encoding != types.EncodingContent {
			t.Fatalf("response %d encoding=%q, want content", i, resp.Encoding)
		}
	}
}

func TestStream_DeadlineMapsToDeadlineExceeded(t *testing.T) {
	c := newTestCore(Config{})
	fe := mustPublish(t, c.Registry, "m", 1)
	fe.blockCh = make(chan struct{})

	var col collector
	sess, err := c.Router.OpenStream(types.ModelSpec{Name: "m"}, RunOptions{Deadline: time.Now().Add(20 * time.Millisecond)}, col.cb)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := sess.SendChunk(context.Background(), &types.PredictRequest{}); !IsDeadlineExceeded(err) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestOpenStream_UnresolvedVersion(t *testing.T) {
	c := newTestCore(Config{})
	mustPublish(t, c.Registry, "m", 1)
	if _, err := c.Router.OpenStream(types.ModelSpec{Name: "m", Version: 7}, RunOptions{}, func(*types.PredictResponse, error) {}); !IsVersionNotAvailable(err) {
		t.Fatalf("expected VersionNotAvailable, got %v", err)
	}
}
