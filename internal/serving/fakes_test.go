package serving

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/vineetp6/serving/pkg/types"
)

// fakeEngine counts invocations and can be told to fail, block, or emit
// streamed responses.
type fakeEngine struct {
	calls atomic.Int64

	err       error
	blockCh   chan struct{} // if set, unary calls wait for it (or ctx)
	streamN   int           // responses emitted per streamed chunk
	streamErr error
}

func (f *fakeEngine) wait(ctx context.Context) error {
	if f.blockCh == nil {
		return ctx.Err()
	}
	select {
	case <-f.blockCh:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeEngine) Classify(ctx context.Context, opts RunOptions, req *types.ClassifyRequest) (*types.ClassifyResponse, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.ClassifyResponse{Spec: req.Spec}, nil
}

func (f *fakeEngine) Regress(ctx context.Context, opts RunOptions, req *types.RegressRequest) (*types.RegressResponse, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.RegressResponse{Spec: req.Spec, Values: make([]float64, len(req.Examples))}, nil
}

func (f *fakeEngine) Predict(ctx context.Context, opts RunOptions, req *types.PredictRequest) (*types.PredictResponse, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.PredictResponse{Spec: req.Spec, Outputs: req.Inputs, Encoding: opts.OutputEncoding}, nil
}

func (f *fakeEngine) PredictStreamed(ctx context.Context, opts RunOptions, req *types.PredictRequest, emit StreamCallback) error {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return err
	}
	if f.streamErr != nil {
		return f.streamErr
	}
	n := f.streamN
	if n == 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		emit(&types.PredictResponse{Outputs: req.Inputs})
	}
	return nil
}

func (f *fakeEngine) MultiInference(ctx context.Context, opts RunOptions, req *types.MultiInferenceRequest) (*types.MultiInferenceResponse, error) {
	f.calls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.MultiInferenceResponse{Results: make([]types.InferenceResult, len(req.Tasks))}, nil
}

func (f *fakeEngine) Metadata(ctx context.Context, req *types.MetadataRequest) (*types.ModelMetadata, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &types.ModelMetadata{Signatures: map[string]types.SignatureDef{"serving_default": {}}}, nil
}

// fakeLoader hands out fakeEngines and counts unloads.
type fakeLoader struct {
	loadErr error
	loads   atomic.Int64
	unloads atomic.Int64
}

func (l *fakeLoader) Load(ctx context.Context, name string, version int64, path string, opts LoadOptions) (Engine, error) {
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	l.loads.Add(1)
	return &fakeEngine{}, nil
}

func (l *fakeLoader) Unload(engine Engine) error {
	if _, ok := engine.(*fakeEngine); !ok {
		return errors.New("unexpected engine type")
	}
	l.unloads.Add(1)
	return nil
}

// newTestCore builds a core with fast drain polling for tests.
func newTestCore(cfg Config) *Core {
	if cfg.DrainPoll == 0 {
		cfg.DrainPoll = time.Millisecond
	}
	return NewWithConfig(cfg)
}

// mustPublish inserts a fakeEngine directly into the registry.
func mustPublish(t interface{ Fatalf(string, ...any) }, reg *Registry, name string, version int64) *fakeEngine {
	fe := &fakeEngine{}
	if _, err := reg.Publish(ServableID{Name: name, Version: version}, fe); err != nil {
		t.Fatalf("publish %s/%d: %v", name, version, err)
	}
	return fe
}
