package serving

import (
	"context"
	"time"

	"github.com/vineetp6/serving/pkg/types"
)

// RunOptions is per-call configuration. Passed by value on every call and
// never stored. A zero Deadline means no deadline; the deadline is
// advisory to the engine, which is responsible for honoring it.
type RunOptions struct {
	Deadline       time.Time
	ValidateInputs bool
	// OutputEncoding selects the tensor representation for responses.
	// Applied uniformly to unary and streamed predict paths.
	OutputEncoding types.TensorEncoding
}

// context returns ctx bounded by the RunOptions deadline, if any.
func (o RunOptions) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Deadline.IsZero() {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, o.Deadline)
}

// StreamCallback receives streamed predict responses. The engine may
// invoke it zero or more times per request chunk, at its own cadence.
type StreamCallback func(*types.PredictResponse)

// Engine is the execution engine behind one servable. Implementations run
// the loaded model graph; the core never interprets their failures beyond
// wrapping them for the caller.
type Engine interface {
	Classify(ctx context.Context, opts RunOptions, req *types.ClassifyRequest) (*types.ClassifyResponse, error)
	Regress(ctx context.Context, opts RunOptions, req *types.RegressRequest) (*types.RegressResponse, error)
	Predict(ctx context.Context, opts RunOptions, req *types.PredictRequest) (*types.PredictResponse, error)
	// PredictStreamed runs one request chunk; responses flow only through
	// emit. There is no buffered return value.
	PredictStreamed(ctx context.Context, opts RunOptions, req *types.PredictRequest, emit StreamCallback) error
	MultiInference(ctx context.Context, opts RunOptions, req *types.MultiInferenceRequest) (*types.MultiInferenceResponse, error)
	Metadata(ctx context.Context, req *types.MetadataRequest) (*types.ModelMetadata, error)
}

// LoadOptions configures a single load.
type LoadOptions struct {
	OutputEncoding types.TensorEncoding
}

// Loader produces and releases engines. The on-disk model format is the
// loader's concern; the core only moves the returned handle through the
// servable lifecycle.
type Loader interface {
	Load(ctx context.Context, name string, version int64, path string, opts LoadOptions) (Engine, error)
	Unload(engine Engine) error
}
