package serving

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/vineetp6/serving/pkg/types"
)

// Operation tags the unary operations the router can dispatch. The set is
// closed; streamed predict has its own entry point (OpenStream).
type Operation string

const (
	OpClassify       Operation = "classify"
	OpRegress        Operation = "regress"
	OpPredict        Operation = "predict"
	OpMultiInference Operation = "multi_inference"
	OpMetadata       Operation = "metadata"
)

// Router resolves incoming requests to one loaded servable and dispatches
// the requested operation with scoped in-flight accounting.
type Router struct {
	reg      *Registry
	events   EventPublisher
	encoding types.TensorEncoding

	openStreams atomic.Int64
}

type dispatchFunc func(ctx context.Context, sv *servable, opts RunOptions, payload any) (any, error)

// dispatch is the fixed operation table. Tags outside it fail with
// UnsupportedOperation before any resolution happens.
var dispatch = map[Operation]dispatchFunc{
	OpClassify: func(ctx context.Context, sv *servable, opts RunOptions, payload any) (any, error) {
		req, ok := payload.(*types.ClassifyRequest)
		if !ok {
			return nil, ErrInvalidArgument("classify: unexpected payload type %T", payload)
		}
		return sv.engine.Classify(ctx, opts, req)
	},
	OpRegress: func(ctx context.Context, sv *servable, opts RunOptions, payload any) (any, error) {
		req, ok := payload.(*types.RegressRequest)
		if !ok {
			return nil, ErrInvalidArgument("regress: unexpected payload type %T", payload)
		}
		return sv.engine.Regress(ctx, opts, req)
	},
	OpPredict: func(ctx context.Context, sv *servable, opts RunOptions, payload any) (any, error) {
		req, ok := payload.(*types.PredictRequest)
		if !ok {
			return nil, ErrInvalidArgument("predict: unexpected payload type %T", payload)
		}
		return sv.engine.Predict(ctx, opts, req)
	},
	OpMultiInference: func(ctx context.Context, sv *servable, opts RunOptions, payload any) (any, error) {
		req, ok := payload.(*types.MultiInferenceRequest)
		if !ok {
			return nil, ErrInvalidArgument("multi_inference: unexpected payload type %T", payload)
		}
		return sv.engine.MultiInference(ctx, opts, req)
	},
	OpMetadata: func(ctx context.Context, sv *servable, opts RunOptions, payload any) (any, error) {
		req, ok := payload.(*types.MetadataRequest)
		if !ok {
			return nil, ErrInvalidArgument("metadata: unexpected payload type %T", payload)
		}
		for _, field := range req.MetadataFields {
			if field != types.MetadataFieldSignatureDef {
				return nil, ErrInvalidArgument("metadata field %s is not supported", field)
			}
		}
		md, err := sv.engine.Metadata(ctx, req)
		if err != nil {
			return nil, err
		}
		md.Spec.Name = sv.id.Name
		md.Spec.Version = sv.id.Version
		return md, nil
	},
}

// Route resolves (name, version) per the selection policy and invokes the
// requested operation on the resolved servable. The in-flight reference
// is held for exactly the duration of the engine call; every return path
// releases it. Resolution failures touch no counter and never reach the
// engine.
func (rt *Router) Route(ctx context.Context, spec types.ModelSpec, op Operation, payload any, opts RunOptions) (any, error) {
	fn, ok := dispatch[op]
	if !ok {
		return nil, ErrUnsupportedOperation(op)
	}
	sv, err := rt.reg.Resolve(spec.Name, spec.Version)
	if err != nil {
		routesTotal.WithLabelValues(spec.Name, string(op), "unresolved").Inc()
		return nil, err
	}
	defer sv.release()

	if opts.OutputEncoding == "" {
		opts.OutputEncoding = rt.encoding
	}
	cctx, cancel := opts.context(ctx)
	defer cancel()

	start := time.Now()
	res, err := fn(cctx, sv, opts, payload)
	routeDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	if err != nil {
		if IsInvalidArgument(err) {
			routesTotal.WithLabelValues(sv.id.Name, string(op), "invalid").Inc()
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			routesTotal.WithLabelValues(sv.id.Name, string(op), "deadline").Inc()
			return nil, ErrDeadlineExceeded(sv.id)
		}
		routesTotal.WithLabelValues(sv.id.Name, string(op), "error").Inc()
		return nil, ErrRuntime(sv.id, err)
	}
	sv.callsTotal.Add(1)
	sv.touch()
	routesTotal.WithLabelValues(sv.id.Name, string(op), "ok").Inc()
	return res, nil
}

// Classify routes a classification request.
func (rt *Router) Classify(ctx context.Context, req *types.ClassifyRequest, opts RunOptions) (*types.ClassifyResponse, error) {
	res, err := rt.Route(ctx, req.Spec, OpClassify, req, opts)
	if err != nil {
		return nil, err
	}
	return res.(*types.ClassifyResponse), nil
}

// Regress routes a regression request.
func (rt *Router) Regress(ctx context.Context, req *types.RegressRequest, opts RunOptions) (*types.RegressResponse, error) {
	res, err := rt.Route(ctx, req.Spec, OpRegress, req, opts)
	if err != nil {
		return nil, err
	}
	return res.(*types.RegressResponse), nil
}

// Predict routes a unary predict request.
func (rt *Router) Predict(ctx context.Context, req *types.PredictRequest, opts RunOptions) (*types.PredictResponse, error) {
	res, err := rt.Route(ctx, req.Spec, OpPredict, req, opts)
	if err != nil {
		return nil, err
	}
	return res.(*types.PredictResponse), nil
}

// MultiInference routes a multi-task inference request.
func (rt *Router) MultiInference(ctx context.Context, req *types.MultiInferenceRequest, opts RunOptions) (*types.MultiInferenceResponse, error) {
	res, err := rt.Route(ctx, req.Spec, OpMultiInference, req, opts)
	if err != nil {
		return nil, err
	}
	return res.(*types.MultiInferenceResponse), nil
}

// Metadata routes a model-metadata request.
func (rt *Router) Metadata(ctx context.Context, req *types.MetadataRequest, opts RunOptions) (*types.ModelMetadata, error) {
	res, err := rt.Route(ctx, req.Spec, OpMetadata, req, opts)
	if err != nil {
		return nil, err
	}
	return res.(*types.ModelMetadata), nil
}
