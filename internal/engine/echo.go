// Package engine provides the built-in reference execution engine and its
// loader. The echo engine implements deterministic stand-in semantics
// (identity predict, half-plus-two regression) so the serving core can be
// exercised end to end without a real model runtime.
package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"sync/atomic"

	"github.com/vineetp6/serving/internal/common/fsutil"
	"github.com/vineetp6/serving/internal/serving"
	"github.com/vineetp6/serving/pkg/types"
)

// Echo is a deterministic engine bound to one (name, version) pair.
type Echo struct {
	name     string
	version  int64
	path     string
	encoding types.TensorEncoding

	closed atomic.Bool
}

// New constructs an echo engine. encoding selects the default tensor
// representation for predict responses.
func New(name string, version int64, path string, encoding types.TensorEncoding) *Echo {
	if encoding == "" {
		encoding = types.EncodingValues
	}
	return &Echo{name: name, version: version, path: path, encoding: encoding}
}

// Classify scores each example's features as labels, highest score first.
func (e *Echo) Classify(ctx context.Context, opts serving.RunOptions, req *types.ClassifyRequest) (*types.ClassifyResponse, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	resp := &types.ClassifyResponse{
		Spec:    e.spec(req.Spec),
		Results: make([][]types.Classification, len(req.Examples)),
	}
	for i, ex := range req.Examples {
		var cls []types.Classification
		for label, score := range ex.Features {
			cls = append(cls, types.Classification{Label: label, Score: score})
		}
		slices.SortFunc(cls, func(a, b types.Classification) int {
			switch {
			case a.Score > b.Score:
				return -1
			case a.Score < b.Score:
				return 1
			case a.Label < b.Label:
				return -1
			case a.Label > b.Label:
				return 1
			}
			return 0
		})
		resp.Results[i] = cls
	}
	return resp, nil
}

// Regress maps each example's feature sum x to x/2 + 2.
func (e *Echo) Regress(ctx context.Context, opts serving.RunOptions, req *types.RegressRequest) (*types.RegressResponse, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	resp := &types.RegressResponse{
		Spec:   e.spec(req.Spec),
		Values: make([]float64, len(req.Examples)),
	}
	for i, ex := range req.Examples {
		var sum float64
		for _, v := range ex.Features {
			sum += v
		}
		resp.Values[i] = sum/2 + 2
	}
	return resp, nil
}

// Predict echoes the input tensors as outputs, re-encoded per RunOptions.
func (e *Echo) Predict(ctx context.Context, opts serving.RunOptions, req *types.PredictRequest) (*types.PredictResponse, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	enc := opts.OutputEncoding
	if enc == "" {
		enc = e.encoding
	}
	outputs := make(map[string]types.Tensor, len(req.Inputs))
	for key, in := range req.Inputs {
		outputs[key] = encodeTensor(in, enc)
	}
	return &types.PredictResponse{
		Spec:     e.spec(req.Spec),
		Outputs:  outputs,
		Encoding: enc,
	}, nil
}

// PredictStreamed emits one response per input tensor, in key order, then
// returns. Responses carry only the tensor they describe, so a chunk with
// N inputs produces N callback invocations.
func (e *Echo) PredictStreamed(ctx context.Context, opts serving.RunOptions, req *types.PredictRequest, emit serving.StreamCallback) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	enc := opts.OutputEncoding
	if enc == "" {
		enc = e.encoding
	}
	keys := make([]string, 0, len(req.Inputs))
	for key := range req.Inputs {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(&types.PredictResponse{
			Spec:     e.spec(req.Spec),
			Outputs:  map[string]types.Tensor{key: encodeTensor(req.Inputs[key], enc)},
			Encoding: enc,
		})
	}
	return nil
}

// MultiInference runs each task's method over the shared example batch.
func (e *Echo) MultiInference(ctx context.Context, opts serving.RunOptions, req *types.MultiInferenceRequest) (*types.MultiInferenceResponse, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	resp := &types.MultiInferenceResponse{Results: make([]types.InferenceResult, len(req.Tasks))}
	for i, task := range req.Tasks {
		result := types.InferenceResult{Spec: e.spec(task.Spec)}
		switch task.Method {
		case "classify":
			out, err := e.Classify(ctx, opts, &types.ClassifyRequest{Spec: task.Spec, Examples: req.Examples})
			if err != nil {
				return nil, err
			}
			result.Classify = out
		case "regress":
			out, err := e.Regress(ctx, opts, &types.RegressRequest{Spec: task.Spec, Examples: req.Examples})
			if err != nil {
				return nil, err
			}
			result.Regress = out
		default:
			return nil, serving.ErrInvalidArgument("multi_inference task %d: unknown method %q", i, task.Method)
		}
		resp.Results[i] = result
	}
	return resp, nil
}

// Metadata reports the engine's single serving signature.
func (e *Echo) Metadata(ctx context.Context, req *types.MetadataRequest) (*types.ModelMetadata, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	return &types.ModelMetadata{
		Spec: types.ModelSpec{Name: e.name, Version: e.version},
		Signatures: map[string]types.SignatureDef{
			"serving_default": {
				MethodName: "echo/predict",
				Inputs:     map[string]types.TensorInfo{"inputs": {Dtype: "float64"}},
				Outputs:    map[string]types.TensorInfo{"outputs": {Dtype: "float64"}},
			},
		},
	}, nil
}

func (e *Echo) spec(req types.ModelSpec) types.ModelSpec {
	out := req
	out.Name = e.name
	out.Version = e.version
	return out
}

func (e *Echo) check(ctx context.Context) error {
	if e.closed.Load() {
		return fmt.Errorf("engine %s/%d is closed", e.name, e.version)
	}
	return ctx.Err()
}

// encodeTensor applies the response encoding to one tensor.
func encodeTensor(in types.Tensor, enc types.TensorEncoding) types.Tensor {
	out := types.Tensor{Dtype: in.Dtype, Shape: in.Shape}
	if out.Dtype == "" {
		out.Dtype = "float64"
	}
	values := in.Values
	if values == nil && in.Content != nil {
		values = decodeContent(in.Content)
	}
	if enc == types.EncodingContent {
		buf := make([]byte, 8*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		out.Content = buf
		return out
	}
	out.Values = append([]float64(nil), values...)
	return out
}

func decodeContent(b []byte) []float64 {
	values := make([]float64, 0, len(b)/8)
	for len(b) >= 8 {
		values = append(values, math.Float64frombits(binary.LittleEndian.Uint64(b)))
		b = b[8:]
	}
	return values
}

// Loader creates echo engines for version directories on disk.
type Loader struct {
	// RequirePath rejects loads whose source directory does not exist.
	RequirePath bool

	loads   atomic.Uint64
	unloads atomic.Uint64
}

// Load validates the source path and returns an echo engine for it.
func (l *Loader) Load(ctx context.Context, name string, version int64, path string, opts serving.LoadOptions) (serving.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.RequirePath && !fsutil.PathExists(path) {
		return nil, fmt.Errorf("load %s/%d: source path %s does not exist", name, version, path)
	}
	l.loads.Add(1)
	return New(name, version, path, opts.OutputEncoding), nil
}

// Unload releases the engine. Further calls on it fail.
func (l *Loader) Unload(engine serving.Engine) error {
	e, ok := engine.(*Echo)
	if !ok {
		return fmt.Errorf("unload: unexpected engine type %T", engine)
	}
	e.closed.Store(true)
	l.unloads.Add(1)
	return nil
}

// Unloads reports how many engines the loader has released.
func (l *Loader) Unloads() uint64 { return l.unloads.Load() }
