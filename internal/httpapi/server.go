package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vineetp6/serving/internal/serving"
	"github.com/vineetp6/serving/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Models() []types.ModelVersions
	Status() types.StatusResponse
	Ready() bool
	Classify(ctx context.Context, req *types.ClassifyRequest, opts serving.RunOptions) (*types.ClassifyResponse, error)
	Regress(ctx context.Context, req *types.RegressRequest, opts serving.RunOptions) (*types.RegressResponse, error)
	Predict(ctx context.Context, req *types.PredictRequest, opts serving.RunOptions) (*types.PredictResponse, error)
	MultiInference(ctx context.Context, req *types.MultiInferenceRequest, opts serving.RunOptions) (*types.MultiInferenceResponse, error)
	Metadata(ctx context.Context, req *types.MetadataRequest, opts serving.RunOptions) (*types.ModelMetadata, error)
	OpenStream(spec types.ModelSpec, opts serving.RunOptions, cb serving.SessionCallback) (*serving.Session, error)
	Load(ctx context.Context, src types.ModelSource) error
	Unload(name string, version int64) error
	ForceUnload(name string, version int64) error
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.Models()})
	})

	r.Post("/v1/models/{model}/classify", inferHandler(svc, func(ctx context.Context, spec types.ModelSpec, body io.Reader, opts serving.RunOptions) (any, error) {
		var req types.ClassifyRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, errBadBody
		}
		req.Spec = spec
		return svc.Classify(ctx, &req, opts)
	}))

	r.Post("/v1/models/{model}/regress", inferHandler(svc, func(ctx context.Context, spec types.ModelSpec, body io.Reader, opts serving.RunOptions) (any, error) {
		var req types.RegressRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, errBadBody
		}
		req.Spec = spec
		return svc.Regress(ctx, &req, opts)
	}))

	r.Post("/v1/models/{model}/predict", inferHandler(svc, func(ctx context.Context, spec types.ModelSpec, body io.Reader, opts serving.RunOptions) (any, error) {
		var req types.PredictRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, errBadBody
		}
		req.Spec = spec
		return svc.Predict(ctx, &req, opts)
	}))

	r.Post("/v1/models/{model}/multi_inference", inferHandler(svc, func(ctx context.Context, spec types.ModelSpec, body io.Reader, opts serving.RunOptions) (any, error) {
		var req types.MultiInferenceRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, errBadBody
		}
		req.Spec = spec
		return svc.MultiInference(ctx, &req, opts)
	}))

	r.Get("/v1/models/{model}/metadata", func(w http.ResponseWriter, r *http.Request) {
		spec, err := specFromRequest(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		req := types.MetadataRequest{
			Spec:           spec,
			MetadataFields: r.URL.Query()["field"],
		}
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		md, err := svc.Metadata(joined, &req, runOptionsFromRequest(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, md)
	})

	// Streaming predict over websocket.
	r.Get("/v1/models/{model}/stream", streamHandler(svc))

	r.Post("/v1/admin/load", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Name) == "" || req.Version <= 0 {
			writeJSONError(w, http.StatusBadRequest, "name and positive version are required")
			return
		}
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Load(joined, types.ModelSource{Name: req.Name, Version: req.Version, Path: req.Path}); err != nil {
			writeServiceError(w, r, err)
			return
		}
		logEvent(r, "load", req.Name, req.Version)
		w.WriteHeader(http.StatusCreated)
	})

	r.Post("/v1/admin/unload", func(w http.ResponseWriter, r *http.Request) {
		var req types.UnloadRequest
		if !decodeBody(w, r, &req) {
			return
		}
		var err error
		if req.Force {
			err = svc.ForceUnload(req.Name, req.Version)
		} else {
			err = svc.Unload(req.Name, req.Version)
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		logEvent(r, "unload", req.Name, req.Version)
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// inferHandler wraps the shared plumbing of the unary inference routes:
// content-type and body-size checks, spec resolution from the URL,
// context joining, error mapping and logging.
func inferHandler(svc Service, run func(ctx context.Context, spec types.ModelSpec, body io.Reader, opts serving.RunOptions) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		spec, err := specFromRequest(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		start := time.Now()
		res, err := run(joined, spec, r.Body, runOptionsFromRequest(r))
		if err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			if err == errBadBody {
				writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			writeServiceError(w, r, err)
			return
		}
		logInfer(r, spec, time.Since(start))
		writeJSON(w, res)
	}
}

// specFromRequest builds a ModelSpec from the URL: the model path
// parameter plus optional version and signature query parameters.
func specFromRequest(r *http.Request) (types.ModelSpec, error) {
	spec := types.ModelSpec{
		Name:          chi.URLParam(r, "model"),
		SignatureName: r.URL.Query().Get("signature"),
	}
	if v := r.URL.Query().Get("version"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return spec, errInvalidVersion
		}
		spec.Version = n
	}
	return spec, nil
}

// runOptionsFromRequest maps optional query parameters to RunOptions.
// timeout_ms becomes an absolute deadline; encoding overrides the server
// default tensor encoding.
func runOptionsFromRequest(r *http.Request) serving.RunOptions {
	var opts serving.RunOptions
	if v := r.URL.Query().Get("timeout_ms"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			opts.Deadline = time.Now().Add(time.Duration(ms) * time.Millisecond)
		}
	}
	switch types.TensorEncoding(r.URL.Query().Get("encoding")) {
	case types.EncodingValues:
		opts.OutputEncoding = types.EncodingValues
	case types.EncodingContent:
		opts.OutputEncoding = types.EncodingContent
	}
	return opts
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
