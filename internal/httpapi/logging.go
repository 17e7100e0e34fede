package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vineetp6/serving/pkg/types"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logInfer(r *http.Request, spec types.ModelSpec, dur time.Duration) {
	if zlog == nil {
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Str("model", spec.Name).Int64("version", spec.Version).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg("infer")
}

func logEvent(r *http.Request, event, model string, version int64) {
	if zlog == nil {
		log.Printf("%s model=%s version=%d", event, model, version)
		return
	}
	z := zlog.Info().Str("model", model).Int64("version", version)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg(event)
}

func logError(r *http.Request, status int, err error) {
	if zlog == nil {
		log.Printf("%s status=%d err=%v", r.URL.Path, status, err)
		return
	}
	z := zlog.Error().Str("path", r.URL.Path).Int("status", status).Err(err)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg("request failed")
}
