package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// MethodOverrideParam names the query parameter or form field that tunnels
// PUT, PATCH and DELETE through HTML form POSTs.
const MethodOverrideParam = "_method"

var overridableMethods = map[string]bool{
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// MethodOverride rewrites POST requests carrying _method.
// The form body is only consulted for urlencoded forms so multipart
// uploads are never parsed here.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			method := r.URL.Query().Get(MethodOverrideParam)
			if method == "" && strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
				method = r.PostFormValue(MethodOverrideParam)
			}
			method = strings.ToUpper(method)
			if overridableMethods[method] {
				r.Method = method
			}
		}
		next.ServeHTTP(w, r)
	})
}

// AccessLog returns the hlog middleware chain that attaches logger to each
// request and logs one line per response. It expects middleware.RequestID
// to run first.
func AccessLog(logger zerolog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(logger),
		hlog.RemoteAddrHandler("remote_addr"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			event := hlog.FromRequest(r).Info()
			if status >= http.StatusInternalServerError {
				event = hlog.FromRequest(r).Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
	}
}
