package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Norrels/Upframer-auth/internal/common"
	"github.com/Norrels/Upframer-auth/internal/server/auth"
	"github.com/gorilla/mux"
)

type ctxKey int

const (
	payloadKey ctxKey = iota
	requestIDKey
	routeLabelKey
)

// unmatchedRoute labels requests no route accepted (404 and 405).
const unmatchedRoute = "unmatched"

// routeLabel is filled in by the router once a route matches.
type routeLabel struct {
	name string
}

const maxRequestIDLength = 128

func payloadFromContext(ctx context.Context) (*auth.TokenPayload, bool) {
	p, ok := ctx.Value(payloadKey).(*auth.TokenPayload)
	return p, ok && p != nil
}

// RequestIDFromContext returns the id assigned by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestIDMiddleware echoes a sane X-Request-ID or generates one.
func (s *HTTPServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeaderName)
		if id == "" || len(id) > maxRequestIDLength {
			generated, err := common.MakeRandHexString(16)
			if err != nil {
				s.logger.Error(r.Context(), "error generating request id", "error", err)
			}
			id = generated
		}

		w.Header().Set(common.RequestIDHeaderName, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// instrumentMiddleware logs each request and records the HTTP metrics. The
// route label is the mux path template, or "unmatched", so request paths
// never leak into label values.
func (s *HTTPServer) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		label := &routeLabel{name: unmatchedRoute}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), routeLabelKey, label)))

		route := label.name
		elapsed := time.Since(start)

		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", elapsed,
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// routeLabelMiddleware runs inside the router and records the matched
// route's path template for instrumentMiddleware.
func (s *HTTPServer) routeLabelMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeLabelKey).(*routeLabel); ok {
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, err := cr.GetPathTemplate(); err == nil {
					label.name = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error(r.Context(), "panic in handler", "panic", v, "request_id", RequestIDFromContext(r.Context()))
				writeError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// bearerMiddleware verifies the Authorization bearer token and stores the
// payload in the request context.
func (s *HTTPServer) bearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerScheme)
		if !ok || strings.TrimSpace(token) == "" {
			s.logger.Debug(r.Context(), "bearer token missing or malformed", "request_id", RequestIDFromContext(r.Context()))
			s.metrics.observeOperation(operationAuthenticate, outcomeInvalidToken)
			writeError(w, http.StatusUnauthorized, common.ErrInvalidToken.Error())
			return
		}

		payload, err := s.auth.Authenticate(r.Context(), strings.TrimSpace(token))
		if err != nil {
			s.fail(w, r, operationAuthenticate, err)
			return
		}

		s.metrics.observeOperation(operationAuthenticate, outcomeSuccess)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), payloadKey, payload)))
	})
}
