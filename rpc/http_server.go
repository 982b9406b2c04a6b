package rpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/netutil"

	"github.com/agrimarket/agridash/libs/log"
)

// Listen opens a listener on listenAddr, which should be fully formed
// including the tcp:// or unix:// prefix. maxOpen limits the number of
// simultaneous connections; 0 means unlimited.
func Listen(listenAddr string, maxOpen int) (net.Listener, error) {
	proto, addr := "tcp", listenAddr
	if parts := strings.SplitN(listenAddr, "://", 2); len(parts) == 2 {
		proto, addr = parts[0], parts[1]
	}

	listener, err := net.Listen(proto, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %v: %w", listenAddr, err)
	}
	if maxOpen > 0 {
		listener = netutil.LimitListener(listener, maxOpen)
	}
	return listener, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// RecoverAndLogHandler wraps an HTTP handler, adding error logging and
// request metrics. If the inner handler panics, the wrapper recovers, logs
// and sends an HTTP 500 error response.
func RecoverAndLogHandler(handler http.Handler, logger log.Logger, metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rww := &responseWriterWrapper{-1, w}
		begin := time.Now()

		rww.Header().Set("X-Server-Time", fmt.Sprintf("%v", begin.Unix()))

		defer func() {
			if e := recover(); e != nil {
				logger.Error("panic in API handler", "err", e, "stack", string(debug.Stack()))
				writeError(rww, http.StatusInternalServerError, fmt.Errorf("internal server error: %v", e))
			}

			if rww.Status == -1 {
				rww.Status = http.StatusOK
			}
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			duration := time.Since(begin)
			metrics.Requests.With("route", route, "code", fmt.Sprint(rww.Status)).Add(1)
			metrics.RequestDuration.With("route", route).Observe(duration.Seconds())
			logger.Debug("served API response",
				"method", r.Method, "url", r.URL,
				"status", rww.Status, "duration", duration.Milliseconds(),
				"remoteAddr", r.RemoteAddr,
			)
		}()

		handler.ServeHTTP(rww, r)
	})
}

// responseWriterWrapper remembers the status for logging.
type responseWriterWrapper struct {
	Status int
	http.ResponseWriter
}

func (w *responseWriterWrapper) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack implements http.Hijacker for the websocket upgrade.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not implement http.Hijacker", w.ResponseWriter)
	}
	return h.Hijack()
}

var (
	errOriginNotAllowed = errors.New("origin not allowed")
	errNotJSON          = errors.New("request body must be application/json")
)

// originPolicy admits requests without an Origin header and those whose
// origin is in the allow-list. An empty allow-list admits no browser origin.
type originPolicy struct {
	c *cors.Cors
}

func newOriginPolicy(allowed []string) originPolicy {
	if len(allowed) == 0 {
		return originPolicy{}
	}
	return originPolicy{c: cors.New(cors.Options{AllowedOrigins: allowed})}
}

func (p originPolicy) Allowed(r *http.Request) bool {
	if r.Header.Get("Origin") == "" {
		return true
	}
	return p.c != nil && p.c.OriginAllowed(r)
}

// guardHandler rejects requests from foreign origins, and any write not sent
// as application/json. A cross-site form or text/plain POST never reaches a
// handler that signs.
func guardHandler(h http.Handler, policy originPolicy) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !policy.Allowed(r) {
			writeError(w, http.StatusForbidden, errOriginNotAllowed)
			return
		}
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				writeError(w, http.StatusUnsupportedMediaType, errNotJSON)
				return
			}
		}
		h.ServeHTTP(w, r)
	})
}

func maxBytesHandler(h http.Handler, n int64) http.Handler {
	if n <= 0 {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, n)
		h.ServeHTTP(w, r)
	})
}
