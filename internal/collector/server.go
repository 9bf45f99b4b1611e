package collector

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/pagebeacon/internal/clock"
	"github.com/nao1215/pagebeacon/internal/identity"
	"github.com/nao1215/pagebeacon/internal/model"
)

const (
	// PathGA4 is the GA4 collect route.
	PathGA4 = "/g/collect"
	// PathHeap is the Heap pixel route.
	PathHeap = "/h"
	// PathHealth is the liveness route.
	PathHealth = "/healthz"

	// MaxBodySize caps request bodies.
	MaxBodySize = 1 << 20

	shutdownTimeout = 30 * time.Second
)

// ErrMissingTrackingID is reported for hits without an account identifier.
var ErrMissingTrackingID = errors.New("hit has no tracking id")

// Store persists collected events.
type Store interface {
	InsertEvent(ctx context.Context, ev *model.Event) error
}

// decoder turns one merged parameter set into an event.
type decoder func(url.Values) model.Event

// Server receives tracking hits.
type Server struct {
	store   Store
	address string
	logger  *slog.Logger
	clock   clock.Clock
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock sets the clock used to stamp received events.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// NewServer creates a Server that will listen on address.
func NewServer(store Store, address string, opts ...Option) *Server {
	s := &Server{
		store:   store,
		address: address,
		logger:  slog.Default(),
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathHealth, s.handleHealthz)
	mux.HandleFunc(PathGA4, s.collect(model.FromGA4))
	mux.HandleFunc(PathHeap, s.collect(model.FromHeap))
	return mux
}

// Serve accepts connections on l until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("collector listening", "address", l.Addr().String())
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("collector failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down collector")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down collector: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) collect(decode decoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		switch r.Method {
		case http.MethodGet, http.MethodPost:
		case http.MethodOptions:
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.WriteHeader(http.StatusNoContent)
			return
		default:
			http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
			return
		}

		hits, err := readHits(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		for _, values := range hits {
			ev := decode(values)
			if ev.TrackingID == "" {
				http.Error(w, ErrMissingTrackingID.Error(), http.StatusBadRequest)
				return
			}
			ev.ReceivedAt = s.clock.Now().UTC()
			if err := s.store.InsertEvent(r.Context(), &ev); err != nil {
				s.logger.Error("failed to store event", "event", ev.Name, "error", err)
				http.Error(w, "failed to store event", http.StatusInternalServerError)
				return
			}
			s.logger.Debug("event collected",
				"provider", string(ev.Provider),
				"event", ev.Name,
				"tracking_id", ev.TrackingID,
				"client", clientDigest(ev.ClientID),
			)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// clientDigest is a stable pseudonym for a client id, safe to log.
func clientDigest(clientID string) string {
	if clientID == "" {
		return ""
	}
	return identity.HashID(clientID, identity.MaxIDLength)
}

// readHits returns one parameter set per hit in r.
func readHits(r *http.Request) ([]url.Values, error) {
	base := r.URL.Query()
	if r.Method != http.MethodPost || r.Body == nil {
		return []url.Values{base}, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, errors.New("request body too large")
	}

	var hits []url.Values
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), MaxBodySize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		extra, err := url.ParseQuery(line)
		if err != nil {
			return nil, fmt.Errorf("invalid hit line: %w", err)
		}
		hits = append(hits, merge(base, extra))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan body: %w", err)
	}
	if len(hits) == 0 {
		return []url.Values{base}, nil
	}
	return hits, nil
}

// merge returns base overlaid with extra.
func merge(base, extra url.Values) url.Values {
	out := make(url.Values, len(base)+len(extra))
	for k, v := range base {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range extra {
		out[k] = append([]string(nil), v...)
	}
	return out
}
