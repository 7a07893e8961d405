package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"chartview/server/fastview"
	"chartview/server/root_view"
	"chartview/telemetry"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const shutdownGracePeriod = 5 * time.Second

// Health is the source of the readings reported by /health.
type Health interface {
	HeapMB() float64
	PeakHeapMB() float64
	Window() []telemetry.Sample
}

// Loader reports whether the chart library finished loading.
type Loader interface {
	Loaded() bool
}

// HealthReport is the body of /health.
type HealthReport struct {
	Status       string  `json:"status"`
	HeapMB       float64 `json:"heap_mb"`
	PeakHeapMB   float64 `json:"peak_heap_mb"`
	ChartsLoaded bool    `json:"charts_loaded"`
	Client       bool    `json:"client"`
	// Samples is the number of samples in the sampler's window; LastSample is the time
	// of the newest, absent before the first sample.
	Samples    int        `json:"samples"`
	LastSample *time.Time `json:"last_sample,omitempty"`
}

// Server serves a single page, to a single client, over a single websocket.
// The root view's ele-update channel can be listened to by only one client, so a
// second websocket is refused while one is connected.
type Server struct {
	addr     string
	rootView *root_view.RootView
	health   Health
	loader   Loader
	log      zerolog.Logger

	connected atomic.Bool
}

// NewServer returns a server for the root view's page.
func NewServer(
	addr string,
	rootView *root_view.RootView,
	health Health,
	loader Loader,
	log zerolog.Logger,
) *Server {
	return &Server{
		addr:     addr,
		rootView: rootView,
		health:   health,
		loader:   loader,
		log:      log,
	}
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/health", server.serveHealth).Methods(http.MethodGet)
	return router
}

// Serve listens until ctx is done, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) (err error) {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.log.Warn().Err(shutdownErr).Msg("shutdown")
		}
	}()

	server.log.Info().Str("addr", server.addr).Msg("serving")
	if err = httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes the root view's updates to the client via websocket.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	if !server.connected.CompareAndSwap(false, true) {
		http.Error(w, "a client is already connected", http.StatusConflict)
		return
	}
	defer server.connected.Store(false)

	cli, err := fastview.NewClient(server.rootView.Updates(), w, r, server.log)
	if err != nil {
		server.log.Error().Err(err).Msg("upgrade")
		return
	}

	server.log.Info().Str("remote", r.RemoteAddr).Msg("client connected")
	if err = cli.Sync(); err != nil {
		server.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("client sync")
		return
	}
	server.log.Info().Str("remote", r.RemoteAddr).Msg("client disconnected")
}

func (server *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	report := HealthReport{
		Status:       "ok",
		HeapMB:       server.health.HeapMB(),
		PeakHeapMB:   server.health.PeakHeapMB(),
		ChartsLoaded: server.loader.Loaded(),
		Client:       server.connected.Load(),
	}
	window := server.health.Window()
	report.Samples = len(window)
	if latest, ok := lo.Last(window); ok {
		report.LastSample = &latest.Time
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		server.log.Warn().Err(err).Msg("health")
	}
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, server.rootView.Snapshots()); err != nil {
		server.log.Error().Err(err).Msg("render index")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
