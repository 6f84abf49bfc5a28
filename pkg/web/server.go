package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/ritzau/treeshake/pkg/logging"
	"github.com/ritzau/treeshake/pkg/pubsub"
	"github.com/ritzau/treeshake/pkg/shake"
)

//go:embed static/*
var staticFiles embed.FS

// BundleFunc serializes one bundle for a request URL. isManifest reports
// whether the result is a static-export asset manifest (JSON) rather than
// executable JS.
type BundleFunc func(ctx context.Context, requestURL string) (output string, isManifest bool, err error)

// Server serves bundles over HTTP and rebuild events over SSE
type Server struct {
	router    *mux.Router
	publisher pubsub.Publisher

	mu     sync.RWMutex
	bundle BundleFunc
	report *shake.Report
}

// NewServer creates a new bundle server
func NewServer() *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// build_status: new subscribers only need the current state
	ssePublisher.ConfigureTopic(pubsub.TopicBuildStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})

	// bundle: replay the last bundle-ready event so late subscribers
	// don't wait for the next rebuild
	ssePublisher.ConfigureTopic(pubsub.TopicBundle, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
	}
	s.setupRoutes()
	return s
}

// SetBundleFunc installs the serializer the /bundle endpoint calls
func (s *Server) SetBundleFunc(fn BundleFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = fn
}

// SetReport stores the most recent shake report
func (s *Server) SetReport(r *shake.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r
}

// PublishBuildStatus publishes a rebuild lifecycle event
func (s *Server) PublishBuildStatus(state, message string) error {
	return s.publisher.Publish(pubsub.TopicBuildStatus, state, pubsub.BuildStatus{
		State:   state,
		Message: message,
	})
}

// PublishBundle publishes a bundle-ready event with shake stats
func (s *Server) PublishBundle(entryPoint string, modulesCount int, report *shake.Report) error {
	data := pubsub.BundleData{
		EntryPoint:   entryPoint,
		ModulesCount: modulesCount,
	}
	if report != nil {
		data.ExportsRemoved = report.ExportsRemoved
		data.ImportsRemoved = report.ImportsRemoved
		data.Orphans = report.OrphansCollected
		data.Passes = report.Passes
	}
	return s.publisher.Publish(pubsub.TopicBundle, "ready", data)
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	// API routes
	s.router.HandleFunc("/api/report", s.handleReport).Methods("GET")
	s.router.HandleFunc("/bundle", s.handleBundle).Methods("GET")

	// Serve the status page
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		logging.Error("embedded static files missing", "error", err)
		return
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	bundle := s.bundle
	s.mu.RUnlock()

	if bundle == nil {
		http.Error(w, "Bundler not ready", http.StatusServiceUnavailable)
		return
	}

	output, isManifest, err := bundle(r.Context(), r.URL.RequestURI())
	if err != nil {
		logging.ErrorContext(r.Context(), "bundle request failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if isManifest {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "application/javascript")
	}
	fmt.Fprint(w, output)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	report := s.report
	s.mu.RUnlock()

	if report == nil {
		http.Error(w, "No bundle has been built yet", http.StatusServiceUnavailable)
		return
	}
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if topic != pubsub.TopicBuildStatus && topic != pubsub.TopicBundle {
		http.Error(w, fmt.Sprintf("Unknown topic: %s", topic), http.StatusNotFound)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS support

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.ErrorContext(r.Context(), "error writing SSE event", "error", err)
			return
		}
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
	}
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting bundle server", "addr", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.router)
}
