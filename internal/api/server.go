package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"lift/internal/compose"
	"lift/internal/engine"
)

// Server is the read-only status API exposed by `lift serve`.
type Server struct {
	router  *mux.Router
	project *compose.Project
	engine  *engine.Engine
	addr    string
}

// NewServer creates the status API for one resolved project.
func NewServer(addr string, project *compose.Project, eng *engine.Engine) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		project: project,
		engine:  eng,
		addr:    addr,
	}
	s.routes()
	return s
}

// routes sets up the API routes.
func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.healthzHandler).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/project", s.projectHandler).Methods("GET")
	api.HandleFunc("/services", s.listServicesHandler).Methods("GET")
	api.HandleFunc("/services/{name}", s.getServiceHandler).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// Handler exposes the router. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Status API listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down status API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// projectSummary is the resolved shape of the manifest, without live state.
type projectSummary struct {
	Name     string                    `json:"name"`
	File     string                    `json:"file"`
	Services map[string]serviceSummary `json:"services"`
	Volumes  []string                  `json:"volumes"`
	Networks []string                  `json:"networks"`
}

type serviceSummary struct {
	Image     string   `json:"image,omitempty"`
	Build     bool     `json:"build"`
	Ports     []string `json:"ports,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`
}

func (s *Server) projectHandler(w http.ResponseWriter, r *http.Request) {
	summary := projectSummary{
		Name:     s.project.Name,
		File:     s.project.File,
		Services: map[string]serviceSummary{},
		Volumes:  []string{},
		Networks: []string{s.project.DefaultNetworkName()},
	}
	for _, name := range s.project.ServiceNames() {
		svc := s.project.Services[name]
		summary.Services[name] = serviceSummary{
			Image:     svc.Image,
			Build:     svc.Build != nil,
			Ports:     svc.Ports,
			DependsOn: svc.Dependencies(),
		}
	}
	for key := range s.project.Volumes {
		summary.Volumes = append(summary.Volumes, s.project.VolumeObjectName(key))
	}
	for key := range s.project.Networks {
		summary.Networks = append(summary.Networks, s.project.NetworkObjectName(key))
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) listServicesHandler(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.engine.Status(r.Context(), s.project.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) getServiceHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := s.project.Services[name]; !ok {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	statuses, err := s.engine.Status(r.Context(), s.project.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, st := range statuses {
		if st.Service == name {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	http.Error(w, "service has no container", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.Debugf("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}
