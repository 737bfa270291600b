package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"fieldsweep/internal/config"
	"fieldsweep/internal/mission"
	"fieldsweep/internal/planner"
	"fieldsweep/internal/sim"
)

// Server exposes the mission command and status API over HTTP.
type Server struct {
	Sim *sim.Simulator
	tpl *template.Template
	mux *http.ServeMux
}

//go:embed templates/index.html
var content embed.FS

// NewServer wires the routes for sim.
func NewServer(sim *sim.Simulator) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{Sim: sim, tpl: tpl, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/farms", s.handleFarms)
	s.mux.HandleFunc("GET /api/drone/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/drone/deploy", s.handleDeploy)
	s.mux.HandleFunc("POST /api/drone/stall", s.handleStall)
	s.mux.HandleFunc("POST /api/drone/abort", s.handleAbort)
	s.mux.HandleFunc("GET /api/drone/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/drone/detections", s.handleDetections)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start listens on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("[Admin] listening on %s", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// response is the envelope of every command reply.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Admin] encode response: %v", err)
	}
}

func reply(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, response{Success: status < 300, Message: msg, Data: data})
}

// statusFor maps command errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrUnknownFarm):
		return http.StatusNotFound
	case errors.Is(err, mission.ErrInvalidCommand),
		errors.Is(err, planner.ErrInvalidField),
		errors.Is(err, planner.ErrInvalidStep),
		errors.Is(err, planner.ErrInvalidAltitude):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Status mission.Status
		Farms  []config.Farm
		Events int
	}{
		Status: s.Sim.Status(),
		Farms:  s.Sim.Farms(),
		Events: len(s.Sim.Events()),
	}
	if err := s.tpl.Execute(w, data); err != nil {
		log.Printf("[Admin] render index: %v", err)
	}
}

func (s *Server) handleFarms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Farms())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Status())
}

// deployRequest selects a configured farm or explicit bounds.
type deployRequest struct {
	FarmID     *int               `json:"farm_id"`
	Boundaries *config.Boundaries `json:"boundaries"`
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reply(w, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}
	var (
		task *mission.Task
		err  error
	)
	switch {
	case req.FarmID != nil:
		task, err = s.Sim.Deploy(r.Context(), *req.FarmID)
	case req.Boundaries != nil:
		b := *req.Boundaries
		f := planner.Field{Min: mgl64.Vec2{b.MinX, b.MinY}, Max: mgl64.Vec2{b.MaxX, b.MaxY}}
		task, err = s.Sim.DeployField(r.Context(), "custom", f)
	default:
		reply(w, http.StatusBadRequest, "farm_id or boundaries required", nil)
		return
	}
	if err != nil {
		reply(w, statusFor(err), err.Error(), nil)
		return
	}
	reply(w, http.StatusOK, "mission deployed", map[string]string{"mission_id": task.ID()})
}

func (s *Server) handleStall(w http.ResponseWriter, r *http.Request) {
	paused, err := s.Sim.TogglePause()
	if err != nil {
		reply(w, statusFor(err), err.Error(), nil)
		return
	}
	msg := "mission resumed"
	if paused {
		msg = "mission paused"
	}
	reply(w, http.StatusOK, msg, map[string]bool{"is_paused": paused})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.Abort(); err != nil {
		reply(w, statusFor(err), err.Error(), nil)
		return
	}
	reply(w, http.StatusOK, "returning home", nil)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Events())
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Detections())
}
