package api

import (
	"context"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/devricklin/slack-merge-gate/internal/biz/domain"
	"github.com/devricklin/slack-merge-gate/internal/logging"
	"github.com/devricklin/slack-merge-gate/internal/service"
)

var httpLog = logging.ForComponent(logging.CompHTTP)

const maxBodyBytes = 1 << 20

// Sockets serves the popup and page websocket endpoints
type Sockets interface {
	ServePopup(w http.ResponseWriter, r *http.Request)
	ServePage(w http.ResponseWriter, r *http.Request)
}

// Server provides the HTTP API used by popups, page controls and the CLI
type Server struct {
	dispatcher *service.Dispatcher
	config     *service.ConfigService
	state      *service.StateService
	sockets    Sockets

	server *http.Server
	addr   string
}

// NewServer creates a new API server
func NewServer(
	dispatcher *service.Dispatcher,
	config *service.ConfigService,
	state *service.StateService,
	sockets Sockets,
	addr string,
) *Server {
	return &Server{
		dispatcher: dispatcher,
		config:     config,
		state:      state,
		sockets:    sockets,
		addr:       addr,
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Actions
	mux.HandleFunc("/api/action", s.handleAction)

	// Popup read model
	mux.HandleFunc("/api/state", s.handleState)

	// Synced settings
	mux.HandleFunc("/api/config", s.handleConfig)

	// Websocket clients
	mux.HandleFunc("/ws/popup", s.sockets.ServePopup)
	mux.HandleFunc("/ws/page", s.sockets.ServePage)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	httpLog.Info("http_listening", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// HandleAction decodes and dispatches one action frame.
// Decode failures are answered as an unsuccessful result.
func (s *Server) HandleAction(ctx context.Context, raw []byte, tabID string) any {
	action, err := service.DecodeAction(raw, tabID)
	if err != nil {
		return service.Result{Success: false, Error: err.Error()}
	}
	httpLog.Debug("action_received", "action", action.Name(), "tab_id", tabID)
	return s.dispatcher.Dispatch(ctx, action)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	action, err := service.DecodeAction(body, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	httpLog.Debug("action_received", "action", action.Name())
	s.writeJSON(w, s.dispatcher.Dispatch(r.Context(), action))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := s.state.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, state)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		settings, err := s.config.Get(ctx)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, settings)

	case http.MethodPut:
		// absent fields keep their stored value
		settings, err := s.config.Get(ctx)
		if err != nil {
			s.writeError(w, err)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal(body, &settings); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		change, err := s.config.Update(context.WithoutCancel(ctx), settings)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, configResponse{Settings: settings, Changed: change})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type configResponse struct {
	Settings domain.Settings       `json:"settings"`
	Changed  domain.SettingsChange `json:"changed"`
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
