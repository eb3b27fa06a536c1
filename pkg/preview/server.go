package preview

import (
	"context"
	"embed"
	"encoding/json"
	stderrors "errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/messenger"
	"github.com/matzehuels/modgraph/pkg/modgraph"
)

//go:embed static
var staticFiles embed.FS

// ShutdownTimeout bounds how long a server waits for sessions to archive
// and connections to drain.
const ShutdownTimeout = 5 * time.Second

// Server serves preview pages for modules below a root directory.
type Server struct {
	manager  *Manager
	root     string
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a server for modules below root.
func NewServer(m *Manager, root string) *Server {
	return &Server{
		manager: m,
		root:    root,
		logger:  m.opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	page, _ := fs.Sub(staticFiles, "static")
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFileFS(w, req, page, "index.html")
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Get("/ws", s.handleWebSocket)
	r.Get("/api/modules", s.handleModules)
	return r
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. On shutdown every open session is
// closed, which archives its view state, before the listener stops.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		closeErr := s.manager.CloseAll(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return closeErr
	})
	return g.Wait()
}

// resolve maps the module query parameter to a document directory.
func (s *Server) resolve(req *http.Request) (string, error) {
	rel := req.URL.Query().Get("module")
	if rel == "" {
		rel = "."
	}
	if err := errors.ValidatePath(rel); err != nil {
		return "", err
	}
	return DocumentID(filepath.Join(s.root, filepath.FromSlash(rel)))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	dir, err := s.resolve(req)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	if _, err := s.manager.Open(req.Context(), dir, messenger.NewWebSocket(conn)); err != nil {
		s.logger.Error("open preview", "dir", dir, "error", err)
		_ = conn.Close()
	}
}

type modulesResponse struct {
	Document string   `json:"document"`
	Modules  []string `json:"modules"`
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
}

func (s *Server) handleModules(w http.ResponseWriter, req *http.Request) {
	dir, err := s.resolve(req)
	if err != nil {
		writeError(w, err)
		return
	}

	var g *modgraph.Graph
	if sess := s.manager.Get(dir); sess != nil {
		g = sess.Graph()
	}
	if g == nil {
		if g, err = modgraph.Load(req.Context(), s.manager.opts.Scanner, dir); err != nil {
			writeError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(modulesResponse{
		Document: dir,
		Modules:  g.Modules(),
		Nodes:    g.NodeCount(),
		Edges:    g.EdgeCount(),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		s.logger.Debug("http request", "method", req.Method, "path", req.URL.Path,
			"id", middleware.GetReqID(req.Context()), "elapsed", time.Since(start))
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidPath, errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeFileNotFound, errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeScanFailed, errors.ErrCodeToolNotFound:
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(errors.GetCode(err)),
		"error": errors.UserMessage(err),
	})
}
