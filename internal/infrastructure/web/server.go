package web

import (
	"context"
	"embed"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hd-camera/internal/application"
)

const shutdownTimeout = 10 * time.Second

//go:embed assets/*.html
var assets embed.FS

// CaptureOpener открывает сохраненные снимки
type CaptureOpener interface {
	Open(filename string) (io.ReadSeekCloser, error)
}

// Server HTTP сервер страницы камеры
type Server struct {
	hub      *Hub
	captures CaptureOpener
	metrics  http.Handler
	logger   application.Logger
}

// NewServer создает сервер. metrics может быть nil
func NewServer(hub *Hub, captures CaptureOpener, metrics http.Handler, logger application.Logger) *Server {
	return &Server{hub: hub, captures: captures, metrics: metrics, logger: logger}
}

// Handler возвращает маршруты сервера
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.page("assets/index.html"))
	r.Get("/camera", s.page("assets/camera.html"))
	r.Get("/ws", s.hub.ServeWS)
	r.Get("/captures/{name}", s.download)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

// Run запускает сервер и останавливает его при отмене контекста
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Запуск сервера на %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Остановка сервера...")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	file, err := s.captures.Open(name)
	if err != nil {
		s.logger.Debug("Снимок не найден: %s: %v", name, err)
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	http.ServeContent(w, r, name, time.Time{}, file)
}
