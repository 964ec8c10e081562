package interpunct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

// DocsServer serves a generated documentation site over HTTP. It only
// knows about static files, so it points at the web/ subtree the
// generator wrote.
type DocsServer struct {
	config     *DocsConfig
	httpServer *http.Server
	listener   net.Listener
	engine     *gin.Engine
	logger     *slog.Logger
}

func NewDocsServer(cfg *DocsConfig, logger *slog.Logger) (*DocsServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	webDir := filepath.Join(cfg.OutputDir, docsWebDirName)
	if _, err := os.Stat(webDir); err != nil {
		return nil, fmt.Errorf(
			"docs output not found at %s (run `docs generate` first): %w",
			webDir, err,
		)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cfg.CORS.GINConfig()
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"*"}
	}
	r.Use(cors.New(corsConfig))

	s := &DocsServer{
		config: cfg,
		engine: r,
		logger: logger.With(loggerNameKey, "docs_server"),
	}

	r.NoRoute(
		func(c *gin.Context) {
			s.serveDocFile(c, webDir)
		},
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

// serveDocFile resolves a request path within the generated web tree.
// Directory-style URLs resolve to the generated page of the same name,
// so /help serves web/help.html.
func (s *DocsServer) serveDocFile(c *gin.Context, webDir string) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.AbortWithStatus(http.StatusMethodNotAllowed)
		return
	}
	p := path.Clean("/" + strings.TrimSuffix(c.Request.URL.Path, "/"))
	if p == "/" {
		p = "/index"
	}

	for _, candidate := range []string{
		filepath.Join(webDir, filepath.FromSlash(p)),
		filepath.Join(webDir, filepath.FromSlash(p)+".html"),
	} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			c.File(candidate)
			return
		}
	}
	c.AbortWithStatus(http.StatusNotFound)
}

// Serve listens and serves until ctx is canceled.
func (s *DocsServer) Serve(ctx context.Context) error {
	if s.listener == nil {
		listenCfg := &net.ListenConfig{}
		ln, err := listenCfg.Listen(
			ctx, s.config.ListenNetwork, s.config.Listen,
		)
		if err != nil {
			return fmt.Errorf("error listening on %s: %w", s.config.Listen, err)
		}
		s.listener = ln
	}

	go func() {
		<-ctx.Done()
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Error("error shutting down docs server", tint.Err(err))
		}
	}()

	s.logger.Info("serving documentation", "listen", s.config.Listen)
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
