// Package web serves the platform JSON API and the admin settings form.
package web

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"flagcast/internal/platform"
	"flagcast/internal/settings"
	"flagcast/internal/storage"
	logx "flagcast/pkg/logx"
)

// Config controls the HTTP surface.
//
// Security:
//   - Prefer binding to localhost behind a reverse proxy.
//   - If binding to a non-loopback address, set Token or enable AllowInsecure.
type Config struct {
	Addr          string
	Token         string
	AllowInsecure bool
}

type Service struct {
	cfg Config
	log logx.Logger

	app      *fiber.App
	sessions *session.Store

	settings *settings.Service
	platform *platform.Service
	store    storage.Store
}

func New(cfg Config, set *settings.Service, plat *platform.Service, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:      cfg,
		log:      log.With(logx.String("comp", "web")),
		sessions: session.New(),
		settings: set,
		platform: plat,
		store:    store,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
	})
	app.Use(s.withAuth)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	app.Get("/api/challenges", s.listChallenges)
	app.Post("/api/challenges", s.createChallenge)
	app.Get("/api/challenges/:id", s.getChallenge)
	app.Put("/api/challenges/:id", s.updateChallenge)
	app.Post("/api/challenges/:id/solves", s.submitSolve)
	app.Get("/api/deliveries", s.listDeliveries)

	app.Get("/admin/notifier", s.adminForm)
	app.Post("/admin/notifier", s.adminSave)

	s.app = app
	return s
}

// App exposes the fiber app for handler tests.
func (s *Service) App() *fiber.App { return s.app }

func (s *Service) Start(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	// Safety: prevent accidental public exposure without auth.
	if !s.cfg.AllowInsecure && s.cfg.Token == "" && !isLoopbackAddr(addr) {
		s.log.Error("web refused to start: non-loopback addr requires token or allow_insecure",
			logx.String("addr", addr),
		)
		return fiber.ErrServiceUnavailable
	}
	if s.cfg.AllowInsecure && s.cfg.Token == "" && !isLoopbackAddr(addr) {
		s.log.Warn("web running without token on non-loopback addr (insecure)", logx.String("addr", addr))
	}

	go func() {
		if err := s.app.Listen(addr); err != nil {
			s.log.Error("web server stopped with error", logx.Err(err))
		}
	}()
	s.log.Info("web started",
		logx.String("addr", addr),
		logx.Bool("token_set", s.cfg.Token != ""),
	)
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.log.Info("web stopped")
	return err
}

func isLoopbackAddr(addr string) bool {
	// addr is expected in host:port (host may be empty).
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// empty host means all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
