package httpd

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	adminhub "github.com/MrEthical07/adminhub"
	"github.com/MrEthical07/adminhub/mailer"
	"github.com/MrEthical07/adminhub/middleware"
	"github.com/MrEthical07/adminhub/postgres"
)

// ContentStore is the persistence surface the handlers need. Satisfied
// by [postgres.ContentStore].
type ContentStore interface {
	CreateBlog(ctx context.Context, blog postgres.Blog) (postgres.Blog, error)
	ListBlogs(ctx context.Context) ([]postgres.Blog, error)
	GetBlogBySlug(ctx context.Context, slug string) (postgres.Blog, error)
	GetBlogByID(ctx context.Context, id string) (postgres.Blog, error)
	UpdateBlog(ctx context.Context, blog postgres.Blog) (postgres.Blog, error)
	DeleteBlog(ctx context.Context, id string) error
	CreateContactForm(ctx context.Context, form postgres.ContactForm) (postgres.ContactForm, error)
	ListContactForms(ctx context.Context) ([]postgres.ContactForm, error)
	CreateSubscription(ctx context.Context, email string) (postgres.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]postgres.Subscription, error)
}

// MediaClient uploads and deletes blog images. Satisfied by
// [media.Client].
type MediaClient interface {
	Upload(ctx context.Context, data []byte, contentType, filename string) (url, key string, err error)
	Delete(ctx context.Context, key string) error
}

// MailSender enqueues notification jobs. Satisfied by [mailer.Mailer].
type MailSender interface {
	Publish(ctx context.Context, n mailer.Notification) error
}

// DBPinger reports database liveness for the health endpoint.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP-facing settings.
type Config struct {
	RefreshTTL     time.Duration
	SecureCookies  bool
	SameSite       http.SameSite
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Server wires the engine and collaborators into an http.Handler.
type Server struct {
	engine  *adminhub.Engine
	content ContentStore
	media   MediaClient
	mail    MailSender
	db      DBPinger
	metrics http.Handler
	logger  *slog.Logger
	cfg     Config
}

// NewServer creates a [Server]. metricsHandler and mail may be nil;
// the corresponding endpoints degrade gracefully.
func NewServer(engine *adminhub.Engine, content ContentStore, mediaClient MediaClient, mail MailSender, db DBPinger, metricsHandler http.Handler, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 8 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	return &Server{
		engine:  engine,
		content: content,
		media:   mediaClient,
		mail:    mail,
		db:      db,
		metrics: metricsHandler,
		logger:  logger,
		cfg:     cfg,
	}
}

// Handler builds the route table. Guarded routes require an admin role;
// super-admin-only routes are noted inline.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	admin := middleware.RequireAdmin(s.engine)
	superAdmin := middleware.RequireSuperAdmin(s.engine)

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.Handle("POST /auth/logout", admin(http.HandlerFunc(s.handleLogout)))
	mux.Handle("POST /auth/logout-all", admin(http.HandlerFunc(s.handleLogoutAll)))
	mux.Handle("POST /auth/change-password", admin(http.HandlerFunc(s.handleChangePassword)))
	mux.Handle("POST /auth/accounts/{id}/active", superAdmin(http.HandlerFunc(s.handleSetAccountActive)))

	mux.Handle("POST /blogs", admin(http.HandlerFunc(s.handleCreateBlog)))
	mux.HandleFunc("GET /blogs", s.handleListBlogs)
	mux.HandleFunc("GET /blogs/{slug}", s.handleGetBlog)
	mux.Handle("PUT /blogs/{id}", admin(http.HandlerFunc(s.handleUpdateBlog)))
	mux.Handle("DELETE /blogs/{id}", admin(http.HandlerFunc(s.handleDeleteBlog)))

	mux.HandleFunc("POST /contact", s.handleCreateContactForm)
	mux.Handle("GET /contact", admin(http.HandlerFunc(s.handleListContactForms)))

	mux.HandleFunc("POST /subscriptions", s.handleCreateSubscription)
	mux.Handle("GET /subscriptions", admin(http.HandlerFunc(s.handleListSubscriptions)))

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.withRequestContext(mux)
}

// withRequestContext attaches the client IP, a bounded deadline, and
// access logging to every request.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()
		ctx = adminhub.WithClientIP(ctx, clientIP(r))

		next.ServeHTTP(w, r.WithContext(ctx))

		s.logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
