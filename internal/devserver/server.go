// Package devserver serves a development build: static output, upstream
// proxies and live reload notifications.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/preactpack/internal/assets"
	"github.com/wolfeidau/preactpack/internal/catalog"
	httpmiddleware "github.com/wolfeidau/preactpack/internal/http"
	"github.com/wolfeidau/preactpack/internal/logger"
	"github.com/wolfeidau/preactpack/internal/plan"
	"github.com/wolfeidau/preactpack/internal/settings"
	"github.com/wolfeidau/preactpack/internal/telemetry"
)

// Config holds the dev server parameters resolved from a plan
type Config struct {
	Host  string
	Port  int
	Dir   string
	Hot   bool
	Proxy []settings.ProxyRule
}

// Addr is the listen address
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ConfigFromPlan reads the dev-server stage of a development plan
func ConfigFromPlan(s *settings.Settings, p *plan.Plan) (Config, error) {
	stage, ok := p.Stage(catalog.DevServer)
	if !ok {
		return Config{}, fmt.Errorf("plan for %s has no %s stage", p.Environment(), catalog.DevServer)
	}

	cfg := Config{
		Host: stage.Params.String("host"),
		Port: stage.Params.Int("port"),
		Dir:  s.OutputDir(),
		Hot:  stage.Params.Bool("hot"),
	}
	for _, rule := range stage.Params.StringMaps("proxy") {
		cfg.Proxy = append(cfg.Proxy, settings.ProxyRule{Prefix: rule["prefix"], Target: rule["target"]})
	}
	return cfg, nil
}

type Server struct {
	cfg     Config
	log     zerolog.Logger
	broker  *Broker
	proxies []proxy
}

type proxy struct {
	prefix  string
	handler http.Handler
}

// New creates a dev server, proxy targets are parsed up front
func New(cfg Config, log zerolog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		log:    log,
		broker: NewBroker(),
	}

	for _, rule := range cfg.Proxy {
		target, err := url.Parse(rule.Target)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy target %q: %w", rule.Target, err)
		}
		s.proxies = append(s.proxies, proxy{prefix: rule.Prefix, handler: s.reverseProxy(target)})
	}

	return s, nil
}

func (s *Server) reverseProxy(target *url.URL) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			// upstreams see their own host, as with changeOrigin
			pr.Out.Host = target.Host
			httpmiddleware.SetForwardedHeaders(pr.Out, pr.In)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("upstream", target.String()).Msg("Proxy request failed")
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
}

// Reload tells every connected browser to reload
func (s *Server) Reload() {
	if !s.cfg.Hot {
		return
	}
	n := s.broker.Broadcast()
	telemetry.GetMetrics().ReloadsTotal.Add(context.Background(), 1)
	s.log.Debug().Int("clients", n).Msg("Sent reload")
}

// Handler returns the dev server's routes wrapped in its middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.cfg.Hot {
		mux.Handle(assets.ReloadPath, s.broker)
	}

	static := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	}).Handler(httpmiddleware.NoCacheMiddleware()(s.staticHandler()))

	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range s.proxies {
			if matchPrefix(r.URL.Path, p.prefix) {
				telemetry.GetMetrics().ProxiedTotal.Add(r.Context(), 1)
				p.handler.ServeHTTP(w, r)
				return
			}
		}
		static.ServeHTTP(w, r)
	}))

	return httpmiddleware.ClientIPMiddleware()(logger.NewRequestLogger(s.log)(mux))
}

// staticHandler serves the output directory, falling back to index.html for
// extensionless paths so client side routes survive a reload
func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.cfg.Dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if _, err := os.Stat(filepath.Join(s.cfg.Dir, filepath.FromSlash(clean))); err != nil && path.Ext(clean) == "" {
			http.ServeFile(w, r, filepath.Join(s.cfg.Dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}

func matchPrefix(p, prefix string) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || strings.HasSuffix(prefix, "/") || p[len(prefix)] == '/'
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", "http://"+s.cfg.Addr()).Bool("hot", s.cfg.Hot).Msg("Dev server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.broker.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Broker fans reload notifications out to server sent event streams
type Broker struct {
	mu      sync.Mutex
	clients map[chan struct{}]bool
	closed  chan struct{}
	once    sync.Once
}

func NewBroker() *Broker {
	return &Broker{
		clients: map[chan struct{}]bool{},
		closed:  make(chan struct{}),
	}
}

// Broadcast notifies every subscriber and returns how many there were.
// A subscriber that has not consumed its last notification is not blocked on.
func (b *Broker) Broadcast() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return len(b.clients)
}

// Subscribe registers a client, the returned func unregisters it
func (b *Broker) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	b.clients[ch] = true
	b.mu.Unlock()
	telemetry.GetMetrics().ReloadClients.Add(context.Background(), 1)

	return ch, func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		telemetry.GetMetrics().ReloadClients.Add(context.Background(), -1)
	}
}

// Close ends every open stream
func (b *Broker) Close() {
	b.once.Do(func() { close(b.closed) })
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-b.closed:
			return
		case <-ch:
			if _, err := fmt.Fprint(w, "event: change\ndata: {}\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
