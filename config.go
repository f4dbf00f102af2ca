package clower

import (
	"time"

	"go.uber.org/zap"

	"github.com/eringen/clower/content"
	"github.com/eringen/clower/deploy"
	"github.com/eringen/clower/storage"
)

// DefaultTokenSecret is the signing secret used when none is configured.
// It is public knowledge and must be overridden in production.
const DefaultTokenSecret = "clower-edit-secret"

// SiteConfig holds all configuration for a clower server.
type SiteConfig struct {
	Name string // Site name appended to page titles (default none)
	URL  string // Canonical public URL; enables sitemap.xml when set

	Addr         string // Listen address (default ":3000")
	DataDir      string // Page/theme/settings documents (default "data")
	OutputDir    string // Generated site (default "public")
	Driver       string // Storage driver: "file" or "sqlite" (default "file")
	DatabasePath string // SQLite path (default "data/clower.db")
	AdminDir     string // Optional directory holding the admin UI

	TokenSecret   string // Bearer token signing secret (default DefaultTokenSecret)
	SessionSecret string // Preview cookie secret (default TokenSecret)
	CookieSecure  bool   // Set true for HTTPS

	DeployTimeout  time.Duration // Upper bound for one deployment (default 5min)
	KnownHostsFile string        // known_hosts used to verify the SFTP server

	LoginMaxAttempts int           // Failed logins allowed per window (default 5)
	LoginWindow      time.Duration // Limiter window (default 1min)
}

func (c *SiteConfig) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.OutputDir == "" {
		c.OutputDir = "public"
	}
	if c.Driver == "" {
		c.Driver = storage.DriverFile
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/clower.db"
	}
	if c.TokenSecret == "" {
		c.TokenSecret = DefaultTokenSecret
	}
	if c.SessionSecret == "" {
		c.SessionSecret = c.TokenSecret
	}
	if c.DeployTimeout == 0 {
		c.DeployTimeout = deploy.DefaultTimeout
	}
	if c.LoginMaxAttempts == 0 {
		c.LoginMaxAttempts = 5
	}
	if c.LoginWindow == 0 {
		c.LoginWindow = time.Minute
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger replaces the default production zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.Logger = l
		}
	}
}

// WithBackend uses b instead of opening one from the config. The App does
// not close a backend it did not open.
func WithBackend(b storage.Backend) Option {
	return func(a *App) {
		a.Backend = b
		a.ownsBackend = false
	}
}

// WithSecretStore keeps the deployment password somewhere other than the
// document backend.
func WithSecretStore(s content.SecretStore) Option {
	return func(a *App) { a.secrets = s }
}

// WithPasswordHasher replaces bcrypt, mostly so tests run fast.
func WithPasswordHasher(h PasswordHasher) Option {
	return func(a *App) { a.hasher = h }
}

// WithDialer replaces the SFTP connection used by deployments.
func WithDialer(d deploy.Dialer) Option {
	return func(a *App) { a.dialer = d }
}

// WithHook appends a post-commit hook. Hooks run after every successful
// content mutation and explicit generate, in registration order.
func WithHook(h Hook) Option {
	return func(a *App) {
		a.hooks = append(a.hooks, h)
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
