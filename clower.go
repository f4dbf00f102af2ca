// Package clower is a self-hosted site builder: an authenticated JSON API
// edits pages, a theme and settings, every change regenerates a static
// site, and an optional SFTP step publishes it.
//
// The App wires the stores, generator and deployer behind an Echo server.
// Embedders can register extra post-commit hooks and routes through
// Options.
package clower

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/eringen/clower/auth"
	"github.com/eringen/clower/content"
	"github.com/eringen/clower/deploy"
	"github.com/eringen/clower/generator"
	"github.com/eringen/clower/storage"
)

// DefaultAdminPassword is the password of the account created on first run.
const DefaultAdminPassword = "admin"

// PasswordHasher hashes and checks the admin password.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// App is the central clower application.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Logger *zap.Logger

	Backend   storage.Backend
	Pages     *content.PageStore
	Themes    *content.ThemeStore
	Settings  *content.SettingsStore
	Generator *generator.Generator
	Deployer  *deploy.Deployer
	Tokens    *auth.Tokens

	hasher       PasswordHasher
	secrets      content.SecretStore
	dialer       deploy.Dialer
	hooks        []Hook
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	ownsBackend  bool
	initialized  bool
}

// New creates an App with the given configuration. Nothing touches the
// disk until Init or Start.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:      cfg,
		Echo:        echo.New(),
		ownsBackend: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		a.Logger = l
	}
	if a.hasher == nil {
		a.hasher = auth.NewBcryptHasher()
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	return a
}

// Init opens storage, seeds the home page and default settings, generates
// the site once and registers middleware and routes. Start calls it; tests
// call it directly and drive a.Echo through httptest.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	log := a.Logger

	if a.Config.TokenSecret == DefaultTokenSecret {
		log.Warn("using the default token secret; set CLOWER_TOKEN_SECRET or JWT_SECRET in production")
	}

	if a.Backend == nil {
		b, err := storage.Open(a.Config.Driver, a.Config.DataDir, a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("clower: open storage: %w", err)
		}
		a.Backend = b
	}
	a.Pages = content.NewPageStore(a.Backend)
	a.Themes = content.NewThemeStore(a.Backend)
	a.Settings = content.NewSettingsStore(a.Backend, a.hasher, a.secrets)
	a.Tokens = auth.NewTokens(a.Config.TokenSecret)

	a.Generator = generator.New(a.Pages, a.Themes, a.Config.OutputDir,
		generator.WithSiteURL(a.Config.URL),
		generator.WithSiteName(a.Config.Name),
		generator.WithLogger(log.Named("generator")),
	)
	dialer := a.dialer
	if dialer == nil {
		dialer = &deploy.SFTPDialer{KnownHostsFile: a.Config.KnownHostsFile, Logger: log.Named("deploy")}
	}
	a.Deployer = deploy.New(a.Settings, a.Config.OutputDir,
		deploy.WithDialer(dialer),
		deploy.WithTimeout(a.Config.DeployTimeout),
		deploy.WithLogger(log.Named("deploy")),
	)
	a.loginLimiter = NewLoginLimiter(a.Config.LoginMaxAttempts, a.Config.LoginWindow)

	created, err := a.Pages.EnsureIndex(ctx)
	if err != nil {
		return fmt.Errorf("clower: seed home page: %w", err)
	}
	if created {
		log.Info("created home page", zap.String("slug", content.IndexSlug))
	}
	st, err := a.Settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("clower: load settings: %w", err)
	}
	if a.hasher.Verify(st.Admin.PasswordHash, DefaultAdminPassword) {
		log.Warn("admin account still uses the default password; change it in the settings",
			zap.String("username", st.Admin.Username))
	}
	if _, err := a.Generator.Generate(ctx); err != nil {
		return fmt.Errorf("clower: initial generation: %w", err)
	}

	a.hooks = append([]Hook{a.autoDeployHook}, a.hooks...)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	return nil
}

// Start initializes the App and serves HTTP until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	a.Logger.Info("clower server listening",
		zap.String("addr", a.Config.Addr),
		zap.String("output", a.Config.OutputDir),
	)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/admin/index.html")
	})
	e.Static("/public", a.Config.OutputDir)
	if a.Config.AdminDir != "" {
		e.Static("/admin", a.Config.AdminDir)
	} else {
		e.StaticFS("/admin", echo.MustSubFS(AdminAssets, "embedded/admin"))
	}
	e.GET("/preview/:slug", a.handlePreview)

	api := e.Group("/api")
	api.POST("/login", a.handleLogin)
	api.POST("/logout", a.handleLogout)

	guard := a.requireToken
	api.GET("/pages", a.handleListPages, guard)
	api.POST("/pages", a.handleCreatePage, guard)
	api.GET("/pages/:slug", a.handleGetPage, guard)
	api.PUT("/pages/:slug", a.handleUpdatePage, guard)
	api.DELETE("/pages/:slug", a.handleDeletePage, guard)
	api.GET("/theme", a.handleGetTheme, guard)
	api.PUT("/theme", a.handlePutTheme, guard)
	api.GET("/settings", a.handleGetSettings, guard)
	api.PUT("/settings", a.handlePutSettings, guard)
	api.POST("/generate", a.handleGenerate, guard)
	api.POST("/deploy", a.handleDeploy, guard)
	api.GET("/images", a.handleImageList, guard)
	api.POST("/images", a.handleImageUpload, guard, middleware.BodyLimit(uploadLimit))
	api.DELETE("/images/:filename", a.handleImageDelete, guard)
}

// Close releases the storage backend and background goroutines.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	var err error
	if a.Backend != nil && a.ownsBackend {
		err = a.Backend.Close()
	}
	_ = a.Logger.Sync()
	return err
}
