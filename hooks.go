package clower

import (
	"context"

	"go.uber.org/zap"
)

// Event kinds passed to hooks.
const (
	EventPageSaved   = "page.saved"
	EventPageDeleted = "page.deleted"
	EventThemeSaved  = "theme.saved"
	EventGenerated   = "site.generated"
)

// Event describes the change that was just committed and regenerated.
type Event struct {
	Kind string
	Slug string // empty unless the event concerns a page
	User string // API caller that made the change
}

// Hook runs after a change has been stored and the site regenerated. Its
// error is logged and never reaches the client.
type Hook func(ctx context.Context, ev Event) error

// commit regenerates the site after a stored change and then runs the
// hooks. Only the regeneration error is returned.
func (a *App) commit(ctx context.Context, ev Event) error {
	if _, err := a.Generator.Generate(ctx); err != nil {
		return err
	}
	a.Logger.Info("content changed",
		zap.String("event", ev.Kind),
		zap.String("slug", ev.Slug),
		zap.String("user", ev.User),
	)
	a.runHooks(ctx, ev)
	return nil
}

func (a *App) runHooks(ctx context.Context, ev Event) {
	// Hooks outlive a client disconnect.
	ctx = context.WithoutCancel(ctx)
	for _, h := range a.hooks {
		if err := h(ctx, ev); err != nil {
			a.Logger.Error("post-commit hook failed",
				zap.String("event", ev.Kind),
				zap.String("slug", ev.Slug),
				zap.Error(err),
			)
		}
	}
}

// autoDeployHook deploys when the settings ask for it.
func (a *App) autoDeployHook(ctx context.Context, ev Event) error {
	st, err := a.Settings.Get(ctx)
	if err != nil {
		return err
	}
	if !st.AutoDeploy {
		return nil
	}
	a.Logger.Info("auto-deploying", zap.String("event", ev.Kind))
	return a.Deployer.Deploy(ctx)
}
