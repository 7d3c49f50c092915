package app

import (
	"log/slog"

	"agentctl/internal/attach"
	"agentctl/internal/catalog"
	"agentctl/internal/command"
	"agentctl/internal/config"
	"agentctl/internal/handler"
	"agentctl/internal/logging"
	"agentctl/internal/platform"
)

// Options configures the top-level controller. Nil collaborators fall back
// to the platform implementations built from Config.
type Options struct {
	Config   config.Config
	Logger   *slog.Logger
	Lister   catalog.Lister
	Opener   attach.Opener
	Commands *command.Registry
}

// App exposes high-level operations that the CLI/TUI can reuse.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	handler *handler.Handler
}

// New constructs the shared controller facade.
func New(opts Options) *App {
	logger := logging.OrDiscard(opts.Logger)
	layout := platform.NewLayout(opts.Config.RuntimeDir)

	lister := opts.Lister
	if lister == nil {
		lister = platform.NewLister(layout, logger)
	}
	opener := opts.Opener
	if opener == nil {
		opener = platform.NewOpener(platform.OpenerOptions{
			Layout:         layout,
			AttachTimeout:  opts.Config.AttachTimeout,
			ConnectTimeout: opts.Config.ConnectTimeout,
			Logger:         logger,
		})
	}

	return &App{
		cfg:    opts.Config,
		logger: logger,
		handler: handler.New(handler.Options{
			Catalog:  catalog.New(lister),
			Opener:   opener,
			Commands: opts.Commands,
			Logger:   logger,
			Retries:  opts.Config.AttachRetries,
		}),
	}
}

// Config returns the configuration the App was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// Commands lists the registered commands.
func (a *App) Commands() []command.Spec {
	reg := a.handler.Commands()
	names := reg.Names()
	specs := make([]command.Spec, 0, len(names))
	for _, name := range names {
		spec, err := reg.Lookup(name)
		if err == nil {
			specs = append(specs, spec)
		}
	}
	return specs
}
