package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/assets"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/battle"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/auth"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/data"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/core/debug"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/game"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/matchmaking"
	"github.com/BnW-Developers/War-Of-Paws-sub000/internal/session"
)

// Controller is the main entrypoint for the server. It's responsible for
// initializing any shared resources (such as the database, static assets,
// and logging), defining the servers, and launching everything.
type Controller struct {
	Config *core.Config

	logger *logrus.Logger
	wg     sync.WaitGroup

	db         *gorm.DB
	games      *session.GameRegistry
	matchmaker *matchmaking.Matchmaker
	servers    []*frontend
}

// Start brings up the shared services and blocks until the context is
// cancelled. A non-nil return means initialization failed and the process
// should exit non-zero.
func (c *Controller) Start(ctx context.Context) error {
	defer c.Shutdown(ctx)

	var err error
	// Set up the logger, which will be used by all sub-servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.PprofEnabled {
		debug.StartUtilities(c.logger, c.Config.Debugging.PprofPort)
	}

	c.db, err = data.Initialize(c.Config.DatabaseURL(), c.Config.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	c.logger.Infof("connected to database %s:%d", c.Config.Database.Host, c.Config.Database.Port)

	store, err := assets.Load(c.Config.Game.AssetsDir)
	if err != nil {
		return fmt.Errorf("error loading game assets: %w", err)
	}

	authService := auth.NewService(c.Config.Auth.JWTSecret, c.Config.Auth.BanDuration)
	users := session.NewUserRegistry()
	c.games = session.NewGameRegistry()

	rules := c.matchRules()
	c.matchmaker = matchmaking.NewMatchmaker(
		c.logger,
		users,
		c.games,
		store.Bounds(),
		rules,
		c.Config.Matchmaking.TickInterval,
		c.Config.Matchmaking.MaxWaitTime,
	)
	if err := c.matchmaker.Start(); err != nil {
		return fmt.Errorf("error starting matchmaker: %w", err)
	}

	backend := &battle.Server{
		Name:       "BATTLE",
		Config:     c.Config,
		Logger:     c.logger,
		DB:         c.db,
		Assets:     store,
		Auth:       authService,
		Users:      users,
		Games:      c.games,
		Matchmaker: c.matchmaker,
	}

	c.servers = []*frontend{
		{
			Address: c.Config.GameServerAddress(),
			Backend: backend,
			Banned:  authService.IsBanned,
		},
	}

	return c.run(ctx)
}

// matchRules translates config values into per-match rules, falling back to
// the defaults for anything unset.
func (c *Controller) matchRules() game.Rules {
	rules := game.DefaultRules()
	if interval := c.Config.Game.MineralSyncInterval; interval > 0 {
		rules.MineralSyncInterval = interval
	}
	if interval := c.Config.Game.LocationSyncInterval; interval > 0 {
		rules.LocationSyncInterval = interval
	}
	if dwell := c.Config.Game.CheckpointDwellTime; dwell > 0 {
		rules.CheckpointDwellTime = dwell
	}
	if margin := c.Config.Game.SpeedErrorMargin; margin > 0 {
		rules.SpeedErrorMargin = margin
	}
	if margin := c.Config.Game.SpellErrorMargin; margin > 0 {
		rules.SpellErrorMargin = margin
	}
	return rules
}

func (c *Controller) run(ctx context.Context) error {
	// Start all of our servers. Failure to initialize one of the registered
	// servers is considered terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.logger

		if err := server.Start(ctx, &c.wg); err != nil {
			return fmt.Errorf("error starting %s server: %w", server.Backend.Identifier(), err)
		}
	}

	c.wg.Wait()
	return nil
}

func (c *Controller) Shutdown(_ context.Context) {
	// Stop the shared services after all of the frontends have stopped so
	// that in-flight packet handlers don't race the teardown.
	c.wg.Wait()

	if c.matchmaker != nil {
		c.matchmaker.Stop()
	}
	if c.games != nil {
		for _, g := range c.games.All() {
			g.Stop()
		}
	}
	if c.db != nil {
		if err := data.Shutdown(c.db); err != nil {
			c.logger.Warnf("error closing database connection: %v", err)
		}
	}
}
