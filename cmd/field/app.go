package main

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cnsr/cta-inspection/internal/cache"
	"github.com/cnsr/cta-inspection/internal/client"
	"github.com/cnsr/cta-inspection/internal/config"
	"github.com/cnsr/cta-inspection/internal/session"
)

// app holds what every command needs. It is built before each command runs.
type app struct {
	cfg      *config.Config
	store    *cache.Store
	api      *client.Client
	sessions *session.Manager
	prompt   *prompter
}

var current *app

func setupApp(cmd *cobra.Command, _ []string) error {
	// a failed RunE skips the post hook
	if err := closeApp(cmd, nil); err != nil {
		log.WithError(err).Warn("Failed to close previous cache")
	}

	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	config.SetupLogging(cfg.Log)
	if rootFlags.cachePath != "" {
		cfg.Cache.Path = rootFlags.cachePath
	}
	if rootFlags.apiURL != "" {
		cfg.API.BaseURL = rootFlags.apiURL
	}

	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return err
	}
	sessionStore, err := session.NewStore(store.DB())
	if err != nil {
		_ = store.Close()
		return err
	}
	api := client.New(cfg.API.BaseURL)

	current = &app{
		cfg:      cfg,
		store:    store,
		api:      api,
		sessions: session.NewManager(api, sessionStore),
		prompt:   newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
	}
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if current == nil {
		return nil
	}
	err := current.store.Close()
	current = nil
	return err
}

// requireSession loads the persisted session.
func (a *app) requireSession(ctx context.Context) (*session.Session, error) {
	sess, err := a.sessions.Current(ctx)
	if errors.Is(err, session.ErrNotLoggedIn) {
		return nil, fmt.Errorf("%w: run 'cta-field login' first", err)
	}
	return sess, err
}
