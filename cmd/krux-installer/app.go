package main

import (
	"context"
	"fmt"
	"os"

	"github.com/selfcustody/krux-installer/internal/config"
	"github.com/selfcustody/krux-installer/internal/engine"
)

// loadConfig detects the environment and loads config.cue.
func loadConfig() (*config.Config, *config.Env, error) {
	env := config.DetectEnv(os.Getenv)
	if configDir != "" {
		env.ConfigDir = configDir
	}

	dir, err := config.ResolveConfigDir(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve config dir: %w", err)
	}

	cfg, err := config.LoadConfig(dir, env)
	if err != nil {
		return nil, nil, err
	}
	return cfg, env, nil
}

// newEngine creates an engine without running the toolchain probe.
func newEngine() (*engine.Engine, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(cfg, env), nil
}

// probedEngine creates an engine whose toolchain gate is open.
func probedEngine(ctx context.Context) (*engine.Engine, error) {
	eng, err := newEngine()
	if err != nil {
		return nil, err
	}
	if _, err := eng.Probe(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}

// openSession opens a session for version, which may be "latest".
func openSession(ctx context.Context, eng *engine.Engine, version string) (*engine.Session, error) {
	version, err := eng.ResolveVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	return eng.NewSession(version)
}

// checkedSession opens a session for version and runs the presence checks.
func checkedSession(ctx context.Context, eng *engine.Engine, version string) (*engine.Session, error) {
	s, err := openSession(ctx, eng, version)
	if err != nil {
		return nil, err
	}
	if err := s.Check(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
