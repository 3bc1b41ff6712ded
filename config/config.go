// Copyright 2022 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads economy parameters and solver settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, XECON_
// environment variables. A double underscore in a variable name separates
// sections, so XECON_SOLVER__TOLERANCE sets solver.tolerance.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/someonegg/xecon"
	"github.com/someonegg/xecon/dictator"
	"github.com/someonegg/xecon/internal/logging"
)

const EnvPrefix = "XECON_"

type Config struct {
	Model  string          `koanf:"model"`
	Params xecon.Params    `koanf:"params"`
	Solver dictator.Solver `koanf:"solver"`
}

func defaults() map[string]interface{} {
	par := xecon.DefaultParams()
	return map[string]interface{}{
		"model":                 xecon.QuasiLinear.String(),
		"params.alpha":          par.Alpha,
		"params.beta":           par.Beta,
		"params.w1a":            par.W1A,
		"params.w2a":            par.W2A,
		"solver.max_iterations": dictator.DefaultMaxIterations,
		"solver.tolerance":      dictator.DefaultTolerance,
		"solver.verbose":        false,
	}
}

// Load reads the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// XECON_SOLVER__MAX_ITERATIONS -> solver.max_iterations
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	kind, err := xecon.ParseKind(c.Model)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if kind == xecon.CobbDouglas && !(c.Params.Alpha < 1 && c.Params.Beta < 1) {
		return fmt.Errorf("config: %w: cobb-douglas weights must be < 1", xecon.ErrInvalidParams)
	}
	if c.Solver.MaxIterations != nil && *c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("config: solver.max_iterations must be > 0, got %d", *c.Solver.MaxIterations)
	}
	if c.Solver.Tolerance != nil && !(*c.Solver.Tolerance > 0) {
		return fmt.Errorf("config: solver.tolerance must be > 0, got %g", *c.Solver.Tolerance)
	}
	return nil
}

// NewModel builds the configured model.
func (c *Config) NewModel() (xecon.Model, error) {
	kind, err := xecon.ParseKind(c.Model)
	if err != nil {
		return nil, err
	}
	return xecon.New(kind, c.Params)
}

// NewSolver returns the configured dictator solver with a zap logger
// attached.
func (c *Config) NewSolver() (*dictator.Solver, error) {
	log, err := logging.New(c.Solver.Verbose)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	s := &dictator.Solver{
		MaxIterations: c.Solver.MaxIterations,
		Tolerance:     c.Solver.Tolerance,
		Verbose:       c.Solver.Verbose,
		Log:           log,
	}
	return s, nil
}
