// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/canonical/buildkernel/config"
	"github.com/canonical/buildkernel/logging"
)

var unixGeteuid = unix.Geteuid

var errNotRoot = errors.New("You must be root to run this command.")

func requireRoot() error {
	if unixGeteuid() != 0 {
		return errNotRoot
	}
	return nil
}

// loadConfig loads the configuration at path, which must be a regular file.
func loadConfig(path string) (*config.Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("wrong build_kernel.conf file: %s", abs)
	}
	return config.Load(abs)
}

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	if verbose {
		logCfg.Level = "debug"
	}
	return logging.New(logCfg)
}
