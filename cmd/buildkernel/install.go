// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/canonical/buildkernel/config"
	"github.com/canonical/buildkernel/grubmgr"
	"github.com/canonical/buildkernel/kbuild"
	"github.com/canonical/buildkernel/metrics"
)

// runInstall builds, installs and registers the kernel.
func runInstall(ctx context.Context, cmd *cli.Command) error {
	if err := requireRoot(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.String("conf"))
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.Bool("verbose"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	version := cmd.String("kernel-version")
	if version == "" {
		if version, err = kbuild.KernelVersion(cfg.SrcLinux); err != nil {
			return err
		}
	}

	if !cmd.Bool("skip-build") {
		if err := kbuild.NewBuilder(cfg.SrcLinux, logger).Compile(ctx, cmd.String("config")); err != nil {
			return err
		}
	}

	km := grubmgr.NewKernelManager(cfg, logger)
	if err := km.InstallKernel(version); err != nil {
		return err
	}
	res, err := km.Update(version)
	if err != nil {
		return err
	}
	writeMetrics(cfg, res, logger)

	kbuild.RunExternalTool(ctx, cfg.ExternalTool, logger)
	return nil
}

func writeMetrics(cfg *config.Config, res *grubmgr.Result, logger *zap.Logger) {
	if cfg.MetricsTextfile == "" {
		return
	}
	recorder := metrics.NewRecorder()
	recorder.Observe(res.Stanzas, len(res.Removed), res.Added, time.Now())
	if err := recorder.WriteTextfile(cfg.MetricsTextfile); err != nil {
		logger.Warn("metrics not written", zap.Error(err))
	}
}
