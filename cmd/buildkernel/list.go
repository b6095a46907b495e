// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/canonical/buildkernel/config"
	"github.com/canonical/buildkernel/grubmgr"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Show the grub.conf entries and the kernels installed in boot_path",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.LoadOrDefault(cmd.String("conf"))
			if err != nil {
				return err
			}
			km := grubmgr.NewKernelManager(cfg, zap.NewNop())
			reg, err := km.LoadRegistry()
			if err != nil {
				return err
			}
			installed, err := km.InstalledKernels()
			if err != nil {
				return err
			}
			orphans := make(map[string]bool)
			for _, k := range grubmgr.Orphans(reg, installed) {
				orphans[k.Image] = true
			}

			w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Entries in %s:\n", cfg.GrubConfPath)
			for i, stanza := range reg.Stanzas {
				marker := " "
				if i == 0 {
					marker = "*"
				}
				image, _ := stanza.Image()
				fmt.Fprintf(w, "%s\t%s\t%s\n", marker, stanza.Title(), image)
			}
			fmt.Fprintf(w, "Kernels in %s:\n", cfg.BootPath)
			for _, k := range installed {
				var notes string
				if orphans[k.Image] {
					notes += " [not in grub.conf]"
				}
				if !k.HasSystemMap {
					notes += " [no System.map]"
				}
				fmt.Fprintf(w, " \t%s\t%s%s\n", k.Version, k.Image, notes)
			}
			return w.Flush()
		},
	}
}

func restoreCmd() *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Put the grub.conf backup left by the previous run back in place",
		Action: func(ctx context.Context, cmd *cli.Command) error {
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
			return grubmgr.NewKernelManager(cfg, logger).RestoreRegistry()
		},
	}
}
