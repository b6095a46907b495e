// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/canonical/buildkernel/config"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "buildkernel",
		Usage: "Build and install a kernel and keep grub.conf in sync",
		Description: `Compiles the kernel in src_linux, installs its image and System.map into
boot_path, adds it to grub.conf as the default entry and removes the oldest
gentoo entries beyond max_kernels together with their files.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "conf",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "Path to build_kernel.conf file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug messages",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"C"},
				Local:   true,
				Usage:   "Path to a kernel .config to build with",
			},
			&cli.StringFlag{
				Name:    "kernel-version",
				Aliases: []string{"k"},
				Local:   true,
				Usage:   "Install under this version instead of the one src_linux points to",
			},
			&cli.BoolFlag{
				Name:  "skip-build",
				Local: true,
				Usage: "Do not run make, install what is already built",
			},
		},
		Action: runInstall,
		Commands: []*cli.Command{
			listCmd(),
			restoreCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
