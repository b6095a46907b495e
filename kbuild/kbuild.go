// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package kbuild drives the kernel build and the post-install hook.
package kbuild

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// runCommand runs name in dir and waits for it. Tests replace it.
var runCommand = func(ctx context.Context, dir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// KernelVersion names the kernel in srcLinux after the directory it
// resolves to, e.g. /usr/src/linux -> linux-2.6.32-gentoo-r7.
func KernelVersion(srcLinux string) (string, error) {
	real, err := filepath.EvalSymlinks(srcLinux)
	if err != nil {
		return "", fmt.Errorf("Could not resolve kernel sources %s: %w", srcLinux, err)
	}
	return filepath.Base(real), nil
}

// Builder compiles the kernel tree at SrcLinux.
type Builder struct {
	SrcLinux string
	Fs       afero.Fs
	log      *zap.Logger
}

// NewBuilder returns a Builder working on the real filesystem.
func NewBuilder(srcLinux string, log *zap.Logger) *Builder {
	return &Builder{SrcLinux: srcLinux, Fs: afero.NewOsFs(), log: log}
}

// Compile builds the kernel and installs its modules. If linuxConfig is set
// it replaces the tree's .config first, keeping the old one as .config~.
func (b *Builder) Compile(ctx context.Context, linuxConfig string) error {
	b.log.Info("compiling kernel...", zap.String("src", b.SrcLinux))
	if linuxConfig != "" {
		if err := b.useConfig(linuxConfig); err != nil {
			return err
		}
	}
	if err := runCommand(ctx, b.SrcLinux, "make"); err != nil {
		return fmt.Errorf("Could not build kernel: %w", err)
	}
	if err := runCommand(ctx, b.SrcLinux, "make", "modules_install"); err != nil {
		return fmt.Errorf("Could not install modules: %w", err)
	}
	b.log.Info("compiling kernel...Ok")
	return nil
}

func (b *Builder) useConfig(linuxConfig string) error {
	dotConfig := filepath.Join(b.SrcLinux, ".config")
	b.log.Info("using kernel config", zap.String("config", linuxConfig))

	exists, err := afero.Exists(b.Fs, dotConfig)
	if err != nil {
		return err
	}
	if exists {
		if err := b.copyFile(dotConfig+"~", dotConfig); err != nil {
			return fmt.Errorf("Could not back up %s: %w", dotConfig, err)
		}
	}
	if err := b.copyFile(dotConfig, linuxConfig); err != nil {
		return fmt.Errorf("Could not use kernel config %s: %w", linuxConfig, err)
	}
	return nil
}

func (b *Builder) copyFile(dst, src string) error {
	in, err := b.Fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return afero.WriteReader(b.Fs, dst, in)
}

// RunExternalTool runs the configured post-install command once. Its outcome
// is only logged.
func RunExternalTool(ctx context.Context, commandLine string, log *zap.Logger) {
	args := strings.Fields(commandLine)
	if len(args) == 0 {
		log.Debug("no external tool configured")
		return
	}
	log.Info("running needed external tools...", zap.String("command", commandLine))
	if err := runCommand(ctx, "", args[0], args[1:]...); err != nil {
		log.Warn("external tool failed", zap.String("command", commandLine), zap.Error(err))
	}
	log.Info("running needed external tools...Ok")
}
