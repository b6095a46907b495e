// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package grubmgr

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	debversion "github.com/knqyf263/go-deb-version"
	"github.com/spf13/afero"
)

// InstalledKernel is a kernel image found in the boot directory.
type InstalledKernel struct {
	Version      string
	Image        string
	SystemMap    string
	HasSystemMap bool
}

// InstalledKernels lists the kernel-<version> images in the boot directory,
// newest first.
func (km *KernelManager) InstalledKernels() ([]InstalledKernel, error) {
	bootFs := afero.NewIOFS(afero.NewBasePathFs(appFs, km.cfg.BootPath))
	names, err := doublestar.Glob(bootFs, "kernel-*", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("Could not list %s: %w", km.cfg.BootPath, err)
	}

	var kernels []InstalledKernel
	for _, name := range names {
		if strings.HasSuffix(name, backupSuffix) {
			continue
		}
		image := filepath.Join(km.cfg.BootPath, name)
		kernel := InstalledKernel{
			Version:   strings.TrimPrefix(name, "kernel-"),
			Image:     image,
			SystemMap: SystemMapPath(km.cfg.BootPath, image),
		}
		if kernel.HasSystemMap, err = afero.Exists(appFs, kernel.SystemMap); err != nil {
			return nil, err
		}
		kernels = append(kernels, kernel)
	}

	sort.SliceStable(kernels, func(i, j int) bool {
		return versionLess(kernels[j].Version, kernels[i].Version)
	})
	return kernels, nil
}

// Orphans returns the installed kernels no stanza of reg boots.
func Orphans(reg *Registry, installed []InstalledKernel) []InstalledKernel {
	referenced := make(map[string]bool)
	for _, stanza := range reg.Stanzas {
		if image, ok := stanza.Image(); ok {
			referenced[filepath.Clean(image)] = true
		}
	}

	var orphans []InstalledKernel
	for _, kernel := range installed {
		if !referenced[filepath.Clean(kernel.Image)] {
			orphans = append(orphans, kernel)
		}
	}
	return orphans
}

// versionLess orders kernel versions like "linux-2.6.32-gentoo-r7" by their
// numeric part using Debian version rules. Versions that do not parse are
// compared as strings.
func versionLess(a, b string) bool {
	va, errA := debversion.NewVersion(numericPart(a))
	vb, errB := debversion.NewVersion(numericPart(b))
	if errA != nil || errB != nil || va.Equal(vb) {
		return a < b
	}
	return va.LessThan(vb)
}

func numericPart(v string) string {
	if idx := strings.IndexAny(v, "0123456789"); idx >= 0 {
		return v[idx:]
	}
	return ""
}
