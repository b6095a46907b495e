// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package grubmgr

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"

	"github.com/canonical/buildkernel/config"
)

// managedFamily marks the stanzas subject to the max_kernels limit. Other
// entries (Windows, rescue images, ...) are never evicted.
const managedFamily = "gentoo"

// KernelImagePath returns where the kernel for version is installed.
func KernelImagePath(bootPath, version string) string {
	if version == "" {
		return filepath.Join(bootPath, "kernel")
	}
	return filepath.Join(bootPath, "kernel-"+version)
}

// systemMapFor returns where the symbol map for version is installed.
func systemMapFor(bootPath, version string) string {
	if version == "" {
		return filepath.Join(bootPath, "System.map")
	}
	return filepath.Join(bootPath, "System.map-"+version)
}

// NewStanza builds the menu entry for version.
func NewStanza(version string, cfg *config.Config) Stanza {
	kernel := fmt.Sprintf("%s %s root=%s %s", kernelDirective,
		KernelImagePath(cfg.BootPath, version), cfg.RootPartition, cfg.BootParams)
	return Stanza{Lines: []string{
		titleMarker + version,
		fmt.Sprintf("root (%s)", cfg.BootPartitionGrub),
		strings.TrimSpace(kernel),
	}}
}

// IsRegistered reports whether a stanza is titled exactly version.
func (r *Registry) IsRegistered(version string) bool {
	version = strings.TrimSpace(version)
	for _, stanza := range r.Stanzas {
		if stanza.Title() == version {
			return true
		}
	}
	return false
}

func isManaged(title string) bool {
	return strings.Contains(cases.Fold().String(title), managedFamily)
}

// RegisterAndEvict makes version the default entry and then drops managed
// entries beyond cfg.MaxKernels, counting in menu order after the insert.
// The new entry counts too, so with MaxKernels 0 it is evicted right away.
// The dropped stanzas are returned in menu order.
func (r *Registry) RegisterAndEvict(version string, cfg *config.Config) []Stanza {
	r.Stanzas = append([]Stanza{NewStanza(version, cfg)}, r.Stanzas...)

	var kept, removed []Stanza
	managed := 0
	for _, stanza := range r.Stanzas {
		if isManaged(stanza.Title()) {
			managed++
			if managed > cfg.MaxKernels {
				removed = append(removed, stanza)
				continue
			}
		}
		kept = append(kept, stanza)
	}
	r.Stanzas = kept
	return removed
}
