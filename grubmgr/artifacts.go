// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package grubmgr

import (
	"path/filepath"
	"strings"

	"github.com/canonical/buildkernel/config"
)

// ArtifactPair is the kernel image and symbol map installed for one kernel.
type ArtifactPair struct {
	Image     string
	SystemMap string
}

// SystemMapPath returns the symbol map matching image. The version suffix
// of the image's kernel-<version> name carries over; an unversioned image
// maps to a plain System.map. The map always lives in bootPath.
func SystemMapPath(bootPath, image string) string {
	name := filepath.Base(image)
	idx := strings.LastIndex(name, "kernel-")
	if idx < 0 {
		return systemMapFor(bootPath, "")
	}
	return systemMapFor(bootPath, name[idx+len("kernel-"):])
}

// ResolveArtifacts maps stanzas to the files they reference. Stanzas without
// a title or a kernel line are skipped.
func ResolveArtifacts(stanzas []Stanza, cfg *config.Config) []ArtifactPair {
	var pairs []ArtifactPair
	for _, stanza := range stanzas {
		if stanza.Title() == "" {
			continue
		}
		image, ok := stanza.Image()
		if !ok {
			continue
		}
		pairs = append(pairs, ArtifactPair{Image: image, SystemMap: SystemMapPath(cfg.BootPath, image)})
	}
	return pairs
}
