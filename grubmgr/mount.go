// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package grubmgr

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/canonical/buildkernel/config"
)

var (
	unixMount   = unix.Mount
	unixUnmount = unix.Unmount
)

// Mounter flips the boot filesystem between read-write and read-only.
type Mounter interface {
	RemountForWrite() error
	RemountForRead() error
}

// bootMounter unmounts boot_path and mounts boot_partition on it again. It
// does nothing unless remount_boot is set.
type bootMounter struct {
	enabled   bool
	partition string
	fsType    string
	target    string
}

// NewMounter returns the Mounter described by cfg.
func NewMounter(cfg *config.Config) Mounter {
	return &bootMounter{
		enabled:   cfg.RemountBoot,
		partition: cfg.BootPartition,
		fsType:    cfg.BootFsType,
		target:    cfg.BootPath,
	}
}

func (m *bootMounter) RemountForWrite() error {
	if !m.enabled {
		return nil
	}
	return m.remount(0, "read-write")
}

func (m *bootMounter) RemountForRead() error {
	if !m.enabled {
		return nil
	}
	return m.remount(unix.MS_RDONLY, "read-only")
}

func (m *bootMounter) remount(flags uintptr, mode string) error {
	// EINVAL means target is not a mount point, so there is nothing to unmount.
	if err := unixUnmount(m.target, 0); err != nil && !errors.Is(err, unix.EINVAL) && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("Could not unmount %s: %w", m.target, err)
	}
	if err := unixMount(m.partition, m.target, m.fsType, flags, ""); err != nil {
		return fmt.Errorf("Could not mount %s on %s %s: %w", m.partition, m.target, mode, err)
	}
	return nil
}
