// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package grubmgr

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/canonical/buildkernel/config"
)

// ErrNoBackup is returned by RestoreRegistry when there is nothing to restore.
var ErrNoBackup = errors.New("no grub.conf backup found")

// KernelManager installs kernels into the boot directory and keeps grub.conf
// in sync with them.
type KernelManager struct {
	cfg     *config.Config
	log     *zap.Logger
	mounter Mounter
}

// Result describes what Update did.
type Result struct {
	Version string
	// Added is false if the version already had a stanza.
	Added   bool
	Removed []Stanza
	Deleted []ArtifactPair
	// Stanzas is the number of entries left in grub.conf.
	Stanzas int
}

// NewKernelManager returns a new kernel manager for the given configuration.
func NewKernelManager(cfg *config.Config, log *zap.Logger) *KernelManager {
	return &KernelManager{cfg: cfg, log: log, mounter: NewMounter(cfg)}
}

// withWritableBoot runs fn with the boot filesystem mounted read-write.
// Remount failures are logged and otherwise ignored.
func (km *KernelManager) withWritableBoot(fn func() error) error {
	if err := km.mounter.RemountForWrite(); err != nil {
		km.log.Warn("remount failed, continuing", zap.Error(err))
	}
	defer func() {
		if err := km.mounter.RemountForRead(); err != nil {
			km.log.Warn("remount failed, continuing", zap.Error(err))
		}
	}()
	return fn()
}

// InstallKernel copies the built image and symbol map of version from the
// kernel tree into the boot directory.
func (km *KernelManager) InstallKernel(version string) error {
	km.log.Info("installing kernel...", zap.String("version", version))
	image := filepath.Join(km.cfg.SrcLinux, "arch", km.cfg.Arch, "boot", "bzImage")
	systemMap := filepath.Join(km.cfg.SrcLinux, "System.map")

	err := km.withWritableBoot(func() error {
		for _, file := range []struct{ src, dst string }{
			{image, KernelImagePath(km.cfg.BootPath, version)},
			{systemMap, systemMapFor(km.cfg.BootPath, version)},
		} {
			updated, err := MaybeUpdateFile(file.dst, file.src)
			if err != nil {
				return fmt.Errorf("Could not install %s: %w", file.dst, err)
			}
			if !updated {
				km.log.Debug("already up to date", zap.String("path", file.dst))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	km.log.Info("installing kernel...Ok", zap.String("version", version))
	return nil
}

// LoadRegistry parses grub.conf.
func (km *KernelManager) LoadRegistry() (*Registry, error) {
	path := km.cfg.GrubConfPath
	km.log.Info("loading grub.conf...", zap.String("path", path))
	f, err := appFs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingFileError{Path: path}
		}
		return nil, err
	}
	defer f.Close()

	reg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("Could not read %s: %w", path, err)
	}
	km.log.Info("loading grub.conf...Ok", zap.Int("kernels", len(reg.Stanzas)))
	return reg, nil
}

// SaveRegistry writes reg to grub.conf, keeping the previous file as
// grub.conf~.
func (km *KernelManager) SaveRegistry(reg *Registry) error {
	path := km.cfg.GrubConfPath
	km.log.Info("saving grub.conf...", zap.String("path", path))
	err := km.withWritableBoot(func() error {
		km.log.Debug("backing up grub.conf...", zap.String("backup", path+backupSuffix))
		if err := backupFile(path); err != nil {
			return fmt.Errorf("Could not back up %s: %w", path, err)
		}
		f, err := appFs.Create(path)
		if err != nil {
			return fmt.Errorf("Could not open %s for writing: %w", path, err)
		}
		if err := WriteRegistry(f, reg); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
	if err != nil {
		return err
	}
	km.log.Info("saving grub.conf...Ok")
	return nil
}

// RestoreRegistry puts grub.conf~ back in place of grub.conf.
func (km *KernelManager) RestoreRegistry() error {
	path := km.cfg.GrubConfPath
	backup := path + backupSuffix
	exists, err := afero.Exists(appFs, backup)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNoBackup, backup)
	}
	km.log.Info("restoring grub.conf...", zap.String("backup", backup))
	return km.withWritableBoot(func() error { return copyFile(path, backup) })
}

// RemoveKernels deletes the files of every pair. Files that are already gone
// are skipped.
func (km *KernelManager) RemoveKernels(pairs []ArtifactPair) ([]ArtifactPair, error) {
	km.log.Info("removing old kernels from disk...")
	var deleted []ArtifactPair
	for _, pair := range pairs {
		var done ArtifactPair
		err := km.withWritableBoot(func() error {
			removed, err := removeIfExists(pair.Image)
			if err != nil {
				return err
			}
			if removed {
				km.log.Info("deleted kernel image", zap.String("path", pair.Image))
				done.Image = pair.Image
			}
			removed, err = removeIfExists(pair.SystemMap)
			if err != nil {
				return err
			}
			if removed {
				km.log.Info("deleted kernel map", zap.String("path", pair.SystemMap))
				done.SystemMap = pair.SystemMap
			}
			return nil
		})
		if err != nil {
			return deleted, err
		}
		if done != (ArtifactPair{}) {
			deleted = append(deleted, done)
		}
	}
	km.log.Info("removing old kernels from disk...Ok", zap.Int("deleted", len(deleted)))
	return deleted, nil
}

// Update registers version in grub.conf if it is missing, evicting old
// entries and deleting their files.
func (km *KernelManager) Update(version string) (*Result, error) {
	reg, err := km.LoadRegistry()
	if err != nil {
		return nil, err
	}

	km.log.Info("checking for kernel...", zap.String("version", version))
	if reg.IsRegistered(version) {
		km.log.Info("kernel found in grub.conf", zap.String("version", version))
		return &Result{Version: version, Stanzas: len(reg.Stanzas)}, nil
	}

	km.log.Info("kernel not found in grub.conf -> adding", zap.String("version", version))
	removed := reg.RegisterAndEvict(version, km.cfg)
	for _, stanza := range removed {
		km.log.Info("removing old kernel from list", zap.String("title", stanza.Title()))
	}
	km.log.Info("adding to grub.conf...Ok", zap.Int("removed", len(removed)))

	if err := km.SaveRegistry(reg); err != nil {
		return nil, err
	}

	res := &Result{Version: version, Added: true, Removed: removed, Stanzas: len(reg.Stanzas)}
	res.Deleted, err = km.RemoveKernels(ResolveArtifacts(removed, km.cfg))
	if err != nil {
		return res, err
	}
	return res, nil
}
