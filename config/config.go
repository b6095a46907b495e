// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package config loads the build_kernel.conf settings.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is where the configuration lives unless told otherwise.
const DefaultPath = "/etc/build_kernel.conf"

// envPrefix prefixes environment overrides, e.g. BUILDKERNEL_MAX_KERNELS.
const envPrefix = "BUILDKERNEL"

//go:embed defaults.toml
var defaultConfigData []byte

// Config holds the settings of one run. It is loaded once and not modified
// afterwards.
type Config struct {
	// Arch is the kernel architecture directory under arch/, e.g. x86.
	Arch string `toml:"arch" envconfig:"ARCH"`
	// SrcLinux is the kernel source tree, usually a symlink to the
	// versioned directory.
	SrcLinux string `toml:"src_linux" envconfig:"SRC_LINUX"`
	// BootPath is the directory kernels are installed into.
	BootPath string `toml:"boot_path" envconfig:"BOOT_PATH"`
	// GrubConfPath is the legacy GRUB menu file.
	GrubConfPath string `toml:"grub_conf_path" envconfig:"GRUB_CONF_PATH"`
	// BootPartition is the block device mounted on BootPath.
	BootPartition string `toml:"boot_partition" envconfig:"BOOT_PARTITION"`
	// BootFsType is the filesystem type of BootPartition.
	BootFsType string `toml:"boot_fs_type" envconfig:"BOOT_FS_TYPE"`
	// BootPartitionGrub is the GRUB name of the boot partition, e.g. hd0,0.
	BootPartitionGrub string `toml:"boot_partition_grub" envconfig:"BOOT_PARTITION_GRUB"`
	// RootPartition is passed to the kernel as root=.
	RootPartition string `toml:"root_partition" envconfig:"ROOT_PARTITION"`
	// BootParams are appended to the kernel line.
	BootParams string `toml:"boot_params" envconfig:"BOOT_PARAMS"`
	// RemountBoot remounts BootPath read-write around modifications.
	RemountBoot bool `toml:"remount_boot" envconfig:"REMOUNT_BOOT"`
	// MaxKernels is the number of gentoo entries kept in the menu.
	MaxKernels int `toml:"max_kernels" envconfig:"MAX_KERNELS"`
	// ExternalTool is run once after the installation, split on whitespace.
	ExternalTool string `toml:"external_tool" envconfig:"EXTERNAL_TOOL"`

	LogLevel        string `toml:"log_level" envconfig:"LOG_LEVEL"`
	MetricsTextfile string `toml:"metrics_textfile" envconfig:"METRICS_TEXTFILE"`
}

// file mirrors the on-disk layout, where every key lives in [main].
type file struct {
	Main Config `toml:"main"`
}

// MissingFileError is returned by Load when the configuration file does not
// exist.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("configuration file %s does not exist", e.Path)
}

// Is makes MissingFileError match fs.ErrNotExist.
func (e *MissingFileError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// Default returns the documented defaults.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := decode(defaultConfigData, cfg); err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}
	return cfg, nil
}

// Load reads the configuration at path on top of the defaults and then
// applies environment overrides. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingFileError{Path: path}
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return parse(path, data)
}

// LoadOrDefault behaves like Load, but falls back to the defaults (still
// subject to environment overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return parse("defaults", nil)
	}
	return cfg, err
}

func parse(path string, data []byte) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// decode overlays data onto cfg; keys absent from data keep their value.
func decode(data []byte, cfg *Config) error {
	f := file{Main: *cfg}
	if err := toml.Unmarshal(data, &f); err != nil {
		return err
	}
	*cfg = f.Main
	return nil
}

// Validate checks the settings the rest of the program relies on.
func (c *Config) Validate() error {
	if c.MaxKernels < 0 {
		return fmt.Errorf("max_kernels must not be negative, got %d", c.MaxKernels)
	}
	for _, required := range []struct{ key, value string }{
		{"src_linux", c.SrcLinux},
		{"boot_path", c.BootPath},
		{"grub_conf_path", c.GrubConfPath},
	} {
		if required.value == "" {
			return fmt.Errorf("%s must be set", required.key)
		}
	}
	if c.RemountBoot && c.BootFsType == "" {
		return errors.New("boot_fs_type must be set when remount_boot is enabled")
	}
	return nil
}
