// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package grubmgr

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// backupSuffix is appended to a file name to get its backup.
const backupSuffix = "~"

// appFs is the filesystem everything in this package goes through. Tests
// replace it with an in-memory one.
var appFs afero.Fs = afero.NewOsFs()

// MaybeUpdateFile copies src to dst unless dst already holds the same bytes.
// It reports whether dst was written. After a failed write dst may be
// missing, truncated or still hold its old content.
func MaybeUpdateFile(dst string, src string) (bool, error) {
	srcFile, err := appFs.Open(src)
	if err != nil {
		return false, fmt.Errorf("Could not open source file: %w", err)
	}
	defer srcFile.Close()

	same, err := sameContent(dst, srcFile)
	if err != nil || same {
		return false, err
	}
	if _, err := srcFile.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("Could not seek in source file %s: %w", src, err)
	}
	if err := writeFrom(dst, srcFile); err != nil {
		return false, fmt.Errorf("Could not copy %s to %s: %w", src, dst, err)
	}
	return true, nil
}

// sameContent compares the digest of the file at path with the rest of r.
// A missing file never matches.
func sameContent(path string, r io.Reader) (bool, error) {
	f, err := appFs.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Could not open destination file: %w", err)
	}
	defer f.Close()

	have, err := digest(f)
	if err != nil {
		return false, fmt.Errorf("Could not hash %s: %w", path, err)
	}
	want, err := digest(r)
	if err != nil {
		return false, fmt.Errorf("Could not hash source: %w", err)
	}
	return bytes.Equal(have, want), nil
}

func digest(r io.Reader) ([]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// copyFile unconditionally overwrites dst with the content of src.
func copyFile(dst string, src string) error {
	srcFile, err := appFs.Open(src)
	if err != nil {
		return fmt.Errorf("Could not open source file: %w", err)
	}
	defer srcFile.Close()

	if err := writeFrom(dst, srcFile); err != nil {
		return fmt.Errorf("Could not copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func writeFrom(dst string, r io.Reader) error {
	dstFile, err := appFs.Create(dst)
	if err != nil {
		return fmt.Errorf("Could not open %s for writing: %w", dst, err)
	}
	if _, err := io.Copy(dstFile, r); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}

// backupFile copies path to path~ if path exists, replacing an older backup.
func backupFile(path string) error {
	exists, err := afero.Exists(appFs, path)
	if err != nil || !exists {
		return err
	}
	return copyFile(path+backupSuffix, path)
}

// removeIfExists deletes path. A file that is already gone is not an error.
func removeIfExists(path string) (bool, error) {
	exists, err := afero.Exists(appFs, path)
	if err != nil || !exists {
		return false, err
	}
	if err := appFs.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("Could not remove %s: %w", path, err)
	}
	return true, nil
}
