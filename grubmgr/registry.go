// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package grubmgr keeps a legacy GRUB menu (grub.conf) in sync with the
// kernels installed in the boot directory.
package grubmgr

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

const (
	titleMarker     = "title="
	kernelDirective = "kernel"
)

// Stanza is one boot menu entry, kept as its raw lines. The first line
// carries the title marker.
type Stanza struct {
	Lines []string
}

// Title returns the version named by the stanza's title line, or "" if the
// stanza has none.
func (s Stanza) Title() string {
	if len(s.Lines) == 0 || !isTitleLine(s.Lines[0]) {
		return ""
	}
	_, title, _ := strings.Cut(s.Lines[0], "=")
	return strings.TrimSpace(title)
}

// KernelLine returns the first line whose first token is the kernel directive.
func (s Stanza) KernelLine() (string, bool) {
	for _, line := range s.Lines {
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == kernelDirective {
			return line, true
		}
	}
	return "", false
}

// Image returns the kernel image path the stanza boots, which is the second
// token of its kernel line.
func (s Stanza) Image() (string, bool) {
	line, ok := s.KernelLine()
	if !ok {
		return "", false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", false
	}
	return fields[1], true
}

// Registry is the parsed grub.conf: global settings followed by the boot
// stanzas in menu order. The first stanza is the default entry.
type Registry struct {
	Preamble []string
	Stanzas  []Stanza
}

// MissingFileError is returned when grub.conf does not exist.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("boot menu %s does not exist", e.Path)
}

// Is makes MissingFileError match fs.ErrNotExist.
func (e *MissingFileError) Is(target error) bool {
	return target == fs.ErrNotExist
}

func isTitleLine(line string) bool {
	return strings.Contains(line, titleMarker)
}

type parseState int

const (
	statePreamble parseState = iota
	stateInStanza
)

// Parse reads a grub.conf. Blank lines only separate entries and are
// dropped; every other line is kept verbatim.
func Parse(r io.Reader) (*Registry, error) {
	reg := &Registry{}
	state := statePreamble

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isTitleLine(line) {
			reg.Stanzas = append(reg.Stanzas, Stanza{Lines: []string{line}})
			state = stateInStanza
			continue
		}
		switch state {
		case statePreamble:
			reg.Preamble = append(reg.Preamble, line)
		case stateInStanza:
			last := &reg.Stanzas[len(reg.Stanzas)-1]
			last.Lines = append(last.Lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return reg, nil
}

// WriteRegistry writes reg in grub.conf format: each global line followed by
// a blank line, then each stanza followed by a blank line.
func WriteRegistry(w io.Writer, reg *Registry) error {
	bw := bufio.NewWriter(w)
	for _, line := range reg.Preamble {
		if _, err := fmt.Fprintf(bw, "%s\n\n", line); err != nil {
			return fmt.Errorf("Could not write global setting '%s': %w", line, err)
		}
	}
	for _, stanza := range reg.Stanzas {
		for _, line := range stanza.Lines {
			if _, err := fmt.Fprintf(bw, "%s\n", line); err != nil {
				return fmt.Errorf("Could not write entry '%s': %w", stanza.Title(), err)
			}
		}
		if _, err := fmt.Fprint(bw, "\n"); err != nil {
			return fmt.Errorf("Could not write entry '%s': %w", stanza.Title(), err)
		}
	}
	return bw.Flush()
}
