// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package grubmgr

import (
	"strings"

	"gopkg.in/check.v1"
)

type registerSuite struct{}

var _ = check.Suite(&registerSuite{})

func registryOf(versions ...string) *Registry {
	cfg := testConfig()
	reg := &Registry{Preamble: []string{"default 0"}}
	for _, v := range versions {
		reg.Stanzas = append(reg.Stanzas, NewStanza(v, cfg))
	}
	return reg
}

func (s *registerSuite) TestIsRegistered(c *check.C) {
	reg, err := Parse(strings.NewReader(gentooGrubConf))
	c.Assert(err, check.IsNil)
	c.Check(reg.IsRegistered("linux-2.6.32-gentoo-r7"), check.Equals, true)
	c.Check(reg.IsRegistered(" linux-2.6.28-gentoo-r6 "), check.Equals, true)
	c.Check(reg.IsRegistered("linux-2.6.1"), check.Equals, false)
	c.Check(reg.IsRegistered("LINUX-2.6.32-GENTOO-R7"), check.Equals, false)
	c.Check(reg.IsRegistered("linux-2.6.32"), check.Equals, false)
}

func (s *registerSuite) TestNewStanza(c *check.C) {
	stanza := NewStanza("linux-2.6.33-gentoo", testConfig())
	c.Check(stanza.Lines, check.DeepEquals, []string{
		"title=linux-2.6.33-gentoo",
		"root (hd0,0)",
		"kernel /boot/kernel-linux-2.6.33-gentoo root=/dev/sda3 quiet",
	})
}

func (s *registerSuite) TestNewStanzaNoBootParams(c *check.C) {
	cfg := testConfig()
	cfg.BootParams = ""
	stanza := NewStanza("1.0", cfg)
	c.Check(stanza.Lines[2], check.Equals, "kernel /boot/kernel-1.0 root=/dev/sda3")
}

func (s *registerSuite) TestRegisterAndEvictOverLimit(c *check.C) {
	cfg := testConfig()
	cfg.MaxKernels = 2
	reg := registryOf("a-gentoo", "b-gentoo", "c-gentoo")

	// The new entry takes one of the slots.
	removed := reg.RegisterAndEvict("d-gentoo", cfg)
	c.Check(titles(reg.Stanzas), check.DeepEquals, []string{"d-gentoo", "a-gentoo"})
	c.Check(titles(removed), check.DeepEquals, []string{"b-gentoo", "c-gentoo"})
	c.Check(reg.Preamble, check.DeepEquals, []string{"default 0"})
}

func (s *registerSuite) TestRegisterAndEvictOneOverLimit(c *check.C) {
	cfg := testConfig()
	cfg.MaxKernels = 3
	reg := registryOf("a-gentoo", "b-gentoo", "c-gentoo")

	removed := reg.RegisterAndEvict("d-gentoo", cfg)
	c.Check(titles(reg.Stanzas), check.DeepEquals, []string{"d-gentoo", "a-gentoo", "b-gentoo"})
	c.Check(titles(removed), check.DeepEquals, []string{"c-gentoo"})
}

func (s *registerSuite) TestRegisterAndEvictForeignVersion(c *check.C) {
	for _, max := range []int{3, 4, 10} {
		cfg := testConfig()
		cfg.MaxKernels = max
		reg := registryOf("a-gentoo", "b-gentoo", "c-gentoo")

		removed := reg.RegisterAndEvict("x-vanilla", cfg)
		c.Check(titles(reg.Stanzas), check.DeepEquals, []string{"x-vanilla", "a-gentoo", "b-gentoo", "c-gentoo"})
		c.Check(removed, check.HasLen, 0)
	}
}

func (s *registerSuite) TestRegisterAndEvictForeignVersionOverfullMenu(c *check.C) {
	// The foreign entry does not count, but a menu already above the limit
	// is still trimmed.
	cfg := testConfig()
	cfg.MaxKernels = 2
	reg := registryOf("a-gentoo", "b-gentoo", "c-gentoo")

	removed := reg.RegisterAndEvict("x", cfg)
	c.Check(titles(reg.Stanzas), check.DeepEquals, []string{"x", "a-gentoo", "b-gentoo"})
	c.Check(titles(removed), check.DeepEquals, []string{"c-gentoo"})
}

func (s *registerSuite) TestRegisterAndEvictZeroMaxEmpty(c *check.C) {
	cfg := testConfig()
	cfg.MaxKernels = 0
	reg := &Registry{}

	removed := reg.RegisterAndEvict("z-gentoo", cfg)
	c.Check(reg.Stanzas, check.HasLen, 0)
	c.Check(titles(removed), check.DeepEquals, []string{"z-gentoo"})
}

func (s *registerSuite) TestRegisterAndEvictKeepsForeignEntries(c *check.C) {
	cfg := testConfig()
	cfg.MaxKernels = 1
	reg := registryOf("a-gentoo", "b-gentoo")
	reg.Stanzas = append([]Stanza{{Lines: []string{"title=Windows 7", "rootnoverify (hd0,1)", "chainloader +1"}}}, reg.Stanzas...)

	removed := reg.RegisterAndEvict("d-gentoo", cfg)
	c.Check(titles(reg.Stanzas), check.DeepEquals, []string{"d-gentoo", "Windows 7"})
	c.Check(titles(removed), check.DeepEquals, []string{"a-gentoo", "b-gentoo"})
}

func (s *registerSuite) TestRegisterAndEvictCaseInsensitive(c *check.C) {
	cfg := testConfig()
	cfg.MaxKernels = 1
	reg := registryOf("Linux-3.0-GENTOO")

	removed := reg.RegisterAndEvict("linux-3.1-Gentoo", cfg)
	c.Check(titles(reg.Stanzas), check.DeepEquals, []string{"linux-3.1-Gentoo"})
	c.Check(titles(removed), check.DeepEquals, []string{"Linux-3.0-GENTOO"})
}

func (s *registerSuite) TestRegisterAndEvictRepeated(c *check.C) {
	// Mirrors a menu holding five gentoo kernels at the limit: a foreign
	// kernel fits, the next gentoo one pushes the oldest out.
	reg, err := Parse(strings.NewReader(gentooGrubConf))
	c.Assert(err, check.IsNil)
	cfg := testConfig()

	removed := reg.RegisterAndEvict("test-kernel", cfg)
	c.Check(removed, check.HasLen, 0)
	c.Check(reg.Stanzas, check.HasLen, 6)

	removed = reg.RegisterAndEvict("gentoo-kernel", cfg)
	c.Check(titles(removed), check.DeepEquals, []string{"linux-2.6.28-gentoo-r6"})
	c.Check(reg.Stanzas, check.HasLen, 6)
	c.Check(reg.Stanzas[0].Title(), check.Equals, "gentoo-kernel")
	c.Check(reg.Stanzas[1].Title(), check.Equals, "test-kernel")
}
