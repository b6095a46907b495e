// This file is part of buildkernel
// Copyright 2021 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package grubmgr

import (
	"strings"

	"go.uber.org/zap"
	"gopkg.in/check.v1"
)

type bootDirSuite struct {
	mapFsMixin
}

var _ = check.Suite(&bootDirSuite{})

func versionsOf(kernels []InstalledKernel) []string {
	var out []string
	for _, k := range kernels {
		out = append(out, k.Version)
	}
	return out
}

func (s *bootDirSuite) TestInstalledKernels(c *check.C) {
	s.writeFile(c, "/boot/kernel-linux-2.6.9-gentoo", "")
	s.writeFile(c, "/boot/System.map-linux-2.6.9-gentoo", "")
	s.writeFile(c, "/boot/kernel-linux-2.6.32-gentoo-r7", "")
	s.writeFile(c, "/boot/kernel-linux-2.6.10-gentoo", "")
	s.writeFile(c, "/boot/kernel-linux-2.6.10-gentoo~", "")
	s.writeFile(c, "/boot/grub/grub.conf", gentooGrubConf)
	c.Assert(s.fs.MkdirAll("/boot/kernel-sources", 0755), check.IsNil)

	km := NewKernelManager(testConfig(), zap.NewNop())
	kernels, err := km.InstalledKernels()
	c.Assert(err, check.IsNil)
	c.Check(versionsOf(kernels), check.DeepEquals, []string{
		"linux-2.6.32-gentoo-r7",
		"linux-2.6.10-gentoo",
		"linux-2.6.9-gentoo",
	})
	c.Check(kernels[2], check.DeepEquals, InstalledKernel{
		Version:      "linux-2.6.9-gentoo",
		Image:        "/boot/kernel-linux-2.6.9-gentoo",
		SystemMap:    "/boot/System.map-linux-2.6.9-gentoo",
		HasSystemMap: true,
	})
	c.Check(kernels[0].HasSystemMap, check.Equals, false)
}

func (s *bootDirSuite) TestInstalledKernelsEmpty(c *check.C) {
	c.Assert(s.fs.MkdirAll("/boot", 0755), check.IsNil)
	km := NewKernelManager(testConfig(), zap.NewNop())
	kernels, err := km.InstalledKernels()
	c.Assert(err, check.IsNil)
	c.Check(kernels, check.HasLen, 0)
}

func (s *bootDirSuite) TestOrphans(c *check.C) {
	reg, err := Parse(strings.NewReader(gentooGrubConf))
	c.Assert(err, check.IsNil)
	installed := []InstalledKernel{
		{Version: "linux-2.6.33-gentoo", Image: "/boot/kernel-linux-2.6.33-gentoo"},
		{Version: "linux-2.6.32-gentoo-r7", Image: "/boot/kernel-linux-2.6.32-gentoo-r7"},
		{Version: "linux-2.6.1", Image: "/boot/kernel-linux-2.6.1"},
	}
	c.Check(versionsOf(Orphans(reg, installed)), check.DeepEquals, []string{"linux-2.6.33-gentoo", "linux-2.6.1"})
}

func (s *bootDirSuite) TestVersionLess(c *check.C) {
	c.Check(versionLess("linux-2.6.9-gentoo", "linux-2.6.10-gentoo"), check.Equals, true)
	c.Check(versionLess("linux-2.6.32-gentoo-r7", "linux-2.6.32-gentoo-r10"), check.Equals, true)
	c.Check(versionLess("linux-3.0", "linux-2.6.39"), check.Equals, false)
	// no digits at all: plain string order
	c.Check(versionLess("alpha", "beta"), check.Equals, true)
}
