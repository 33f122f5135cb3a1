// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"fmt"
	"io"
	"io/ioutil"

	"gopkg.in/check.v1"
)

type profiletableSuite struct{}

var _ = check.Suite(&profiletableSuite{})

const testProfile = "locus_id\treference_region\tmotif\tread_counts\tinterruption_counts\n" +
	"L1\tchr1:100-120\tAT\tA_case:1,B_control:2\tA_case:G:1\n" +
	"L2\tchr2:5-30\tCAG\tA_case:3,B_control:4\t\n" +
	"L3\tchr3:7-40\tGC\tA_case:5,B_control:6\tB_control:T:2\n"

func (s *profiletableSuite) TestChunkedReads(c *check.C) {
	path := c.MkDir() + "/profile.tsv"
	c.Assert(ioutil.WriteFile(path, []byte(testProfile), 0644), check.IsNil)

	n, err := countProfileRows(path)
	c.Check(err, check.IsNil)
	c.Check(n, check.Equals, 3)

	r, err := openProfileReader(path)
	c.Assert(err, check.IsNil)
	defer r.Close()

	rows, err := r.next(2)
	c.Assert(err, check.IsNil)
	c.Assert(rows, check.HasLen, 2)
	c.Check(rows[0], check.DeepEquals, profileRow{
		locusID:            "L1",
		referenceRegion:    "chr1:100-120",
		motif:              "AT",
		readCounts:         "A_case:1,B_control:2",
		interruptionCounts: "A_case:G:1",
	})
	c.Check(rows[1].locusID, check.Equals, "L2")
	c.Check(rows[1].interruptionCounts, check.Equals, "")

	rows, err = r.next(2)
	c.Assert(err, check.IsNil)
	c.Assert(rows, check.HasLen, 1)
	c.Check(rows[0].locusID, check.Equals, "L3")

	_, err = r.next(2)
	c.Check(err, check.Equals, io.EOF)
}

func (s *profiletableSuite) TestColumnOrderFree(c *check.C) {
	path := c.MkDir() + "/profile.tsv"
	shuffled := "motif\tlocus_id\tinterruption_counts\treference_region\tread_counts\n" +
		"AT\tL1\tA_case:G:1\tchr1:100-120\tA_case:1,B_control:2\n"
	c.Assert(ioutil.WriteFile(path, []byte(shuffled), 0644), check.IsNil)
	r, err := openProfileReader(path)
	c.Assert(err, check.IsNil)
	defer r.Close()
	rows, err := r.next(10)
	c.Assert(err, check.IsNil)
	c.Assert(rows, check.HasLen, 1)
	c.Check(rows[0].locusID, check.Equals, "L1")
	c.Check(rows[0].motif, check.Equals, "AT")
	c.Check(rows[0].readCounts, check.Equals, "A_case:1,B_control:2")
}

func (s *profiletableSuite) TestMissingColumn(c *check.C) {
	path := c.MkDir() + "/profile.tsv"
	c.Assert(ioutil.WriteFile(path, []byte("locus_id\tmotif\nL1\tAT\n"), 0644), check.IsNil)
	_, err := openProfileReader(path)
	c.Check(err, check.ErrorMatches, `.*missing column "reference_region" in header`)
}

func (s *profiletableSuite) TestGzipRoundTrip(c *check.C) {
	path := c.MkDir() + "/profile.tsv.gz"
	tw, err := createTable(path)
	c.Assert(err, check.IsNil)
	_, err = fmt.Fprint(tw, testProfile)
	c.Assert(err, check.IsNil)
	c.Assert(tw.Close(), check.IsNil)

	n, err := countProfileRows(path)
	c.Check(err, check.IsNil)
	c.Check(n, check.Equals, 3)

	r, err := openProfileReader(path)
	c.Assert(err, check.IsNil)
	defer r.Close()
	rows, err := r.next(10)
	c.Assert(err, check.IsNil)
	c.Check(rows, check.HasLen, 3)
	c.Check(rows[2].readCounts, check.Equals, "A_case:5,B_control:6")
}
