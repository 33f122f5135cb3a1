// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"gopkg.in/check.v1"
)

type samplesSuite struct{}

var _ = check.Suite(&samplesSuite{})

func (s *samplesSuite) TestParseReadCounts(c *check.C) {
	caseCounts, controlCounts, err := parseReadCounts("L1", "B_case:5,A_control:2,A_case:7.5,C_control:0")
	c.Assert(err, check.IsNil)
	c.Check(caseCounts, check.DeepEquals, []sampleCount{{donor: "B", count: 5}, {donor: "A", count: 7.5}})
	c.Check(controlCounts, check.DeepEquals, []sampleCount{{donor: "A", count: 2}, {donor: "C", count: 0}})
}

func (s *samplesSuite) TestParseReadCountsEmpty(c *check.C) {
	caseCounts, controlCounts, err := parseReadCounts("L1", "")
	c.Check(err, check.IsNil)
	c.Check(len(caseCounts), check.Equals, 0)
	c.Check(len(controlCounts), check.Equals, 0)
}

func (s *samplesSuite) TestDuplicateSample(c *check.C) {
	_, _, err := parseReadCounts("L1", "D1_case:5,D1_case:6")
	c.Check(err, check.ErrorMatches, `locus L1: duplicate case sample "D1_case"`)

	// Same donor in both cohorts is not a duplicate.
	_, _, err = parseReadCounts("L1", "D1_case:5,D1_control:6")
	c.Check(err, check.IsNil)
}

func (s *samplesSuite) TestUnknownStatus(c *check.C) {
	_, _, err := parseReadCounts("L1", "D1_case:5,D2_treated:5")
	c.Check(err, check.ErrorMatches, `locus L1: unknown sample status "D2_treated"`)

	_, err = parseInterruptionCounts("L1", "D2_treated:AT:5")
	c.Check(err, check.ErrorMatches, `locus L1: unknown sample status "D2_treated"`)
}

func (s *samplesSuite) TestMalformedEntries(c *check.C) {
	_, _, err := parseReadCounts("L1", "D1case:5")
	c.Check(err, check.ErrorMatches, `locus L1: malformed sample id "D1case"`)

	_, _, err = parseReadCounts("L1", "D1_case")
	c.Check(err, check.ErrorMatches, `locus L1: malformed read_counts entry "D1_case"`)

	_, _, err = parseReadCounts("L1", "D1_case:abc")
	c.Check(err, check.ErrorMatches, `locus L1: malformed read count in entry "D1_case:abc"`)

	_, err = parseInterruptionCounts("L1", "D1_case:5")
	c.Check(err, check.ErrorMatches, `locus L1: malformed interruption_counts entry "D1_case:5"`)
}

func (s *samplesSuite) TestParseInterruptionCounts(c *check.C) {
	entries, err := parseInterruptionCounts("L1", "A_case:AT:1,B_control:AT:2,A_case:GC:0.5")
	c.Assert(err, check.IsNil)
	c.Check(entries, check.DeepEquals, []interruptionEntry{
		{donor: "A", status: "case", unit: "AT", count: "1"},
		{donor: "B", status: "control", unit: "AT", count: "2"},
		{donor: "A", status: "case", unit: "GC", count: "0.5"},
	})

	// Repeating the same (donor, status, unit) triple is fatal;
	// the same donor may appear once per unit.
	_, err = parseInterruptionCounts("L1", "A_case:AT:1,A_case:AT:2")
	c.Check(err, check.ErrorMatches, `locus L1: duplicate case sample "A_case" for interruption "AT"`)
}
