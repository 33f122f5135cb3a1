// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"gopkg.in/check.v1"
)

type cohortSuite struct{}

var _ = check.Suite(&cohortSuite{})

func sc(donors ...string) []sampleCount {
	out := make([]sampleCount, len(donors))
	for i, d := range donors {
		out[i] = sampleCount{donor: d, count: 1}
	}
	return out
}

func (s *cohortSuite) TestUnpairedSorted(c *check.C) {
	cohort := groupCohorts(sc("C", "A", "B"), sc("Z", "Y"), 2, false)
	c.Assert(cohort, check.NotNil)
	c.Check(cohort.caseDonors, check.DeepEquals, []string{"A", "B", "C"})
	c.Check(cohort.controlDonors, check.DeepEquals, []string{"Y", "Z"})
}

func (s *cohortSuite) TestPairedIntersection(c *check.C) {
	cohort := groupCohorts(sc("B", "A", "C"), sc("C", "B", "D"), 2, true)
	c.Assert(cohort, check.NotNil)
	c.Check(cohort.caseDonors, check.DeepEquals, []string{"B", "C"})
	c.Check(cohort.controlDonors, check.DeepEquals, []string{"B", "C"})

	// Too few donors remain after pairing.
	c.Check(groupCohorts(sc("A", "B"), sc("B", "C"), 2, true), check.IsNil)
}

func (s *cohortSuite) TestMinSamplesBoundary(c *check.C) {
	// Exactly min-samples donors per cohort is admitted.
	c.Check(groupCohorts(sc("A", "B"), sc("C", "D"), 2, false), check.NotNil)
	c.Check(groupCohorts(sc("A", "B"), sc("C"), 2, false), check.IsNil)
	c.Check(groupCohorts(sc("A"), sc("C", "D"), 2, false), check.IsNil)
}

func (s *cohortSuite) TestIndex(c *check.C) {
	cohort := groupCohorts(sc("B", "A"), sc("C", "D"), 2, false)
	c.Assert(cohort, check.NotNil)
	i, ok := cohort.index(statusCase, "B")
	c.Check(ok, check.Equals, true)
	c.Check(i, check.Equals, 1)
	_, ok = cohort.index(statusControl, "B")
	c.Check(ok, check.Equals, false)
	i, ok = cohort.index(statusControl, "D")
	c.Check(ok, check.Equals, true)
	c.Check(i, check.Equals, 1)
}
