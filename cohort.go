// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"sort"
)

// donorCohort fixes, for one locus, the ordered case and control
// donor sets admitted into analysis. The sort order doubles as the
// index order of every count vector built for the locus.
type donorCohort struct {
	caseDonors    []string
	controlDonors []string
	caseIndex     map[string]int
	controlIndex  map[string]int
}

// groupCohorts applies the cohort-construction policy: optionally
// intersect case and control donor sets (paired mode), sort both
// lists, and enforce the per-cohort minimum. It returns nil if either
// cohort is too small.
func groupCohorts(caseCounts, controlCounts []sampleCount, minSamples int, paired bool) *donorCohort {
	caseDonors := make([]string, 0, len(caseCounts))
	for _, sc := range caseCounts {
		caseDonors = append(caseDonors, sc.donor)
	}
	controlDonors := make([]string, 0, len(controlCounts))
	for _, sc := range controlCounts {
		controlDonors = append(controlDonors, sc.donor)
	}

	if paired {
		// A donor must have both a case and a control sample at
		// this locus to be retained.
		inCase := make(map[string]bool, len(caseDonors))
		for _, d := range caseDonors {
			inCase[d] = true
		}
		var pairedDonors []string
		for _, d := range controlDonors {
			if inCase[d] {
				pairedDonors = append(pairedDonors, d)
			}
		}
		caseDonors = pairedDonors
		controlDonors = append([]string(nil), pairedDonors...)
	}

	sort.Strings(caseDonors)
	sort.Strings(controlDonors)

	if len(caseDonors) < minSamples || len(controlDonors) < minSamples {
		return nil
	}

	cohort := &donorCohort{
		caseDonors:    caseDonors,
		controlDonors: controlDonors,
		caseIndex:     make(map[string]int, len(caseDonors)),
		controlIndex:  make(map[string]int, len(controlDonors)),
	}
	for i, d := range caseDonors {
		cohort.caseIndex[d] = i
	}
	for i, d := range controlDonors {
		cohort.controlIndex[d] = i
	}
	return cohort
}

// index returns the vector index of the given donor within the
// cohort of the given status, or ok==false if the donor was not
// admitted there.
func (c *donorCohort) index(status, donor string) (int, bool) {
	switch status {
	case statusCase:
		i, ok := c.caseIndex[donor]
		return i, ok
	default:
		i, ok := c.controlIndex[donor]
		return i, ok
	}
}
