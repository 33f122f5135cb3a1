// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"fmt"
	"math"
	"strconv"
)

// unitCounts holds one interruption unit's count vectors, indexed by
// the cohort's sorted donor order. Admitted donors with no entry in
// the encoding keep the default 0: an unobserved interruption is a
// zero count, not missing data.
type unitCounts struct {
	unit          string
	caseCounts    []float64
	controlCounts []float64
}

// aggregateInterruptions builds the per-unit count vectors over the
// admitted donors. Entries for donors outside the cohort are
// discarded. A NaN, infinite, or negative count invalidates its
// entire unit for this locus; invalid units are returned in the
// invalid set and must not be tested. Units appear in first-seen
// order.
func aggregateInterruptions(entries []interruptionEntry, cohort *donorCohort) (units []*unitCounts, invalid map[string]bool, err error) {
	invalid = map[string]bool{}
	byUnit := map[string]*unitCounts{}
	for _, entry := range entries {
		idx, ok := cohort.index(entry.status, entry.donor)
		if !ok {
			// Donor excluded by the pairing or minimum-sample
			// policy.
			continue
		}
		count, err := strconv.ParseFloat(entry.count, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("malformed interruption count %q for %s sample %q", entry.count, entry.status, entry.donor+"_"+entry.status)
		}
		uc := byUnit[entry.unit]
		if uc == nil {
			uc = &unitCounts{
				unit:          entry.unit,
				caseCounts:    make([]float64, len(cohort.caseDonors)),
				controlCounts: make([]float64, len(cohort.controlDonors)),
			}
			byUnit[entry.unit] = uc
			units = append(units, uc)
		}
		if math.IsNaN(count) || math.IsInf(count, 0) || count < 0 {
			invalid[entry.unit] = true
		}
		if entry.status == statusCase {
			uc.caseCounts[idx] = count
		} else {
			uc.controlCounts[idx] = count
		}
	}
	return units, invalid, nil
}
