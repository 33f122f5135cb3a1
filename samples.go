// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	statusCase    = "case"
	statusControl = "control"
)

// sampleCount is one decoded read_counts entry: a donor of one status
// and the read count supporting it at the current locus.
type sampleCount struct {
	donor string
	count float64
}

// interruptionEntry is one decoded interruption_counts entry. The
// count is left in string form: it is only converted to a number for
// donors admitted into the analysis (see aggregate.go).
type interruptionEntry struct {
	donor  string
	status string
	unit   string
	count  string
}

// parseReadCounts decodes a read_counts cell,
// "donor_status:count,...", preserving entry order per status. A
// repeated (donor, status) pair or an unrecognized status is a fatal
// input error.
func parseReadCounts(locusID, field string) (caseCounts, controlCounts []sampleCount, err error) {
	if field == "" {
		return nil, nil, nil
	}
	seenCase := map[string]bool{}
	seenControl := map[string]bool{}
	for _, entry := range strings.Split(field, ",") {
		parts := strings.Split(entry, ":")
		if len(parts) != 2 {
			return nil, nil, fmt.Errorf("locus %s: malformed read_counts entry %q", locusID, entry)
		}
		donor, status, err := splitSampleID(locusID, parts[0])
		if err != nil {
			return nil, nil, err
		}
		count, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("locus %s: malformed read count in entry %q", locusID, entry)
		}
		switch status {
		case statusCase:
			if seenCase[donor] {
				return nil, nil, fmt.Errorf("locus %s: duplicate case sample %q", locusID, parts[0])
			}
			seenCase[donor] = true
			caseCounts = append(caseCounts, sampleCount{donor: donor, count: count})
		case statusControl:
			if seenControl[donor] {
				return nil, nil, fmt.Errorf("locus %s: duplicate control sample %q", locusID, parts[0])
			}
			seenControl[donor] = true
			controlCounts = append(controlCounts, sampleCount{donor: donor, count: count})
		}
	}
	return caseCounts, controlCounts, nil
}

// parseInterruptionCounts decodes an interruption_counts cell,
// "donor_status:unit:count,...". A repeated (donor, status, unit)
// triple or an unrecognized status is a fatal input error. Entry
// order is preserved so downstream unit discovery order is stable.
func parseInterruptionCounts(locusID, field string) ([]interruptionEntry, error) {
	if field == "" {
		return nil, nil
	}
	seen := map[interruptionEntry]bool{}
	entries := make([]interruptionEntry, 0, strings.Count(field, ",")+1)
	for _, entry := range strings.Split(field, ",") {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("locus %s: malformed interruption_counts entry %q", locusID, entry)
		}
		donor, status, err := splitSampleID(locusID, parts[0])
		if err != nil {
			return nil, err
		}
		key := interruptionEntry{donor: donor, status: status, unit: parts[1]}
		if seen[key] {
			return nil, fmt.Errorf("locus %s: duplicate %s sample %q for interruption %q", locusID, status, parts[0], parts[1])
		}
		seen[key] = true
		key.count = parts[2]
		entries = append(entries, key)
	}
	return entries, nil
}

func splitSampleID(locusID, sampleID string) (donor, status string, err error) {
	parts := strings.Split(sampleID, "_")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("locus %s: malformed sample id %q", locusID, sampleID)
	}
	if parts[1] != statusCase && parts[1] != statusControl {
		return "", "", fmt.Errorf("locus %s: unknown sample status %q", locusID, sampleID)
	}
	return parts[0], parts[1], nil
}
