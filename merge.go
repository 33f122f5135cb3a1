// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// merger combines per-sample interruption profiles into the merged
// profile table consumed by prioritize, normalizing interruption
// counts by the expected read coverage of each repeat unit.
type merger struct {
	filter       string
	minReadCount int
	readLength   int
	maxParallel  int
}

// unitRepeatCount is one raw interruption observation in a per-sample
// profile: an interruption unit, the length of the repeat stretch it
// was seen in, and the supporting read count.
type unitRepeatCount struct {
	unit      string
	repeatLen int
	count     float64
}

// profileRecord is one locus of a per-sample profile, already
// filtered by locus regex and minimum read count.
type profileRecord struct {
	locusID         string
	referenceRegion string
	motif           string
	readCount       float64
	interruptions   []unitRepeatCount
}

// sampleUnit keys one sample's accumulated normalized count for one
// interruption unit at one locus.
type sampleUnit struct {
	sample string
	unit   string
}

// mergedLocus collects everything known about one locus across all
// samples.
type mergedLocus struct {
	referenceRegion string
	motif           string
	readCounts      []string // "sample:count", manifest order
	interruptions   map[sampleUnit]float64
}

func (cmd *merger) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.filter, "filter", "", "keep only locus IDs matching `regexp`")
	flags.IntVar(&cmd.minReadCount, "min-read-count", 1, "drop per-sample loci supported by fewer than `N` reads")
	flags.IntVar(&cmd.readLength, "read-length", 150, "sequencing read `length`, used to normalize interruption counts")
	flags.IntVar(&cmd.maxParallel, "max-parallel", runtime.NumCPU(), "profile files parsed concurrently")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if flags.NArg() != 3 {
		fmt.Fprintf(stderr, "usage: %s [options] <manifest> <read-depths> <output>\n\noptions:\n", prog)
		flags.PrintDefaults()
		return 2
	}
	if cmd.maxParallel < 1 {
		err = fmt.Errorf("-max-parallel must be at least 1, got %d", cmd.maxParallel)
		return 2
	}
	if cmd.readLength < 1 {
		err = fmt.Errorf("-read-length must be at least 1, got %d", cmd.readLength)
		return 2
	}
	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	err = cmd.run(flags.Arg(0), flags.Arg(1), flags.Arg(2))
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *merger) run(manifestPath, depthsPath, outputPath string) error {
	samples, paths, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}
	depths, err := loadReadDepths(depthsPath)
	if err != nil {
		return err
	}
	for _, sample := range samples {
		donor := strings.SplitN(sample, "_", 2)[0]
		if _, ok := depths[donor]; !ok {
			return fmt.Errorf("%s: no read depth for sample %q", depthsPath, donor)
		}
	}

	var filterRe *regexp.Regexp
	if cmd.filter != "" {
		filterRe, err = regexp.Compile(cmd.filter)
		if err != nil {
			return fmt.Errorf("-filter: invalid regexp %q: %w", cmd.filter, err)
		}
	}

	// Parse the per-sample profiles concurrently; the fold below
	// is sequential in manifest order so output is deterministic.
	parsed := make([][]profileRecord, len(samples))
	thr := throttle{Max: cmd.maxParallel}
	for i := range samples {
		i := i
		thr.Acquire()
		go func() {
			defer thr.Release()
			log.Infof("processing %s profile", samples[i])
			records, err := cmd.loadProfile(paths[i], filterRe)
			parsed[i] = records
			thr.Report(err)
		}()
	}
	if err := thr.Wait(); err != nil {
		return err
	}

	merged := map[string]*mergedLocus{}
	for i, sample := range samples {
		donor := strings.SplitN(sample, "_", 2)[0]
		cmd.mergeProfile(merged, sample, depths[donor], parsed[i])
	}

	return writeMergedProfile(outputPath, merged)
}

// loadManifest reads the headerless sample manifest: donor ID,
// case/control status, profile path. It returns the composed sample
// IDs ("donor_status") and profile paths, both in manifest order.
func loadManifest(path string) (samples, paths []string, err error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	tsv := csv.NewReader(rc)
	tsv.Comma = '\t'
	tsv.FieldsPerRecord = -1
	seen := map[string]bool{}
	for {
		rec, err := tsv.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(rec) < 3 {
			return nil, nil, fmt.Errorf("%s: manifest line needs 3 columns (donor, status, profile path), got %d", path, len(rec))
		}
		donor, status := rec[0], rec[1]
		if donor == "" || strings.Contains(donor, "_") {
			return nil, nil, fmt.Errorf("%s: invalid donor id %q (must be non-empty, without underscores)", path, donor)
		}
		if status != statusCase && status != statusControl {
			return nil, nil, fmt.Errorf("%s: unknown status %q for donor %q", path, status, donor)
		}
		sample := donor + "_" + status
		if seen[sample] {
			return nil, nil, fmt.Errorf("%s: duplicate sample %q", path, sample)
		}
		seen[sample] = true
		samples = append(samples, sample)
		paths = append(paths, rec[2])
	}
	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("%s: empty manifest", path)
	}
	return samples, paths, nil
}

// loadReadDepths reads the headerless donor → global average read
// depth table.
func loadReadDepths(path string) (map[string]float64, error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	tsv := csv.NewReader(rc)
	tsv.Comma = '\t'
	tsv.FieldsPerRecord = -1
	depths := map[string]float64{}
	for {
		rec, err := tsv.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("%s: read depth line needs 2 columns (donor, depth), got %d", path, len(rec))
		}
		depth, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: malformed read depth %q for donor %q", path, rec[1], rec[0])
		}
		depths[rec[0]] = depth
	}
	return depths, nil
}

// loadProfile reads one per-sample profile table: locus_id,
// reference_region, motif, read_count, interruption_counts
// ("unit:repeat_len:count" comma-joined, possibly empty).
func (cmd *merger) loadProfile(path string, filterRe *regexp.Regexp) ([]profileRecord, error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	tsv := csv.NewReader(rc)
	tsv.Comma = '\t'
	tsv.LazyQuotes = true
	if _, err := tsv.Read(); err != nil {
		return nil, fmt.Errorf("%s: cannot read header: %w", path, err)
	}
	var records []profileRecord
	for {
		rec, err := tsv.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("%s: profile line needs 5 columns, got %d", path, len(rec))
		}
		locusID := rec[0]
		if filterRe != nil && !filterRe.MatchString(locusID) {
			continue
		}
		readCount, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: locus %s: malformed read count %q", path, locusID, rec[3])
		}
		if readCount < float64(cmd.minReadCount) {
			continue
		}
		pr := profileRecord{
			locusID:         locusID,
			referenceRegion: rec[1],
			motif:           rec[2],
			readCount:       readCount,
		}
		if rec[4] != "" {
			for _, entry := range strings.Split(rec[4], ",") {
				parts := strings.Split(entry, ":")
				if len(parts) != 3 {
					return nil, fmt.Errorf("%s: locus %s: malformed interruption entry %q", path, locusID, entry)
				}
				repeatLen, err := strconv.Atoi(parts[1])
				if err != nil {
					return nil, fmt.Errorf("%s: locus %s: malformed repeat length %q", path, locusID, parts[1])
				}
				count, err := strconv.ParseFloat(parts[2], 64)
				if err != nil {
					return nil, fmt.Errorf("%s: locus %s: malformed interruption count %q", path, locusID, parts[2])
				}
				pr.interruptions = append(pr.interruptions, unitRepeatCount{unit: parts[0], repeatLen: repeatLen, count: count})
			}
		}
		records = append(records, pr)
	}
	return records, nil
}

// mergeProfile folds one sample's records into the merged table,
// normalizing each interruption count by its expected read coverage.
// Suspicious values are warned about but kept: the downstream
// soft-skip policy in prioritize handles them per unit.
func (cmd *merger) mergeProfile(merged map[string]*mergedLocus, sample string, readDepth float64, records []profileRecord) {
	for _, pr := range records {
		m := merged[pr.locusID]
		if m == nil {
			m = &mergedLocus{
				referenceRegion: pr.referenceRegion,
				motif:           pr.motif,
				interruptions:   map[sampleUnit]float64{},
			}
			merged[pr.locusID] = m
		}
		m.readCounts = append(m.readCounts, sample+":"+formatFloat(pr.readCount))
		for _, intr := range pr.interruptions {
			if intr.repeatLen == 0 || intr.repeatLen > cmd.readLength {
				log.Warnf("sample %s has an invalid repeat length=%d for %s with a %q interruption (read length=%d)",
					sample, intr.repeatLen, pr.locusID, intr.unit, cmd.readLength)
			}
			norm := normInterruptionCount(intr.count, cmd.readLength, intr.repeatLen, readDepth)
			if math.IsInf(norm, 0) || math.IsNaN(norm) || norm < 0 {
				log.Warnf("sample %s has an invalid normalized count=%v for %s with a %q interruption (raw count=%v, repeat length=%d, read depth=%v)",
					sample, norm, pr.locusID, intr.unit, intr.count, intr.repeatLen, readDepth)
			}
			m.interruptions[sampleUnit{sample: sample, unit: intr.unit}] += norm
		}
	}
}

// normInterruptionCount scales a raw interruption read count by the
// expected number of reads covering a repeat stretch of the given
// length.
func normInterruptionCount(count float64, readLen, repeatLen int, readDepth float64) float64 {
	numPossibleStart := float64(readLen - repeatLen + 1)
	return count / (numPossibleStart * readDepth)
}

func writeMergedProfile(path string, merged map[string]*mergedLocus) error {
	tw, err := createTable(path)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(tw, "locus_id\treference_region\tmotif\tread_counts\tinterruption_counts\n"); err != nil {
		tw.Close()
		return err
	}
	loci := make([]string, 0, len(merged))
	for locusID := range merged {
		loci = append(loci, locusID)
	}
	sort.Strings(loci)
	for _, locusID := range loci {
		m := merged[locusID]
		keys := make([]sampleUnit, 0, len(m.interruptions))
		for key := range m.interruptions {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(a, b int) bool {
			if keys[a].sample != keys[b].sample {
				return keys[a].sample < keys[b].sample
			}
			return keys[a].unit < keys[b].unit
		})
		entries := make([]string, 0, len(keys))
		for _, key := range keys {
			entries = append(entries, key.sample+":"+key.unit+":"+formatFloat(m.interruptions[key]))
		}
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			locusID, m.referenceRegion, m.motif,
			strings.Join(m.readCounts, ","), strings.Join(entries, ","))
		if err != nil {
			tw.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return tw.Close()
}
