// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

// prioritizer ranks interruption units by the statistical evidence
// that their abundance differs between the case and control cohorts.
type prioritizer struct {
	minSamples int
	cutoff     float64
	paired     bool
	useGLM     bool
	chunkSize  int
	progress   bool
	numpyFile  string
}

// interruptionRecord is one output row: the test result for one
// (locus, interruption unit) pair. The two encoded count strings are
// populated only for records passing the significance cutoff.
type interruptionRecord struct {
	locusID            string
	referenceRegion    string
	motif              string
	unit               string
	nCase              int
	nControl           int
	pValue             float64
	cohenD             float64
	readCounts         string
	interruptionCounts string
}

// skipTally accumulates the soft-failure counters across the whole
// run.
type skipTally struct {
	loci          int
	interruptions int
}

func (cmd *prioritizer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.IntVar(&cmd.minSamples, "min-samples", 2, "minimum `number` of samples per group (case or control)")
	flags.Float64Var(&cmd.cutoff, "p-value-cutoff", 0.05, "p-value `cutoff` for the significant output")
	flags.BoolVar(&cmd.paired, "paired", false, "restrict cohorts to donors with both a case and a control sample, and use the signed-rank test")
	flags.BoolVar(&cmd.useGLM, "glm", false, "use a logistic-regression likelihood-ratio test instead of the rank-sum test")
	flags.IntVar(&cmd.chunkSize, "chunk-size", 5000, "`rows` per streamed batch")
	flags.BoolVar(&cmd.progress, "progress", isatty.IsTerminal(os.Stderr.Fd()), "log per-chunk progress")
	flags.StringVar(&cmd.numpyFile, "output-numpy", "", "also write the ranked records as a numpy matrix to `file`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if flags.NArg() != 3 {
		fmt.Fprintf(stderr, "usage: %s [options] <merged-profile> <output> <sig-output>\n\noptions:\n", prog)
		flags.PrintDefaults()
		return 2
	}
	if cmd.paired && cmd.useGLM {
		err = errors.New("-glm cannot be combined with -paired")
		return 2
	}
	if cmd.minSamples < 1 {
		err = fmt.Errorf("-min-samples must be at least 1, got %d", cmd.minSamples)
		return 2
	}
	if cmd.chunkSize < 1 {
		err = fmt.Errorf("-chunk-size must be at least 1, got %d", cmd.chunkSize)
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

func (cmd *prioritizer) run(inputPath, outputPath, sigOutputPath string) error {
	totalRows, err := countProfileRows(inputPath)
	if err != nil {
		return err
	}
	totalChunks := (totalRows + cmd.chunkSize - 1) / cmd.chunkSize

	if cmd.paired {
		log.Info("paired test enabled")
	} else {
		log.Info("paired test disabled")
	}

	reader, err := openProfileReader(inputPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	var records []interruptionRecord
	var tally skipTally
	starttime := time.Now()
	for chunk := 0; ; chunk++ {
		rows, err := reader.next(cmd.chunkSize)
		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		for _, row := range rows {
			recs, err := cmd.processRow(row, &tally)
			if err != nil {
				return err
			}
			records = append(records, recs...)
		}
		if cmd.progress && totalChunks > 0 {
			done := chunk + 1
			ttl := time.Since(starttime) * time.Duration(totalChunks-done) / time.Duration(done)
			log.Printf("progress %d/%d chunks, eta %v (%v)", done, totalChunks, time.Now().Add(ttl).Format(time.Stamp), ttl)
		}
	}

	// Stable sort: ties keep discovery order, making runs
	// reproducible.
	sort.SliceStable(records, func(i, j int) bool { return records[i].pValue < records[j].pValue })

	if err := cmd.writeRanked(outputPath, records); err != nil {
		return err
	}
	if err := cmd.writeSignificant(sigOutputPath, records); err != nil {
		return err
	}
	if cmd.numpyFile != "" {
		if err := writeRecordMatrix(cmd.numpyFile, records); err != nil {
			return err
		}
	}

	log.Infof("skipped %d loci", tally.loci)
	log.Infof("skipped %d interruptions", tally.interruptions)
	return nil
}

// processRow runs one locus through the pipeline: decode, group,
// aggregate, test. Soft failures increment tally and produce no
// records; fatal input errors abort the run.
func (cmd *prioritizer) processRow(row profileRow, tally *skipTally) ([]interruptionRecord, error) {
	// Cheap rejection before any parsing: not enough sample
	// entries to ever satisfy both cohorts.
	if rawSampleEntries(row.readCounts) < 2*cmd.minSamples {
		tally.loci++
		return nil, nil
	}

	caseCounts, controlCounts, err := parseReadCounts(row.locusID, row.readCounts)
	if err != nil {
		return nil, err
	}

	cohort := groupCohorts(caseCounts, controlCounts, cmd.minSamples, cmd.paired)
	if cohort == nil {
		tally.loci++
		return nil, nil
	}

	entries, err := parseInterruptionCounts(row.locusID, row.interruptionCounts)
	if err != nil {
		return nil, err
	}
	units, invalid, err := aggregateInterruptions(entries, cohort)
	if err != nil {
		return nil, fmt.Errorf("locus %s: %w", row.locusID, err)
	}

	var records []interruptionRecord
	for _, unit := range units {
		if invalid[unit.unit] {
			tally.interruptions++
			continue
		}

		var p float64
		switch {
		case cmd.paired:
			p = signedRankPvalue(unit.caseCounts, unit.controlCounts)
		case cmd.useGLM:
			p = glmPvalue(unit.caseCounts, unit.controlCounts)
		default:
			p = rankSumPvalue(unit.caseCounts, unit.controlCounts)
		}
		d := cohenD(unit.caseCounts, unit.controlCounts)

		if math.IsNaN(p) {
			log.Warnf("NaN p-value for locus %s and %q interruption, skipping", row.locusID, unit.unit)
			tally.interruptions++
			continue
		}
		if math.IsNaN(d) {
			log.Warnf("NaN Cohen's d for locus %s and %q interruption, skipping", row.locusID, unit.unit)
			tally.interruptions++
			continue
		}

		rec := interruptionRecord{
			locusID:         row.locusID,
			referenceRegion: row.referenceRegion,
			motif:           row.motif,
			unit:            unit.unit,
			nCase:           len(cohort.caseDonors),
			nControl:        len(cohort.controlDonors),
			pValue:          p,
			cohenD:          d,
		}
		if p < cmd.cutoff {
			rec.readCounts = encodeAdmittedCounts(cohort, donorCounts(caseCounts), donorCounts(controlCounts))
			rec.interruptionCounts = encodeAdmittedCounts(cohort, vectorCounts(cohort.caseDonors, unit.caseCounts), vectorCounts(cohort.controlDonors, unit.controlCounts))
		}
		records = append(records, rec)
	}
	return records, nil
}

// rawSampleEntries counts comma-separated entries without parsing
// them.
func rawSampleEntries(field string) int {
	if field == "" {
		return 0
	}
	return strings.Count(field, ",") + 1
}

func donorCounts(counts []sampleCount) map[string]float64 {
	m := make(map[string]float64, len(counts))
	for _, sc := range counts {
		m[sc.donor] = sc.count
	}
	return m
}

func vectorCounts(donors []string, vec []float64) map[string]float64 {
	m := make(map[string]float64, len(donors))
	for i, d := range donors {
		m[d] = vec[i]
	}
	return m
}

// encodeAdmittedCounts reconstructs a counts cell in the input
// grammar, restricted to the admitted donors in cohort order: case
// donors first, then control donors.
func encodeAdmittedCounts(cohort *donorCohort, caseVals, controlVals map[string]float64) string {
	entries := make([]string, 0, len(cohort.caseDonors)+len(cohort.controlDonors))
	for _, d := range cohort.caseDonors {
		entries = append(entries, d+"_"+statusCase+":"+formatFloat(caseVals[d]))
	}
	for _, d := range cohort.controlDonors {
		entries = append(entries, d+"_"+statusControl+":"+formatFloat(controlVals[d]))
	}
	return strings.Join(entries, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (cmd *prioritizer) writeRanked(path string, records []interruptionRecord) error {
	tw, err := createTable(path)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(tw, "locus_id\treference_region\tmotif\tinterruption\tn_case\tn_control\tp_value\tcohen_d\n"); err != nil {
		tw.Close()
		return err
	}
	for _, rec := range records {
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			rec.locusID, rec.referenceRegion, rec.motif, rec.unit,
			rec.nCase, rec.nControl, formatFloat(rec.pValue), formatFloat(rec.cohenD))
		if err != nil {
			tw.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return tw.Close()
}

func (cmd *prioritizer) writeSignificant(path string, records []interruptionRecord) error {
	tw, err := createTable(path)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(tw, "locus_id\treference_region\tmotif\tinterruption\tn_case\tn_control\tp_value\tcohen_d\tread_counts\tinterruption_counts\n"); err != nil {
		tw.Close()
		return err
	}
	for _, rec := range records {
		if rec.pValue >= cmd.cutoff {
			continue
		}
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			rec.locusID, rec.referenceRegion, rec.motif, rec.unit,
			rec.nCase, rec.nControl, formatFloat(rec.pValue), formatFloat(rec.cohenD),
			rec.readCounts, rec.interruptionCounts)
		if err != nil {
			tw.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return tw.Close()
}
