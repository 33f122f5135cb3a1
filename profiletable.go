// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// profileRow is one locus of a merged profile table. The two counts
// fields are kept in their encoded form; see samples.go for the
// grammar.
type profileRow struct {
	locusID            string
	referenceRegion    string
	motif              string
	readCounts         string
	interruptionCounts string
}

var profileColumns = []string{"locus_id", "reference_region", "motif", "read_counts", "interruption_counts"}

// profileReader streams a merged profile table in batches of rows.
// It makes a single forward pass; it is not restartable.
type profileReader struct {
	rc   io.ReadCloser
	tsv  *csv.Reader
	cols map[string]int
}

func openProfileReader(path string) (*profileReader, error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, err
	}
	tsv := csv.NewReader(rc)
	tsv.Comma = '\t'
	tsv.LazyQuotes = true
	header, err := tsv.Read()
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("%s: cannot read header: %w", path, err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range profileColumns {
		if _, ok := cols[name]; !ok {
			rc.Close()
			return nil, fmt.Errorf("%s: missing column %q in header", path, name)
		}
	}
	return &profileReader{rc: rc, tsv: tsv, cols: cols}, nil
}

// next returns the next batch of up to n rows, in source order. It
// returns io.EOF after the last batch has been consumed.
func (r *profileReader) next(n int) ([]profileRow, error) {
	rows := make([]profileRow, 0, n)
	for len(rows) < n {
		rec, err := r.tsv.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		rows = append(rows, profileRow{
			locusID:            rec[r.cols["locus_id"]],
			referenceRegion:    rec[r.cols["reference_region"]],
			motif:              rec[r.cols["motif"]],
			readCounts:         rec[r.cols["read_counts"]],
			interruptionCounts: rec[r.cols["interruption_counts"]],
		})
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return rows, nil
}

func (r *profileReader) Close() error {
	return r.rc.Close()
}

// countProfileRows counts the data rows (excluding the header) of a
// profile table, for progress reporting.
func countProfileRows(path string) (int, error) {
	rc, err := openFile(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	var lines int
	var last byte
	buf := make([]byte, 1<<20)
	for {
		n, err := rc.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				lines++
			}
		}
		if n > 0 {
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		} else if err != nil {
			return 0, err
		}
	}
	if last != 0 && last != '\n' {
		lines++
	}
	if lines > 0 {
		lines-- // header
	}
	return lines, nil
}

type gzReadCloser struct {
	io.Reader
	f  *os.File
	gz *pgzip.Reader
}

func (rc gzReadCloser) Close() error {
	rc.gz.Close()
	return rc.f.Close()
}

type fileReadCloser struct {
	io.Reader
	f *os.File
}

func (rc fileReadCloser) Close() error {
	return rc.f.Close()
}

// openFile opens path for reading, decompressing transparently if the
// name ends in ".gz".
func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(f, 4*1024*1024)
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: gzip: %w", path, err)
		}
		return gzReadCloser{Reader: gz, f: f, gz: gz}, nil
	}
	return fileReadCloser{Reader: br, f: f}, nil
}

// tableWriter writes a tab-separated file, compressing if the name
// ends in ".gz".
type tableWriter struct {
	io.Writer
	f    *os.File
	bufw *bufio.Writer
	gzw  *pgzip.Writer
}

func createTable(path string) (*tableWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0777)
	if err != nil {
		return nil, err
	}
	tw := &tableWriter{f: f, bufw: bufio.NewWriter(f)}
	tw.Writer = tw.bufw
	if strings.HasSuffix(path, ".gz") {
		tw.gzw = pgzip.NewWriter(tw.bufw)
		tw.Writer = tw.gzw
	}
	return tw, nil
}

func (tw *tableWriter) Close() error {
	if tw.gzw != nil {
		if err := tw.gzw.Close(); err != nil {
			tw.f.Close()
			return err
		}
	}
	if err := tw.bufw.Flush(); err != nil {
		tw.f.Close()
		return err
	}
	return tw.f.Close()
}
