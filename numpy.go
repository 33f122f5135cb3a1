// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"bufio"
	"io"
	"os"

	"github.com/kshedden/gonpy"
)

// writeRecordMatrix writes the ranked records as an (nrecords, 4)
// float64 numpy matrix with columns p_value, cohen_d, n_case,
// n_control, for downstream plotting.
func writeRecordMatrix(path string, records []interruptionRecord) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0777)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = []int{len(records), 4}
	data := make([]float64, 0, len(records)*4)
	for _, rec := range records {
		data = append(data, rec.pValue, rec.cohenD, float64(rec.nCase), float64(rec.nControl))
	}
	if err := npw.WriteFloat64(data); err != nil {
		return err
	}
	if err := bufw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
