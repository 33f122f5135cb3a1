// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"io"
	"log"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/stat/distuv"
)

var glmConfig = &glm.Config{
	Family:         glm.NewFamily(glm.BinomialFamily),
	FitMethod:      "IRLS",
	ConcurrentIRLS: 1000,
	Log:            log.New(io.Discard, "", 0),
}

// Logistic regression.
//
// glmPvalue is the likelihood-ratio test of case/control status
// against the interruption count vector: the null model regresses
// status on an intercept only, the full model adds the counts. NaN is
// returned when either fit fails (e.g. a singular or near-singular
// design for constant counts).
func glmPvalue(caseCounts, controlCounts []float64) (p float64) {
	defer func() {
		if recover() != nil {
			// typically "matrix singular or near-singular with condition number +Inf"
			p = math.NaN()
		}
	}()

	n := len(caseCounts) + len(controlCounts)
	outcome := make([]statmodel.Dtype, 0, n)
	constants := make([]statmodel.Dtype, 0, n)
	counts := make([]statmodel.Dtype, 0, n)
	for _, c := range caseCounts {
		outcome = append(outcome, 1)
		constants = append(constants, 1)
		counts = append(counts, c)
	}
	for _, c := range controlCounts {
		outcome = append(outcome, 0)
		constants = append(constants, 1)
		counts = append(counts, c)
	}

	dataset := statmodel.NewDataset([][]statmodel.Dtype{outcome, constants}, []string{"outcome", "constants"})
	model, err := glm.NewGLM(dataset, "outcome", []string{"constants"}, glmConfig)
	if err != nil {
		return math.NaN()
	}
	logNull := model.Fit().LogLike()

	dataset = statmodel.NewDataset([][]statmodel.Dtype{outcome, constants, counts}, []string{"outcome", "constants", "count"})
	model, err = glm.NewGLM(dataset, "outcome", []string{"constants", "count"}, glmConfig)
	if err != nil {
		return math.NaN()
	}
	logFull := model.Fit().LogLike()

	dist := distuv.ChiSquared{K: 1}
	return dist.Survival(-2 * (logNull - logFull))
}
