// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(rand.Uint64())}

// rankSumPvalue computes the two-sided Mann-Whitney rank-sum p-value
// for two independent samples. The exact null distribution is used
// when both samples have at most 8 observations and the pooled sample
// is tie-free; otherwise the normal approximation with tie and
// continuity corrections. Degenerate input (an empty sample, or all
// observations identical) yields NaN.
func rankSumPvalue(caseCounts, controlCounts []float64) float64 {
	n1, n2 := len(caseCounts), len(controlCounts)
	if n1 == 0 || n2 == 0 {
		return math.NaN()
	}
	pooled := make([]float64, 0, n1+n2)
	pooled = append(append(pooled, caseCounts...), controlCounts...)
	ranks, tieTerm := tiedRanks(pooled)
	r1 := 0.0
	for _, r := range ranks[:n1] {
		r1 += r
	}
	u1 := r1 - float64(n1*(n1+1))/2
	if tieTerm == 0 && n1 <= 8 && n2 <= 8 {
		return rankSumExact(u1, n1, n2)
	}
	nn := float64(n1) * float64(n2)
	bigN := float64(n1 + n2)
	mu := nn / 2
	sigma2 := nn / 12 * (bigN + 1 - tieTerm/(bigN*(bigN-1)))
	if sigma2 <= 0 {
		return math.NaN()
	}
	u := math.Max(u1, nn-u1)
	z := (u - mu - 0.5) / math.Sqrt(sigma2)
	return math.Min(1, 2*stdNormal.Survival(z))
}

// rankSumExact enumerates the tie-free null distribution of the U
// statistic: the number of ways n1 of the ranks 1..n1+n2 can sum to
// each possible rank total.
func rankSumExact(u1 float64, n1, n2 int) float64 {
	bigN := n1 + n2
	maxSum := n1 * (2*bigN - n1 + 1) / 2
	counts := make([][]float64, n1+1)
	for k := range counts {
		counts[k] = make([]float64, maxSum+1)
	}
	counts[0][0] = 1
	for i := 1; i <= bigN; i++ {
		for k := n1; k >= 1; k-- {
			for s := maxSum; s >= i; s-- {
				counts[k][s] += counts[k-1][s-i]
			}
		}
	}
	r1 := int(math.Round(u1)) + n1*(n1+1)/2
	var cdf, sf, total float64
	for s, c := range counts[n1] {
		total += c
		if s <= r1 {
			cdf += c
		}
		if s >= r1 {
			sf += c
		}
	}
	return math.Min(1, 2*math.Min(cdf, sf)/total)
}

// signedRankPvalue computes the two-sided Wilcoxon signed-rank
// p-value for paired samples of equal length. Zero differences are
// dropped; if all differences are zero the result is NaN. The exact
// null distribution is used up to 25 non-zero differences when their
// magnitudes are tie-free, else the tie-corrected normal
// approximation.
func signedRankPvalue(caseCounts, controlCounts []float64) float64 {
	diffs := make([]float64, 0, len(caseCounts))
	for i := range caseCounts {
		if d := caseCounts[i] - controlCounts[i]; d != 0 {
			diffs = append(diffs, d)
		}
	}
	n := len(diffs)
	if n == 0 {
		return math.NaN()
	}
	abs := make([]float64, n)
	for i, d := range diffs {
		abs[i] = math.Abs(d)
	}
	ranks, tieTerm := tiedRanks(abs)
	w := 0.0
	for i, d := range diffs {
		if d > 0 {
			w += ranks[i]
		}
	}
	if tieTerm == 0 && n <= 25 {
		return signedRankExact(w, n)
	}
	nf := float64(n)
	mu := nf * (nf + 1) / 4
	sigma2 := nf*(nf+1)*(2*nf+1)/24 - tieTerm/48
	if sigma2 <= 0 {
		return math.NaN()
	}
	z := (w - mu) / math.Sqrt(sigma2)
	return math.Min(1, 2*stdNormal.Survival(math.Abs(z)))
}

// signedRankExact enumerates the tie-free null distribution of the
// positive rank sum W over all 2^n sign assignments.
func signedRankExact(w float64, n int) float64 {
	maxW := n * (n + 1) / 2
	counts := make([]float64, maxW+1)
	counts[0] = 1
	for r := 1; r <= n; r++ {
		for s := maxW; s >= r; s-- {
			counts[s] += counts[s-r]
		}
	}
	wi := int(math.Round(w))
	var cdf, sf, total float64
	for s, c := range counts {
		total += c
		if s <= wi {
			cdf += c
		}
		if s >= wi {
			sf += c
		}
	}
	return math.Min(1, 2*math.Min(cdf, sf)/total)
}

// cohenD computes the standardized mean difference with the
// pooled sample-variance formulation.
func cohenD(caseCounts, controlCounts []float64) float64 {
	nx := float64(len(caseCounts))
	ny := float64(len(controlCounts))
	dof := nx + ny - 2
	if dof <= 0 {
		return math.NaN()
	}
	pooled := ((nx-1)*stat.Variance(caseCounts, nil) + (ny-1)*stat.Variance(controlCounts, nil)) / dof
	return (stat.Mean(caseCounts, nil) - stat.Mean(controlCounts, nil)) / math.Sqrt(pooled)
}

// tiedRanks assigns 1-based ranks with ties sharing their average
// rank, and also returns the tie-correction term Σ(t³−t).
func tiedRanks(v []float64) ([]float64, float64) {
	n := len(v)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })
	ranks := make([]float64, n)
	tieTerm := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && v[idx[j]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		t := float64(j - i)
		tieTerm += t*t*t - t
		i = j
	}
	return ranks, tieTerm
}
