package param

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution names the family a parameter is drawn from.
type Distribution string

const (
	Uniform   Distribution = "uniform"
	Triangle  Distribution = "triangle"
	Normal    Distribution = "normal"
	LogNormal Distribution = "lognormal"
	Discrete  Distribution = "discrete"
)

// ParseDistribution parses a distribution name (case-insensitive).
func ParseDistribution(s string) (Distribution, error) {
	d := Distribution(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Uniform, Triangle, Normal, LogNormal, Discrete:
		return d, nil
	}
	return "", fmt.Errorf("unknown distribution %q (want uniform|triangle|normal|lognormal|discrete)", s)
}

// quantile maps u in [0,1] onto the parameter's distribution. Normal and
// lognormal families are truncated to [Low, High] by inverting the CDF over
// the truncated mass. The result is always clamped into [Low, High].
func (p Parameter) quantile(u float64) float64 {
	u = math.Min(1, math.Max(0, u))

	var v float64
	switch p.Distribution {
	case Uniform:
		v = distuv.Uniform{Min: p.Low, Max: p.High}.Quantile(u)
	case Triangle:
		v = distuv.NewTriangle(p.Low, p.High, p.Default, nil).Quantile(u)
	case Normal:
		v = truncatedQuantile(distuv.Normal{Mu: p.Default, Sigma: p.Std}, p.Low, p.High, u)
	case LogNormal:
		v = truncatedQuantile(distuv.LogNormal{Mu: math.Log(p.Default), Sigma: p.Std}, p.Low, p.High, u)
	case Discrete:
		idx := int(u * float64(len(p.Values)))
		if idx >= len(p.Values) {
			idx = len(p.Values) - 1
		}
		v = p.Values[idx]
	default:
		v = p.Default
	}

	return math.Min(p.High, math.Max(p.Low, v))
}

type cdfQuantiler interface {
	CDF(x float64) float64
	Quantile(p float64) float64
}

func truncatedQuantile(d cdfQuantiler, low, high, u float64) float64 {
	a, b := d.CDF(low), d.CDF(high)
	if b <= a {
		// All mass outside the bounds; fall back to the bounded midpoint.
		return (low + high) / 2
	}
	return d.Quantile(a + u*(b-a))
}
