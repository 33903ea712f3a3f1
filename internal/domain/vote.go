package domain

import (
	"math"
	"strconv"
	"strings"
)

// Vote is an estimate token. The empty value means "not voted yet".
type Vote string

const (
	NoVote Vote = ""
	Unsure Vote = "?"
)

func (v Vote) IsSet() bool { return v != NoVote }

// Numeric reports the estimate as a number. Unset, "?" and any other
// non-numeric token are not numeric.
func (v Vote) Numeric() (float64, bool) {
	if !v.IsSet() || v == Unsure {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Average is the mean of the numeric votes. ok is false when none are numeric.
func Average(votes map[string]Vote) (avg float64, ok bool) {
	var sum float64
	n := 0
	for _, v := range votes {
		f, isNum := v.Numeric()
		if !isNum {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
