package timebase

import (
	"fmt"
	"math"
	"math/bits"
)

// NoTimestamp marks an unset timestamp. It is never rescaled.
const NoTimestamp int64 = math.MinInt64

// Rational is the number of seconds represented by one timestamp unit.
type Rational struct {
	Num int
	Den int
}

// New returns num/den.
func New(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

var (
	Second      = Rational{Num: 1, Den: 1}
	Millisecond = Rational{Num: 1, Den: 1000}
)

// Valid reports whether both terms are positive.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float64 returns the unit as a floating point number of seconds.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Rescale converts ts from units of from into units of to, rounding to the
// nearest value with ties away from zero. The product is computed on 128
// bits so large timestamps do not overflow. NoTimestamp and results that do
// not fit an int64 yield NoTimestamp.
func Rescale(ts int64, from, to Rational) int64 {
	if ts == NoTimestamp || !from.Valid() || !to.Valid() {
		return NoTimestamp
	}
	b := uint64(from.Num) * uint64(to.Den)
	c := uint64(from.Den) * uint64(to.Num)

	neg := ts < 0
	a := uint64(ts)
	if neg {
		a = uint64(-ts)
	}

	hi, lo := bits.Mul64(a, b)
	var carry uint64
	lo, carry = bits.Add64(lo, c/2, 0)
	hi += carry
	if hi >= c {
		return NoTimestamp
	}
	q, _ := bits.Div64(hi, lo, c)
	if q > math.MaxInt64 {
		return NoTimestamp
	}
	if neg {
		return -int64(q)
	}
	return int64(q)
}

// Compare orders a (in units of tbA) against b (in units of tbB) without
// rounding. It returns -1, 0 or 1.
func Compare(a int64, tbA Rational, b int64, tbB Rational) int {
	l := mul128(a, uint64(tbA.Num)*uint64(tbB.Den))
	r := mul128(b, uint64(tbB.Num)*uint64(tbA.Den))
	return l.cmp(r)
}

// Seconds converts ts to seconds. Only meant for logs and progress output.
func Seconds(ts int64, tb Rational) float64 {
	if ts == NoTimestamp {
		return math.NaN()
	}
	return float64(ts) * tb.Float64()
}

type int128 struct {
	neg    bool
	hi, lo uint64
}

func mul128(x int64, k uint64) int128 {
	mag := uint64(x)
	if x < 0 {
		mag = uint64(-x)
	}
	hi, lo := bits.Mul64(mag, k)
	return int128{neg: x < 0 && (hi|lo) != 0, hi: hi, lo: lo}
}

func (v int128) cmp(o int128) int {
	if v.neg != o.neg {
		if v.neg {
			return -1
		}
		return 1
	}
	c := 0
	switch {
	case v.hi < o.hi, v.hi == o.hi && v.lo < o.lo:
		c = -1
	case v.hi > o.hi, v.hi == o.hi && v.lo > o.lo:
		c = 1
	}
	if v.neg {
		return -c
	}
	return c
}
