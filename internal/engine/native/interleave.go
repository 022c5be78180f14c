package native

import (
	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// sample is a packet owned by a native writer. Timestamps are in the stream
// timebase set at header time.
type sample struct {
	stream   int
	pts      int64
	dts      int64
	duration int64
	key      bool
	data     []byte
}

// interleaver orders packets of all streams by decode time. A packet is
// released once every stream has something queued, so nothing earlier can
// still arrive, or once the queued span exceeds maxSpan.
type interleaver struct {
	tbs     []timebase.Rational
	queues  [][]sample
	lastDTS []int64
	maxSpan int64
	spanTB  timebase.Rational
}

func newInterleaver(tbs []timebase.Rational, maxSpanMs int64) *interleaver {
	il := &interleaver{
		tbs:     tbs,
		queues:  make([][]sample, len(tbs)),
		lastDTS: make([]int64, len(tbs)),
		maxSpan: maxSpanMs,
		spanTB:  timebase.Millisecond,
	}
	for i := range il.lastDTS {
		il.lastDTS[i] = timebase.NoTimestamp
	}
	return il
}

// push queues s and returns the packets that can be written now, in order.
func (il *interleaver) push(s sample) []sample {
	if s.dts == timebase.NoTimestamp {
		s.dts = s.pts
	}
	if s.dts == timebase.NoTimestamp {
		s.dts = il.lastDTS[s.stream]
		if s.dts == timebase.NoTimestamp {
			s.dts = 0
		}
	}
	if s.pts == timebase.NoTimestamp {
		s.pts = s.dts
	}
	il.lastDTS[s.stream] = s.dts
	il.queues[s.stream] = append(il.queues[s.stream], s)

	var out []sample
	for il.ready() {
		out = append(out, il.pop())
	}
	return out
}

// flush returns every queued packet in order.
func (il *interleaver) flush() []sample {
	var out []sample
	for il.head() >= 0 {
		out = append(out, il.pop())
	}
	return out
}

func (il *interleaver) ready() bool {
	h := il.head()
	if h < 0 {
		return false
	}
	full := true
	for _, q := range il.queues {
		if len(q) == 0 {
			full = false
			break
		}
	}
	if full {
		return true
	}
	first := il.queues[h][0]
	for i, q := range il.queues {
		if len(q) == 0 {
			continue
		}
		tail := q[len(q)-1]
		span := timebase.Rescale(tail.dts, il.tbs[i], il.spanTB) - timebase.Rescale(first.dts, il.tbs[h], il.spanTB)
		if span > il.maxSpan {
			return true
		}
	}
	return false
}

// head returns the stream whose first queued packet has the smallest decode
// time, or -1 when nothing is queued. Ties go to the lower stream index.
func (il *interleaver) head() int {
	best := -1
	for i, q := range il.queues {
		if len(q) == 0 {
			continue
		}
		if best < 0 || timebase.Compare(q[0].dts, il.tbs[i], il.queues[best][0].dts, il.tbs[best]) < 0 {
			best = i
		}
	}
	return best
}

func (il *interleaver) pop() sample {
	h := il.head()
	s := il.queues[h][0]
	il.queues[h] = il.queues[h][1:]
	return s
}
