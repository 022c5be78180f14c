package remux

import (
	"log/slog"
	"sort"

	"github.com/vishalkuo/bimap"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
)

// Entry is one input to output assignment.
type Entry struct {
	Input  int
	Output int
}

// Mapping assigns compacted output indices to the relevant input streams.
// It is built once per session and never changes afterwards.
type Mapping struct {
	table  *bimap.BiMap[int, int]
	inputs int
}

func newMapping(inputs int) *Mapping {
	return &Mapping{
		table:  bimap.NewBiMap[int, int](),
		inputs: inputs,
	}
}

// Output returns the output index for an input stream. Indices outside the
// input range report false like any other unmapped stream.
func (m *Mapping) Output(input int) (int, bool) {
	if input < 0 || input >= m.inputs {
		return 0, false
	}
	return m.table.Get(input)
}

// Input returns the input stream feeding an output stream.
func (m *Mapping) Input(output int) (int, bool) {
	return m.table.GetInverse(output)
}

// Len returns the number of mapped streams.
func (m *Mapping) Len() int {
	return m.table.Size()
}

// Entries returns the assignments ordered by input index.
func (m *Mapping) Entries() []Entry {
	entries := make([]Entry, 0, m.table.Size())
	for in, out := range m.table.GetForwardMap() {
		entries = append(entries, Entry{Input: in, Output: out})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Input < entries[j].Input })
	return entries
}

// BuildMapping walks inputs in index order and creates one output stream in
// out for each stream whose kind is relevant. Output indices are compacted:
// a relevant input stream maps to its index minus the number of skipped
// streams before it. Codec parameters are copied verbatim except for the
// codec tag, which is container specific and reset to 0.
func BuildMapping(inputs []media.Stream, out media.OutputContainer, relevant media.KindSet, logger *slog.Logger) (*Mapping, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ordered := append([]media.Stream(nil), inputs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index() < ordered[j].Index() })

	m := newMapping(len(ordered))
	skipped := 0
	for pos, in := range ordered {
		if !relevant.Has(in.Kind()) {
			skipped++
			logger.Debug("Skipping input stream", "input", in.Index(), "kind", in.Kind().String())
			continue
		}
		want := pos - skipped

		st, err := out.NewStream()
		if err != nil {
			return nil, media.WrapError(media.StreamAllocationError, err, "allocating output stream for input #%d", in.Index())
		}
		if st.Index() != want {
			return nil, media.WrapError(media.StreamAllocationError, nil,
				"output stream for input #%d got index %d, expected %d", in.Index(), st.Index(), want)
		}
		if err := in.CodecParameters().CopyTo(st.CodecParameters()); err != nil {
			return nil, media.WrapError(media.ParameterCopyError, err, "copying codec parameters of input #%d", in.Index())
		}
		st.CodecParameters().SetCodecTag(0)

		m.table.Insert(in.Index(), want)
		logger.Debug("Mapped stream", "input", in.Index(), "output", want, "kind", in.Kind().String())
	}
	return m, nil
}

// Plan computes the assignments BuildMapping would make for streams
// without touching any container.
func Plan(streams []media.StreamInfo, relevant media.KindSet) []Entry {
	ordered := append([]media.StreamInfo(nil), streams...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var entries []Entry
	skipped := 0
	for pos, s := range ordered {
		if !relevant.Has(s.Kind) {
			skipped++
			continue
		}
		entries = append(entries, Entry{Input: s.Index, Output: pos - skipped})
	}
	return entries
}
