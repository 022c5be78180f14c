package transcode

import (
	"context"

	"github.com/babelcloud/gbox/packages/avtool/internal/timebase"
)

// Scheduler interleaves output streams by always advancing the one whose
// clock is furthest behind.
type Scheduler struct {
	streams  []*OutputStream
	driver   *Driver
	steps    int
	progress func(st *OutputStream)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithProgress registers a callback invoked after every step.
func WithProgress(fn func(st *OutputStream)) SchedulerOption {
	return func(s *Scheduler) {
		s.progress = fn
	}
}

// NewScheduler schedules streams in registration order. Ties go to the
// earliest registered stream.
func NewScheduler(driver *Driver, streams []*OutputStream, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{streams: streams, driver: driver}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the stream to advance, or nil once every stream is done.
func (s *Scheduler) Next() *OutputStream {
	var pick *OutputStream
	for _, st := range s.streams {
		if st.state == Done {
			continue
		}
		if pick == nil || timebase.Compare(st.NextPTS, st.TimeBase(), pick.NextPTS, pick.TimeBase()) < 0 {
			pick = st
		}
	}
	return pick
}

// Run steps streams until all of them are drained. It stops at the first
// step error or when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		st := s.Next()
		if st == nil {
			return nil
		}
		if err := s.driver.Step(st); err != nil {
			return err
		}
		s.steps++
		if s.progress != nil {
			s.progress(st)
		}
	}
}

// Steps returns how many steps Run performed.
func (s *Scheduler) Steps() int {
	return s.steps
}
