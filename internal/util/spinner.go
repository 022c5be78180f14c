package util

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner shows progress on an interactive terminal. When disabled it
// writes plain status lines instead, which keeps logs and pipes readable.
type Spinner struct {
	sp  *spinner.Spinner
	out io.Writer
}

// NewSpinner starts a spinner with message. interactive is false for
// verbose runs and non-terminal outputs.
func NewSpinner(out io.Writer, interactive bool, message string) *Spinner {
	s := &Spinner{out: out}
	if interactive {
		// Use dots spinner style (CharSet 14)
		s.sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
		s.sp.Prefix = "  "
		s.sp.Suffix = " " + message
		s.sp.Start()
	} else {
		fmt.Fprintf(out, "%s\n", message)
	}
	return s
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	if s.sp != nil {
		s.sp.Lock()
		s.sp.Suffix = " " + message
		s.sp.Unlock()
	}
}

// Success stops the spinner and prints a success message
func (s *Spinner) Success(message string) {
	s.finish("✓", message)
}

// Fail stops the spinner and prints an error message
func (s *Spinner) Fail(message string) {
	s.finish("✗", message)
}

func (s *Spinner) finish(mark, message string) {
	if s.sp != nil {
		s.sp.Stop()
		fmt.Fprintf(s.out, "\r\033[K  %s %s\n", mark, message) // \033[K clears the line
		return
	}
	fmt.Fprintf(s.out, "%s %s\n", mark, message)
}
