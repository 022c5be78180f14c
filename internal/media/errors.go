package media

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies session failures. Every kind is fatal.
type ErrorKind int

const (
	OpenError ErrorKind = iota + 1
	StreamAllocationError
	ParameterCopyError
	HeaderWriteError
	PacketWriteError
	EncodeError
	ResampleError
	BufferWritabilityError
	ScaleError
)

func (k ErrorKind) String() string {
	switch k {
	case OpenError:
		return "open error"
	case StreamAllocationError:
		return "stream allocation error"
	case ParameterCopyError:
		return "parameter copy error"
	case HeaderWriteError:
		return "header write error"
	case PacketWriteError:
		return "packet write error"
	case EncodeError:
		return "encode error"
	case ResampleError:
		return "resample error"
	case BufferWritabilityError:
		return "buffer writability error"
	case ScaleError:
		return "scale error"
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Error is a classified failure with the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError classifies err. A nil err still produces an error so callers can
// report engine refusals that carry no cause.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Op: fmt.Sprintf(format, args...), Err: err})
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// ErrAgain is returned by Encoder.ReceivePacket when no packet is available
// until more input is sent. It is not terminal.
var ErrAgain = errors.New("resource temporarily unavailable")
