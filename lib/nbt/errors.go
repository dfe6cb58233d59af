package nbt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedBinary matches every error produced while decoding a stream
	ErrMalformedBinary = errors.New("malformed nbt data")

	ErrUnknownTagType  = errors.New("unknown tag type")
	ErrUnexpectedEOF   = errors.New("unexpected end of stream")
	ErrNegativeLength  = errors.New("negative length")
	ErrRootNotCompound = errors.New("root tag is not a compound")
	ErrWrongTagKind    = errors.New("wrong tag kind")
	ErrTagNotFound     = errors.New("tag not found")
)

// Frame is one tag on the decoding path
type Frame struct {
	Type TagType
	Name string
	// Index is the position inside the parent list, -1 for named tags
	Index int
}

func (f Frame) String() string {
	if f.Index >= 0 {
		return fmt.Sprintf("%s - [%d]", f.Type, f.Index)
	}
	return fmt.Sprintf("%s - %q", f.Type, f.Name)
}

// DecodeError is returned for any failure while reading a stream.
// Stack holds the enclosing tags outermost first, Tag is the one that
// was being read when Err happened.
type DecodeError struct {
	Err    error
	Offset int64
	Stack  []Frame
	Tag    Frame
}

func (err *DecodeError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s at offset %d", err.Err.Error(), err.Offset)
	if len(err.Stack) > 0 {
		sb.WriteString("\nnbt tag stack:")
		for _, f := range err.Stack {
			sb.WriteString("\n    ")
			sb.WriteString(f.String())
		}
	}
	sb.WriteString("\nerror while parsing ")
	sb.WriteString(err.Tag.String())
	return sb.String()
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

func (err *DecodeError) Is(target error) bool {
	return target == ErrMalformedBinary
}

// Path renders the decoding path as `."Level"."sections"[3]."Y"`
func (err *DecodeError) Path() string {
	var sb strings.Builder
	frames := make([]Frame, 0, len(err.Stack)+1)
	frames = append(frames, err.Stack...)
	for _, f := range append(frames, err.Tag) {
		if f.Index >= 0 {
			fmt.Fprintf(&sb, "[%d]", f.Index)
		} else {
			fmt.Fprintf(&sb, ".%q", f.Name)
		}
	}
	return sb.String()
}

// WrongKindError is returned when a tag is read as a type it is not
type WrongKindError struct {
	Name string
	Have TagType
	Want TagType
}

func (err *WrongKindError) Error() string {
	return fmt.Sprintf("%s: %q is %s, not %s", ErrWrongTagKind.Error(), err.Name, err.Have, err.Want)
}

func (err *WrongKindError) Is(target error) bool {
	return target == ErrWrongTagKind || target == ErrMalformedBinary
}
