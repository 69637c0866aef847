//Package werr holds the error taxonomy shared by every westore package and
//the decorated error type they return.
package werr

import (
	"errors"
	"fmt"
	"strings"
)

//Taxonomy. Every *Error unwraps to exactly one of these.
var (
	SchemaConflict     = errors.New("schema conflict")
	ShapeMismatch      = errors.New("shape mismatch")
	FieldNotFound      = errors.New("field not found")
	InvalidContig      = errors.New("invalid contig")
	ModeViolation      = errors.New("mode violation")
	FrameCountMismatch = errors.New("frame count mismatch")
	TooManyDimensions  = errors.New("too many dimensions")
	Closed             = errors.New("archive is closed")
	RunNotFound        = errors.New("run not found")
	Locked             = errors.New("archive locked by another writer")
)

//Error is the general structure for westore errors. It carries the file
//involved (or an empty string), the chain of callers that decorated it, and
//the taxonomy kind it belongs to.
type Error struct {
	message  string
	filename string
	deco     []string
	kind     error
	critical bool
}

//New returns an *Error of the given kind. caller is the first decoration.
func New(kind error, filename, caller, format string, args ...any) *Error {
	e := &Error{
		message:  fmt.Sprintf(format, args...),
		filename: filename,
		kind:     kind,
		critical: true,
	}
	if caller != "" {
		e.deco = []string{caller}
	}
	return e
}

func (err *Error) Error() string {
	var b strings.Builder
	if err.filename != "" {
		fmt.Fprintf(&b, "westore file %s ", err.filename)
	} else {
		b.WriteString("westore ")
	}
	fmt.Fprintf(&b, "%s: %s", err.kind, err.message)
	return b.String()
}

//Unwrap returns the taxonomy sentinel, so errors.Is works against it.
func (err *Error) Unwrap() error { return err.kind }

//Decorate adds new information to the error and returns the whole decoration
//slice. An empty string adds nothing.
func (err *Error) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//FileName returns the archive file the error is associated to.
func (err *Error) FileName() string { return err.filename }

//Kind returns the taxonomy sentinel of the error.
func (err *Error) Kind() error { return err.kind }

//Critical is true for errors that leave the operation unfinished.
func (err *Error) Critical() bool { return err.critical }

//Decorations returns the callers that handled the error, innermost first.
func (err *Error) Decorations() []string { return err.deco }

//Decorate decorates err with caller if it is an *Error and returns it. Any
//other error is wrapped so the message keeps the caller name. nil stays nil.
func Decorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		e.Decorate(caller)
		return err
	}
	return fmt.Errorf("%s: %w", caller, err)
}
