package collector

import "fmt"

// ErrorKind classifies a recorded error.
type ErrorKind int

const (
	// KindRuntime is a hard runtime error, such as an unrecovered panic.
	KindRuntime ErrorKind = iota + 1
	// KindParse is a parse error of code or configuration loaded at runtime.
	KindParse
	// KindCompile is a compile error of code loaded at runtime.
	KindCompile
	// KindUser is an error reported explicitly by the host application.
	KindUser
	// KindServer is a server error outcome (HTTP status >= 500).
	KindServer
	// KindWarning is a non-fatal diagnostic.
	KindWarning
)

var kindNames = map[ErrorKind]string{
	KindRuntime: "runtime",
	KindParse:   "parse",
	KindCompile: "compile",
	KindUser:    "user",
	KindServer:  "server",
	KindWarning: "warning",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsFatal reports whether the kind means the process is terminating
// abnormally.
func (k ErrorKind) IsFatal() bool {
	switch k {
	case KindRuntime, KindParse, KindCompile:
		return true
	default:
		return false
	}
}

// FatalError is the error record attached to a session.
type FatalError struct {
	Message string
	File    string
	Line    int
	Kind    ErrorKind
}

func (e *FatalError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error: %s (%s:%d)", e.Kind, e.Message, e.File, e.Line)
}
