package hostenv

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/coral-mesh/coral-collect/pkg/collector"
)

// panicError converts a recovered panic value into a runtime fatal record.
// The location is the frame that raised the panic, read from stack as
// produced by runtime/debug.Stack.
func panicError(v any, stack []byte) *collector.FatalError {
	var message string
	switch val := v.(type) {
	case error:
		message = val.Error()
	case string:
		message = val
	default:
		message = fmt.Sprint(val)
	}

	file, line := panicLocation(stack)
	return &collector.FatalError{
		Message: message,
		File:    file,
		Line:    line,
		Kind:    collector.KindRuntime,
	}
}

// panicLocation finds the file:line of the first non-runtime frame below
// the panic call.
func panicLocation(stack []byte) (string, int) {
	scanner := bufio.NewScanner(bytes.NewReader(stack))
	sawPanic := false
	inRuntime := false

	for scanner.Scan() {
		text := scanner.Text()
		if !strings.HasPrefix(text, "\t") {
			if strings.HasPrefix(text, "panic(") {
				sawPanic = true
			}
			inRuntime = isRuntimeFrame(text)
			continue
		}
		if sawPanic && !inRuntime {
			return parseLocation(text)
		}
	}
	return "", 0
}

func isRuntimeFrame(fn string) bool {
	return strings.HasPrefix(fn, "panic(") ||
		strings.HasPrefix(fn, "runtime.") ||
		strings.HasPrefix(fn, "internal/runtime/")
}

// parseLocation parses "\t/path/to/file.go:42 +0x1d".
func parseLocation(text string) (string, int) {
	text = strings.TrimSpace(text)
	if i := strings.LastIndex(text, " +0x"); i >= 0 {
		text = text[:i]
	}
	i := strings.LastIndex(text, ":")
	if i < 0 {
		return text, 0
	}
	line, err := strconv.Atoi(text[i+1:])
	if err != nil {
		return text, 0
	}
	return text[:i], line
}
