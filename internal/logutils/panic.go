package logutils

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/maruel/panicparse/stack"
	"github.com/rs/zerolog/log"
	"github.com/thoas/go-funk"
)

// PanicError is a recovered panic with the goroutine dump at the time of panic.
type PanicError struct {
	Reason string
	Stack  string

	GoroutineBuckets []*stack.Bucket
}

func (pe PanicError) Error() string {
	return pe.Reason
}

func (pe PanicError) Pretty() string {
	return fmt.Sprintf("%s\n\n%s", pe.Reason, pe.Stack)
}

// WrapRecover converts a value from recover() into a *PanicError.
// It returns nil if there was no panic.
func WrapRecover(r interface{}) *PanicError {
	if r == nil {
		return nil
	}
	reason := fmt.Sprintf("panic: %s", r)

	dump := captureStack()
	c, err := stack.ParseDump(bytes.NewReader(dump), io.Discard, true)
	if err != nil || c == nil {
		log.Warn().Err(err).Msg("unable to parse panic stacktrace")
		return &PanicError{
			Reason: reason,
			Stack:  string(dump),
		}
	}

	// group similar goroutine traces into buckets
	buckets := stack.Aggregate(c.Goroutines, stack.AnyValue)
	return &PanicError{
		Reason:           reason,
		Stack:            prettyPrint(buckets),
		GoroutineBuckets: buckets,
	}
}

func captureStack() []byte {
	st := make([]byte, 4096)
	for {
		n := runtime.Stack(st, true)
		if n < len(st) {
			return st[:n]
		}
		st = make([]byte, 2*len(st))
	}
}

func prettyPrint(buckets []*stack.Bucket) string {
	srcLen := 0
	for _, bucket := range buckets {
		for _, line := range bucket.Signature.Stack.Calls {
			if l := len(line.SrcLine()); l > srcLen {
				srcLen = l
			}
		}
	}

	var sb strings.Builder
	for i, bucket := range buckets {
		index, _ := funk.FindKey(bucket.Stack.Calls, func(line stack.Call) bool {
			return line.Func.Name() == "panic"
		})
		if i == 0 && index != nil {
			// drop frames of the recovery itself
			bucket.Stack.Calls = bucket.Stack.Calls[index.(int)+1:]
		} else if i != 0 {
			sb.WriteString("\n\x1b[2m")
		}

		extra := ""
		if s := bucket.SleepString(); s != "" {
			extra += "[" + s + "]"
		}
		if bucket.Locked {
			extra += "[locked]"
		}
		if c := bucket.CreatedByString(false); c != "" {
			extra += "[created by " + c + "]"
		}
		fmt.Fprintf(&sb, "%s: %s %s\n", goroutineIDs(bucket.IDs), bucket.State, extra)

		for _, line := range bucket.Stack.Calls {
			fmt.Fprintf(&sb, "    %-*s  %s(%s)\n", srcLen, line.SrcLine(), line.Func.PkgDotName(), &line.Args)
		}
		if bucket.Stack.Elided {
			sb.WriteString("    (...)\n")
		}
		if i != 0 {
			sb.WriteString("\x1b[0m")
		}
	}
	return sb.String()
}

func goroutineIDs(ids []int) string {
	if len(ids) >= 3 {
		return fmt.Sprintf("Group of %d goroutines", len(ids))
	}
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(ss, ", ")
}
