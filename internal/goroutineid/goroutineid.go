// Package goroutineid captures the current goroutine id by parsing
// runtime.Stack output. The worker pool uses it to detect whether the async
// surface is being called from a worker goroutine, which changes the
// execution contract for task and forbids wait entirely.
package goroutineid

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

var stackPrefix = []byte("goroutine ")

var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 64)
		return &buf
	},
}

// Get returns the current goroutine id, or 0 if the stack header could not be
// parsed (conservative fallback: 0 never matches a registered worker).
func Get() int64 {
	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)
	buf := *bufp
	n := runtime.Stack(buf, false)
	return parse(buf[:n])
}

// parse extracts the id from a header of the form "goroutine 123 [running]:".
func parse(stack []byte) int64 {
	if !bytes.HasPrefix(stack, stackPrefix) {
		return 0
	}
	rest := stack[len(stackPrefix):]
	end := bytes.IndexByte(rest, ' ')
	if end < 0 {
		end = len(rest)
	}
	id, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
