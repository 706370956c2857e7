// Package assert is the kernel's fatal-error facility. A failed assertion
// prints "file:line: failed assertion `expr'" and halts. Assertions guard
// internal consistency only (tables out of sync, missing handlers, bad
// vectors); nothing driven by external input should ever trip one.
package assert

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sync"
)

// Halt is the panic value raised by the default halt function. Whoever owns
// the CPU (the Machine) recovers it and stops executing.
type Halt struct {
	File       string
	Line       int
	Expression string
}

func (h *Halt) Error() string {
	return fmt.Sprintf("%s:%d: failed assertion `%s'", h.File, h.Line, h.Expression)
}

var (
	mu     sync.Mutex
	haltFn = func(h *Halt) { panic(h) }
)

// SetHaltFunc installs fn as the halt routine and returns the previous one.
// fn must not return if execution is really expected to stop.
func SetHaltFunc(fn func(*Halt)) func(*Halt) {
	mu.Lock()
	defer mu.Unlock()
	prev := haltFn
	haltFn = fn
	return prev
}

// That halts with expr as the diagnostic when cond is false.
func That(cond bool, expr string) {
	if cond {
		return
	}
	fail(2, expr)
}

// Failf halts unconditionally with a formatted diagnostic.
func Failf(format string, args ...interface{}) {
	fail(2, fmt.Sprintf(format, args...))
}

func fail(skip int, expr string) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file, line = "???", 0
	}
	h := &Halt{File: filepath.Base(file), Line: line, Expression: expr}
	log.Print(h.Error())

	mu.Lock()
	fn := haltFn
	mu.Unlock()
	fn(h)
}

// Recover converts a Halt panic into a returned value. Any other panic is
// re-raised. Use it as `defer func() { h = assert.Recover(recover()) }()`.
func Recover(r interface{}) *Halt {
	if r == nil {
		return nil
	}
	if h, ok := r.(*Halt); ok {
		return h
	}
	panic(r)
}
