package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/darbinreyes/os-from-scratch/core_engine"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/scancode"
)

const (
	ctrlC     = 0x03
	ctrlD     = 0x04
	del       = 0x7F
	pollMilli = 100
)

// runTerminal puts stdin in raw mode and types each byte read into the
// machine until Ctrl-C, Ctrl-D or ctx is done.
func runTerminal(ctx context.Context, m *core_engine.Machine) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("stdin is not a terminal")
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, old)

	buf := make([]byte, 64)
	for ctx.Err() == nil {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollMilli)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll stdin: %w", err)
		}
		if n == 0 || fds[0].Revents&unix.POLLIN == 0 {
			continue
		}
		r, err := os.Stdin.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		for _, c := range buf[:r] {
			switch c {
			case ctrlC, ctrlD:
				return nil
			case '\r':
				c = '\n'
			case del:
				c = '\b'
			}
			m.TypeScanCodes(scancode.Encode(c))
		}
	}
	return nil
}

// crlfWriter turns the kernel's bare newlines into CRLF for a raw terminal.
type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	for i, b := range p {
		var err error
		if b == '\n' {
			_, err = c.w.Write([]byte{'\r', '\n'})
		} else {
			_, err = c.w.Write([]byte{b})
		}
		if err != nil {
			return i, err
		}
	}
	return len(p), nil
}
