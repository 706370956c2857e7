// Command kbdemu boots the keyboard kernel on the software machine and types
// into it. Whatever the kernel echoes to COM1 appears on stdout; logs go to
// stderr. In interactive mode the echo is drawn in the attribute's colour.
//
//	kbdemu -text 'Hello, World!'
//	kbdemu -scancodes '2a 23 a3 aa 17 97'
//	kbdemu -script keys.txt
//	kbdemu -interactive -attr 0x1e
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/darbinreyes/os-from-scratch/core_engine"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/console"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/isr"
	"github.com/darbinreyes/os-from-scratch/core_engine/kernel/ps2"
)

func main() {
	var (
		scancodes   = flag.String("scancodes", "", "hex scan code bytes to type, e.g. \"1e 9e\" or \"0x1e,0x9e\"")
		script      = flag.String("script", "", "file of hex scan code bytes; '#' starts a comment")
		text        = flag.String("text", "", "text to type")
		interactive = flag.Bool("interactive", false, "type from the terminal in raw mode until Ctrl-C or Ctrl-D")
		timerHz     = flag.Int("timer-hz", 0, "start the PIT at this rate (0 leaves the timer masked)")
		pollCount   = flag.Int("poll-count", ps2.DefaultPollCount, "8042 status reads before a controller timeout")
		settle      = flag.Duration("settle", 100*time.Millisecond, "how long to keep running after scripted input")
		attr        = flag.Uint("attr", uint(isr.DefaultAttr), "VGA attribute the kernel echoes with")
		debug       = flag.Bool("debug", false, "verbose device and kernel logging")
	)
	flag.Parse()

	var input []byte
	if *scancodes != "" {
		b, err := parseHexBytes(*scancodes)
		if err != nil {
			log.Fatalf("kbdemu: -scancodes: %v", err)
		}
		input = append(input, b...)
	}
	if *script != "" {
		b, err := readScript(*script)
		if err != nil {
			log.Fatalf("kbdemu: -script: %v", err)
		}
		input = append(input, b...)
	}

	cfg := core_engine.DefaultConfig()
	cfg.PollCount = *pollCount
	cfg.TimerHz = *timerHz
	cfg.Debug = *debug
	if *attr > 0xFF {
		log.Fatalf("kbdemu: -attr %#x is not a byte", *attr)
	}
	cfg.Attr = byte(*attr)
	if *interactive {
		cfg.SerialOut = crlfWriter{os.Stdout}
		cfg.Display = console.NewColorDisplay(crlfWriter{os.Stdout})
	}

	m, err := core_engine.NewMachine(cfg)
	if err != nil {
		log.Fatalf("kbdemu: %v", err)
	}
	defer m.Close()
	if err := m.Boot(); err != nil {
		log.Fatalf("kbdemu: boot: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	if n := m.TypeScanCodes(input); n != len(input) {
		log.Printf("kbdemu: keyboard accepted %d of %d scan code bytes", n, len(input))
	}
	m.TypeString(*text)

	if *interactive {
		if err := runTerminal(ctx, m); err != nil {
			log.Printf("kbdemu: terminal: %v", err)
		}
	} else {
		select {
		case <-time.After(*settle):
		case <-ctx.Done():
		}
	}
	m.Stop()

	if err := <-done; err != nil && !errors.Is(err, core_engine.ErrStopped) && !errors.Is(err, context.Canceled) {
		log.Printf("kbdemu: %v", err)
		m.Close()
		os.Exit(1)
	}
	st := m.Kernel().Keyboard().Stats()
	log.Printf("kbdemu: %d bytes, %d presses, %d displayed, %d decode errors, %d timer ticks",
		st.Bytes, st.Presses, st.Displayed, st.Errors, m.Kernel().Timer().Ticks())
}

// parseHexBytes accepts bytes separated by spaces or commas, with or without
// a 0x prefix.
func parseHexBytes(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad scan code byte %q: %w", f, err)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func readScript(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseScript(f)
}

func parseScript(r io.Reader) ([]byte, error) {
	var out []byte
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text, _, _ := strings.Cut(sc.Text(), "#")
		b, err := parseHexBytes(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, b...)
	}
	return out, sc.Err()
}
