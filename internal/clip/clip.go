// Package clip copies report text out of the terminal UI.
package clip

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Method is the mechanism that received the text.
type Method string

const (
	MethodNative Method = "native" // OS clipboard
	MethodOSC52  Method = "osc52"  // terminal clipboard escape sequence
	MethodFile   Method = "file"   // temp file; nothing reached a clipboard
)

// Result reports where the text went.
type Result struct {
	Method   Method
	FilePath string // set for MethodFile
}

// Message is a one-line status for the UI.
func (r Result) Message() string {
	switch r.Method {
	case MethodNative:
		return "report copied to clipboard"
	case MethodOSC52:
		return "report copied via terminal clipboard"
	default:
		return "clipboard unavailable; report saved to " + r.FilePath
	}
}

// Terminals differ in how much OSC52 payload they accept.
const osc52LimitBytes = 100_000

// Replaced in tests.
var (
	nativeWriteAll = atotto.WriteAll
	osc52Target    = func() (io.Writer, bool) {
		return os.Stderr, term.IsTerminal(int(os.Stderr.Fd()))
	}
	tempDir = os.TempDir
)

// WriteAll copies text to the native clipboard, then the terminal
// clipboard, and finally to a temp file.
func WriteAll(text string) (Result, error) {
	if text == "" {
		return Result{}, errors.New("nothing to copy")
	}

	if err := nativeWriteAll(text); err == nil {
		return Result{Method: MethodNative}, nil
	}

	if err := writeOSC52(text); err == nil {
		return Result{Method: MethodOSC52}, nil
	}

	path, err := writeTempFile(text)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

func writeOSC52(text string) error {
	w, isTTY := osc52Target()
	if !isTTY {
		return errors.New("not a terminal")
	}
	if len(text) > osc52LimitBytes {
		return fmt.Errorf("text too large for OSC52 (%d bytes > %d)", len(text), osc52LimitBytes)
	}

	seq := osc52.New(text).Limit(osc52LimitBytes)
	if os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	} else if os.Getenv("STY") != "" {
		seq = seq.Screen()
	}

	// stderr keeps the sequence out of the UI renderer on stdout.
	_, err := seq.WriteTo(w)
	return err
}

func writeTempFile(text string) (path string, err error) {
	f, err := os.CreateTemp(tempDir(), "postmortem-report-*.txt")
	if err != nil {
		return "", fmt.Errorf("creating report copy: %w", err)
	}
	path = f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.WriteString(text); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing report copy: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("writing report copy: %w", err)
	}
	return filepath.Clean(path), nil
}
