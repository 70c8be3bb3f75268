package term

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// lineReader is the input side of a Console. Implementations return io.EOF
// when the operator closes input or aborts the prompt.
type lineReader interface {
	Prompt(prompt string, remember bool) (string, error)
	Close() error
}

// linerReader gives interactive terminals line editing and history.
type linerReader struct {
	state       *liner.State
	historyFile string
}

func newLinerReader(historyFile string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	r := &linerReader{state: state, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			state.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *linerReader) Prompt(prompt string, remember bool) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if remember && strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

// Close saves history (owner-only permissions) and restores the terminal.
func (r *linerReader) Close() error {
	if r.historyFile != "" {
		if err := r.saveHistory(); err != nil {
			r.state.Close()
			return err
		}
	}
	return r.state.Close()
}

func (r *linerReader) saveHistory() error {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()
	if _, err := r.state.WriteHistory(f); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

// scanReader serves piped input and tests.
type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newScanReader(in io.Reader, out io.Writer) *scanReader {
	return &scanReader{scanner: bufio.NewScanner(in), out: out}
}

func (r *scanReader) Prompt(prompt string, _ bool) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		fmt.Fprintln(r.out)
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) Close() error { return nil }
