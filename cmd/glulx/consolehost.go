package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"
)

// consoleHost is the glulx.Host used by the run/debug subcommands: it
// prints flushed output channels to stdout in a stable order and reads
// input from stdin. It never buffers a save file on its own — saves and
// restores go through whatever path the caller passed in.
type consoleHost struct {
	in        *bufio.Reader
	out       io.Writer
	log       *zap.Logger
	savePath  string
	loadPath  string
}

func newConsoleHost(log *zap.Logger, savePath, loadPath string) *consoleHost {
	return &consoleHost{
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		log:      log,
		savePath: savePath,
		loadPath: loadPath,
	}
}

func (h *consoleHost) printFlushed(flushed map[string]string) {
	channels := make([]string, 0, len(flushed))
	for ch := range flushed {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	for _, ch := range channels {
		text := flushed[ch]
		if text == "" {
			continue
		}
		fmt.Fprint(h.out, text)
	}
}

func (h *consoleHost) LineWanted(flushed map[string]string, maxLen uint32) (string, error) {
	h.printFlushed(flushed)
	line, err := h.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = trimNewline(line)
	if maxLen > 0 && uint32(len(line)) > maxLen {
		line = line[:maxLen]
	}
	return line, nil
}

func (h *consoleHost) KeyWanted(flushed map[string]string) (rune, error) {
	h.printFlushed(flushed)
	r, _, err := h.in.ReadRune()
	if err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, err
	}
	return r, nil
}

func (h *consoleHost) OutputReady(flushed map[string]string) {
	h.printFlushed(flushed)
}

func (h *consoleHost) SaveRequested(data []byte) error {
	if h.savePath == "" {
		return fmt.Errorf("no --save path configured")
	}
	h.log.Debug("save requested", zap.String("path", h.savePath), zap.Int("bytes", len(data)))
	return os.WriteFile(h.savePath, data, 0o644)
}

func (h *consoleHost) LoadRequested() ([]byte, error) {
	path := h.loadPath
	if path == "" {
		path = h.savePath
	}
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

func (h *consoleHost) TransitionRequested(kind string, arg uint32) error {
	h.log.Debug("transition requested", zap.String("kind", kind), zap.Uint32("arg", arg))
	return nil
}

func trimNewline(s string) string {
	n := len(s)
	for n > 0 && (s[n-1] == '\n' || s[n-1] == '\r') {
		n--
	}
	return s[:n]
}
