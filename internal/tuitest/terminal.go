package tuitest

import (
	"bytes"
	"io"
)

// terminalQueries are the capability probes bubbletea and lipgloss send at
// startup, with the answer a plain dark xterm would give.
var terminalQueries = []struct {
	query, answer []byte
}{
	{[]byte("\x1b[6n"), []byte("\x1b[1;1R")},
	{[]byte("\x1b]10;?\x07"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x07")},
	{[]byte("\x1b]10;?\x1b\\"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x1b\\")},
	{[]byte("\x1b]11;?\x07"), []byte("\x1b]11;rgb:0000/0000/0000\x07")},
	{[]byte("\x1b]11;?\x1b\\"), []byte("\x1b]11;rgb:0000/0000/0000\x1b\\")},
}

type terminalResponder struct {
	w   io.Writer
	buf []byte
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w, buf: make([]byte, 0, 128)}
}

// Process answers every probe in chunk. A short tail is kept so probes split
// across reads are still seen.
func (tr *terminalResponder) Process(chunk []byte) {
	tr.buf = append(tr.buf, chunk...)
	for tr.answerNext() {
	}
	if len(tr.buf) > 256 {
		tr.buf = tr.buf[len(tr.buf)-64:]
	}
}

func (tr *terminalResponder) answerNext() bool {
	for _, probe := range terminalQueries {
		idx := bytes.Index(tr.buf, probe.query)
		if idx < 0 {
			continue
		}
		tr.buf = tr.buf[idx+len(probe.query):]
		_, _ = tr.w.Write(probe.answer)
		return true
	}
	return false
}
