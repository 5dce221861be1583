package main

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

var errQuit = errors.New("pager: quit")

// pager is a small more(1). With a height of 0 it passes writes straight
// through. Otherwise the terminal is expected to be in raw mode: keys are
// read from keys one at a time and line endings are written as \r\n.
type pager struct {
	w      io.Writer
	keys   *bufio.Reader
	height int

	pending bytes.Buffer
	line    int
	paging  bool
	quit    bool
}

var _ io.Writer = &pager{}

func newPager(w io.Writer, keys io.Reader, height int) *pager {
	return &pager{
		w:      w,
		keys:   bufio.NewReader(keys),
		height: height,
		paging: height > 1,
	}
}

func (p *pager) Write(b []byte) (int, error) {
	if p.height <= 0 {
		return p.w.Write(b)
	}

	if p.quit {
		return 0, errQuit
	}

	p.pending.Write(b)

	for {
		i := bytes.IndexByte(p.pending.Bytes(), '\n')
		if i < 0 {
			break
		}

		// height-1 leaves room for --More--
		if p.paging && p.line >= p.height-1 {
			if err := p.prompt(); err != nil {
				return len(b), err
			}
		}

		line := p.pending.Next(i + 1)
		if _, err := p.w.Write(append(line[:i:i], '\r', '\n')); err != nil {
			return len(b), err
		}
		p.line++
	}

	return len(b), nil
}

// Flush writes out a final line that has no newline.
func (p *pager) Flush() error {
	if p.pending.Len() == 0 || p.quit {
		return nil
	}

	_, err := p.w.Write(p.pending.Bytes())
	p.pending.Reset()
	return err
}

func (p *pager) prompt() error {
	more := "--More--"
	clear := "\r" + strings.Repeat(" ", len(more)) + "\r"

	for {
		if _, err := io.WriteString(p.w, more); err != nil {
			return err
		}

		b, err := p.keys.ReadByte()
		if err != nil {
			return err
		}

		if _, err := io.WriteString(p.w, clear); err != nil {
			return err
		}

		switch b {
		case 'q', 0x03: // ^C doesn't signal in raw mode
			p.quit = true
			return errQuit
		case ' ':
			p.line = 0
			return nil
		case '\r', '\n', 'j':
			p.line--
			return nil
		case 'G':
			p.paging = false
			return nil
		case 0x1b:
			var seq [2]byte
			if _, err := io.ReadFull(p.keys, seq[:]); err != nil {
				return err
			}
			if seq == [2]byte{'[', 'B'} { // down arrow
				p.line--
				return nil
			}
		}
	}
}
