// Package rcs implements the RcsStream external collaborator contract: an
// RCS ed-style delta applied to an in-memory line buffer, plus the
// inversion operation the trunk recorder uses to turn CVS's native
// reverse-delta storage into forward deltas while discovering the seed
// fulltext.
package rcs

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/optakt/cvsup/errs"
)

// Stream holds a mutable in-memory text, line by line, and applies RCS
// ed-style diffs to it in place.
type Stream struct {
	lines [][]byte
}

// New seeds a stream with a fulltext.
func New(text []byte) *Stream {
	return &Stream{lines: splitLines(text)}
}

// GetText snapshots the stream's current content.
func (s *Stream) GetText() []byte {
	return joinLines(s.lines)
}

// ApplyDiff mutates the held text by applying the RCS delta in place.
func (s *Stream) ApplyDiff(delta []byte) error {
	cmds, err := parseCommands(delta)
	if err != nil {
		return err
	}
	lines, err := applyCommands(s.lines, cmds)
	if err != nil {
		return err
	}
	s.lines = lines
	return nil
}

// InvertDiff applies delta to the stream, mutating it to the new content,
// and returns the reverse delta that transforms the new content back into
// the content the stream held before this call.
func (s *Stream) InvertDiff(delta []byte) ([]byte, error) {
	cmds, err := parseCommands(delta)
	if err != nil {
		return nil, err
	}

	buf := make([][]byte, len(s.lines))
	copy(buf, s.lines)

	type edit struct {
		pos   int // position of the edit site in the buffer as it stood when this command ran
		undo  byte
		text  [][]byte
		count int
	}

	edits := make([]edit, 0, len(cmds))
	offsetAfter := make([]int, len(cmds))
	offset := 0
	for i, cmd := range cmds {
		switch cmd.op {
		case 'd':
			start := cmd.line - 1 + offset
			if start < 0 || start+cmd.count > len(buf) {
				return nil, fmt.Errorf("%w: delete range out of bounds at %q", errs.ErrMalformedDelta, cmd.header)
			}
			removed := make([][]byte, cmd.count)
			copy(removed, buf[start:start+cmd.count])
			buf = append(buf[:start:start], buf[start+cmd.count:]...)
			offset -= cmd.count
			edits = append(edits, edit{pos: start, undo: 'a', text: removed})

		case 'a':
			start := cmd.line + offset
			if start < 0 || start > len(buf) {
				return nil, fmt.Errorf("%w: add position out of bounds at %q", errs.ErrMalformedDelta, cmd.header)
			}
			buf = insertLines(buf, start, cmd.text)
			offset += len(cmd.text)
			edits = append(edits, edit{pos: start, undo: 'd', count: len(cmd.text)})
		}
		offsetAfter[i] = offset
	}

	finalOffset := offset
	reverse := make([]command, len(edits))
	for i, e := range edits {
		future := finalOffset - offsetAfter[i]
		pos := e.pos + future
		switch e.undo {
		case 'a':
			reverse[i] = command{op: 'a', line: pos, count: len(e.text), text: e.text}
		case 'd':
			reverse[i] = command{op: 'd', line: pos + 1, count: e.count}
		}
	}

	// Positions are all expressed relative to the same buffer (the one
	// this method leaves behind), so the reverse script must list them in
	// increasing order for the running-offset convention the apply side
	// relies on to hold. At a tied position, the deletion that undoes an
	// insertion must run before the addition that undoes a deletion,
	// since the two edit sites are adjacent in the forward direction.
	sort.SliceStable(reverse, func(i, j int) bool {
		if reverse[i].line != reverse[j].line {
			return reverse[i].line < reverse[j].line
		}
		return reverse[i].op == 'd' && reverse[j].op == 'a'
	})

	s.lines = buf
	return encodeCommands(reverse), nil
}

type command struct {
	op     byte
	line   int
	count  int
	text   [][]byte // add text, each element including its own trailing newline if present
	header string   // original header line, for error messages
}

// applyCommands runs an already-parsed ed script against lines and returns
// the resulting buffer. Line numbers in each command refer to the buffer
// as it stood before the script began; a running offset of the lines
// added and deleted so far maps them onto the buffer being edited.
func applyCommands(lines [][]byte, cmds []command) ([][]byte, error) {
	buf := make([][]byte, len(lines))
	copy(buf, lines)

	offset := 0
	for _, cmd := range cmds {
		switch cmd.op {
		case 'd':
			start := cmd.line - 1 + offset
			if start < 0 || start+cmd.count > len(buf) {
				return nil, fmt.Errorf("%w: delete range out of bounds at %q", errs.ErrMalformedDelta, cmd.header)
			}
			buf = append(buf[:start:start], buf[start+cmd.count:]...)
			offset -= cmd.count

		case 'a':
			start := cmd.line + offset
			if start < 0 || start > len(buf) {
				return nil, fmt.Errorf("%w: add position out of bounds at %q", errs.ErrMalformedDelta, cmd.header)
			}
			buf = insertLines(buf, start, cmd.text)
			offset += len(cmd.text)
		}
	}
	return buf, nil
}

func insertLines(buf [][]byte, at int, text [][]byte) [][]byte {
	out := make([][]byte, 0, len(buf)+len(text))
	out = append(out, buf[:at]...)
	out = append(out, text...)
	out = append(out, buf[at:]...)
	return out
}

// parseCommands reads a byte-exact RCS ed script: header lines of the form
// "a<line> <count>\n" or "d<line> <count>\n", with 'a' headers followed by
// exactly <count> literal text lines.
func parseCommands(delta []byte) ([]command, error) {
	var cmds []command
	i := 0
	for i < len(delta) {
		nl := bytes.IndexByte(delta[i:], '\n')
		if nl < 0 {
			return nil, fmt.Errorf("%w: unterminated command header", errs.ErrMalformedDelta)
		}
		header := string(delta[i : i+nl])
		i += nl + 1

		if len(header) < 2 || (header[0] != 'a' && header[0] != 'd') {
			return nil, fmt.Errorf("%w: unrecognized command %q", errs.ErrMalformedDelta, header)
		}
		fields := strings.Fields(header[1:])
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: malformed command %q", errs.ErrMalformedDelta, header)
		}
		line, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: bad line number in %q", errs.ErrMalformedDelta, header)
		}
		count, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: bad count in %q", errs.ErrMalformedDelta, header)
		}

		cmd := command{op: header[0], line: line, count: count, header: header}
		if cmd.op == 'a' {
			cmd.text = make([][]byte, 0, count)
			for k := 0; k < count; k++ {
				if i >= len(delta) {
					return nil, fmt.Errorf("%w: truncated add text in %q", errs.ErrMalformedDelta, header)
				}
				j := bytes.IndexByte(delta[i:], '\n')
				var line []byte
				if j < 0 {
					line = delta[i:]
					i = len(delta)
				} else {
					line = delta[i : i+j+1]
					i += j + 1
				}
				cmd.text = append(cmd.text, line)
			}
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func encodeCommands(cmds []command) []byte {
	var buf bytes.Buffer
	for _, c := range cmds {
		fmt.Fprintf(&buf, "%c%d %d\n", c.op, c.line, c.count)
		for _, l := range c.text {
			buf.Write(l)
		}
	}
	return buf.Bytes()
}

func splitLines(text []byte) [][]byte {
	if len(text) == 0 {
		return nil
	}
	var lines [][]byte
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func joinLines(lines [][]byte) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.Write(l)
	}
	return buf.Bytes()
}
