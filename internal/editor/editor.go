// Package editor implements the in-band line editor used to read books and
// to author new ones.
package editor

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"catlibrary/internal/termio"
)

const (
	prompt      = ":"
	endOfInsert = "."
	noLine      = -1
)

type helpEntry struct {
	writes bool
	keys   string
	text   string
}

var helpEntries = []helpEntry{
	{false, "q, quit", "quit reading."},
	{false, "?, h, help", "list commands."},
	{false, "p, print", "print first through current lines."},
	{false, "l, lines", "print line count."},
	{false, "<enter>, j, j<N>", "move by next N lines [default: 1]."},
	{false, "k, k<N>", "move by previous N lines [default: 1]."},
	{false, "g", "goto first line."},
	{false, "G", "goto last line."},
	{false, "<N>", "goto line N."},
	{true, "i", "insert new line before."},
	{true, "a", "insert new line after."},
	{true, "c", "replace current line."},
	{true, "d", "delete current line."},
}

// Editor is a cursor over a caller-owned slice of lines. Only lines that
// became visible or changed since the last render are redrawn.
type Editor struct {
	lines    *[]string
	readonly bool

	cur         int
	lastPrinted int
	pad         int

	prevCmd Command
	hasPrev bool
}

// New returns an editor over lines. A readonly editor refuses every command
// that would change the buffer.
func New(lines *[]string, readonly bool) *Editor {
	e := &Editor{
		lines:       lines,
		readonly:    readonly,
		lastPrinted: noLine,
	}
	e.recomputePad()
	return e
}

// NumLines returns the buffer length.
func (e *Editor) NumLines() int {
	return len(*e.lines)
}

// Line returns the 0-based index of the current line.
func (e *Editor) Line() int {
	return e.cur
}

// Run renders and executes commands until quit or a stream error.
func (e *Editor) Run(s *termio.Stream) error {
	for {
		e.render(s)
		input, err := s.ReadLine(prompt)
		if err != nil {
			return err
		}
		cmd, ok := ParseCommand(input, e.NumLines())
		if !ok {
			s.WriteString("unknown command. type \"help\".\n")
			continue
		}
		quit, err := e.Handle(s, cmd)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// Author starts an empty buffer in insert mode, then hands over to Run so
// the author can review and edit before quitting.
func (e *Editor) Author(s *termio.Stream) error {
	if e.readonly {
		return fmt.Errorf("editor: cannot author into a readonly buffer")
	}
	if e.NumLines() == 0 {
		if err := e.insertLinesAt(s, 0); err != nil {
			return err
		}
		e.prevCmd, e.hasPrev = Command{Kind: Insert}, true
	}
	return e.Run(s)
}

// Handle executes one command and reports whether the editor should quit.
func (e *Editor) Handle(s *termio.Stream, cmd Command) (bool, error) {
	switch {
	case cmd.Kind == Quit:
		return true, nil

	case cmd.Kind == Help:
		e.writeHelp(s)

	case cmd.Kind == Print:
		e.lastPrinted = noLine

	case cmd.Kind == CountLines:
		s.Printf("%d\n", e.NumLines())

	case cmd.Kind == Next:
		if cmd.N >= e.NumLines()-e.cur {
			e.cur = e.NumLines()
		} else {
			e.cur += cmd.N
		}

	case cmd.Kind == Prev:
		e.cur = max(e.cur-cmd.N, 0)

	case cmd.Kind == Goto:
		e.lastPrinted = e.cur
		e.cur = cmd.N

	case e.readonly && cmd.Kind.Writes():
		s.WriteString("can't edit readonly buffer.\n")

	case cmd.Kind == Insert:
		if err := e.insertLinesAt(s, e.cur); err != nil {
			return false, err
		}

	case cmd.Kind == Append:
		if err := e.insertLinesAt(s, e.cur+1); err != nil {
			return false, err
		}

	case cmd.Kind == Change:
		line, err := s.ReadLine(e.margin(e.cur))
		if err != nil {
			return false, err
		}
		(*e.lines)[e.cur] = line
		e.lastPrinted = e.cur

	case cmd.Kind == Delete:
		*e.lines = slices.Delete(*e.lines, e.cur, e.cur+1)
		e.lastPrinted = noLine
		e.recomputePad()
	}
	e.prevCmd, e.hasPrev = cmd, true
	return false, nil
}

// insertLinesAt prompts for lines inserted from start onward until a lone
// ".", leaving the cursor after the last inserted line.
func (e *Editor) insertLinesAt(s *termio.Stream, start int) error {
	e.cur = min(start, e.NumLines())
	for {
		line, err := s.ReadLine(e.margin(e.cur))
		if err != nil {
			return err
		}
		if line == endOfInsert {
			e.lastPrinted = e.cur
			return nil
		}
		*e.lines = slices.Insert(*e.lines, e.cur, line)
		e.cur++
		e.recomputePad()
	}
}

// render prints the lines between the last printed line and the cursor.
func (e *Editor) render(s *termio.Stream) {
	e.clamp()

	// The cursor only needs to back up over a prompt line that a bare
	// movement left behind.
	promptOnScreen := true
	if e.hasPrev {
		switch e.prevCmd.Kind {
		case Goto:
			promptOnScreen = e.lastPrinted != noLine && e.prevCmd.N < e.lastPrinted
		case Prev, Print, Insert, Append, Change, Delete:
		default:
			promptOnScreen = false
		}
	}

	pending := e.printRange()
	if !promptOnScreen && len(pending) > 0 {
		s.CursorUp()
	}
	for _, idx := range pending {
		s.ClearLine()
		s.WriteString(e.margin(idx))
		s.WriteString((*e.lines)[idx])
		s.WriteString("\n")
		e.lastPrinted = idx
	}
}

func (e *Editor) printRange() []int {
	start := 0
	if e.lastPrinted != noLine {
		start = e.lastPrinted + 1
	}
	var idxs []int
	for idx := start; idx < e.cur; idx++ {
		idxs = append(idxs, idx)
	}
	if e.lastPrinted != e.cur {
		idxs = append(idxs, e.cur)
	}
	return idxs
}

func (e *Editor) clamp() {
	if e.NumLines() == 0 {
		*e.lines = append(*e.lines, "")
	}
	e.cur = min(max(e.cur, 0), e.NumLines()-1)
}

func (e *Editor) recomputePad() {
	e.pad = len(fmt.Sprint(e.NumLines()))
}

func (e *Editor) margin(idx int) string {
	return fmt.Sprintf("%*d |\t", e.pad, idx+1)
}

func (e *Editor) writeHelp(s *termio.Stream) {
	width := 0
	for _, h := range helpEntries {
		width = max(width, utf8.RuneCountInString(h.keys))
	}
	width += 8
	for _, h := range helpEntries {
		if e.readonly && h.writes {
			continue
		}
		s.Printf(" %-*s%s\n", width, h.keys, h.text)
	}
}

// SplitLines splits book content into lines the way a reader sees them: a
// trailing newline does not start a new line and "\r\n" endings are accepted.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// JoinLines is the inverse of SplitLines: every line is newline-terminated.
func JoinLines(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
