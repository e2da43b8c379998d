package editor

import (
	"strconv"
	"strings"
)

// Kind identifies an editor command.
type Kind int

const (
	Quit Kind = iota
	Help
	Print
	CountLines
	Next
	Prev
	Goto
	Insert
	Append
	Change
	Delete
)

// Writes reports whether the command modifies the buffer.
func (k Kind) Writes() bool {
	switch k {
	case Insert, Append, Change, Delete:
		return true
	}
	return false
}

// Command is one parsed editor command. N is the line count for Next/Prev
// and the 0-based target line for Goto.
type Command struct {
	Kind Kind
	N    int
}

var keywords = map[string]Command{
	"q":               {Kind: Quit},
	"quit":            {Kind: Quit},
	"?":               {Kind: Help},
	"h":               {Kind: Help},
	"help":            {Kind: Help},
	"p":               {Kind: Print},
	"print":           {Kind: Print},
	"l":               {Kind: CountLines},
	"lines":           {Kind: CountLines},
	"count-lines":     {Kind: CountLines},
	"":                {Kind: Next, N: 1},
	"j":               {Kind: Next, N: 1},
	"next":            {Kind: Next, N: 1},
	"k":               {Kind: Prev, N: 1},
	"prev":            {Kind: Prev, N: 1},
	"g":               {Kind: Goto, N: 0},
	"i":               {Kind: Insert},
	"insert-before":   {Kind: Insert},
	"a":               {Kind: Append},
	"insert-after":    {Kind: Append},
	"c":               {Kind: Change},
	"replace-current": {Kind: Change},
	"d":               {Kind: Delete},
	"delete-current":  {Kind: Delete},
}

// ParseCommand parses one line of editor input. numLines resolves "G" and
// "goto last". A bare number N goes to line N (1-based); "j<N>" and "k<N>"
// move N lines forward or back.
func ParseCommand(input string, numLines int) (Command, bool) {
	if n, ok := parseCount(input); ok {
		return Command{Kind: Goto, N: max(n-1, 0)}, true
	}
	if rest, found := strings.CutPrefix(input, "j"); found {
		if n, ok := parseCount(rest); ok {
			return Command{Kind: Next, N: n}, true
		}
	}
	if rest, found := strings.CutPrefix(input, "k"); found {
		if n, ok := parseCount(rest); ok {
			return Command{Kind: Prev, N: n}, true
		}
	}

	last := max(numLines-1, 0)
	if input == "G" {
		return Command{Kind: Goto, N: last}, true
	}
	if cmd, ok := keywords[input]; ok {
		return cmd, true
	}

	verb, arg, found := strings.Cut(input, " ")
	if !found {
		return Command{}, false
	}
	arg = strings.TrimSpace(arg)
	switch verb {
	case "next", "prev":
		n, ok := parseCount(arg)
		if !ok {
			return Command{}, false
		}
		if verb == "next" {
			return Command{Kind: Next, N: n}, true
		}
		return Command{Kind: Prev, N: n}, true
	case "goto":
		if arg == "last" {
			return Command{Kind: Goto, N: last}, true
		}
		n, ok := parseCount(arg)
		if !ok {
			return Command{}, false
		}
		return Command{Kind: Goto, N: max(n-1, 0)}, true
	}
	return Command{}, false
}

func parseCount(s string) (int, bool) {
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, false
	}
	return int(n), true
}
