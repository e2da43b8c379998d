package session

import (
	"strings"

	"catlibrary/internal/termio"
)

// Command is a top-level session command.
type Command int

const (
	None Command = iota
	Help
	Quit
	Search
	CheckOut
	CheckIn
	Read
	Add
	Meow
)

// commands lists the commands shown by help, in display order.
var commands = []Command{Help, Quit, Search, CheckOut, CheckIn, Read, Add}

var commandNames = map[Command]struct{ short, long, help string }{
	None:     {"", "", "doesn't do anything."},
	Help:     {"h", "help", "ask for assistance."},
	Quit:     {"q", "quit", "Abandon all Data."},
	Search:   {"s", "search", "search the library."},
	CheckOut: {"co", "checkout", "acquire a book, if it is available!"},
	CheckIn:  {"ci", "checkin", "return a book."},
	Read:     {"r", "read", "peruse your checked out books."},
	Add:      {"a", "add", "add a New Book to the library's collection."},
	Meow:     {"meow", "meow", "(warning: meows at you)."},
}

func (c Command) String() string {
	if names, ok := commandNames[c]; ok && names.long != "" {
		return names.long
	}
	return "none"
}

// ParseCommand maps one trimmed input line to a command. Anything mentioning
// "meow" is a meow, whatever else it says.
func ParseCommand(input string) (Command, bool) {
	if strings.Contains(input, "meow") {
		return Meow, true
	}
	if input == "" {
		return None, true
	}
	for _, cmd := range commands {
		names := commandNames[cmd]
		if input == names.short || input == names.long {
			return cmd, true
		}
	}
	return None, false
}

func writeHelp(s *termio.Stream) {
	width := 0
	for _, cmd := range commands {
		names := commandNames[cmd]
		width = max(width, len(names.short)+len(names.long))
	}
	for _, cmd := range commands {
		names := commandNames[cmd]
		padding := width - (len(names.short) + len(names.long)) + 8
		s.Printf("%s, %s%s%s\n", names.short, names.long, strings.Repeat(" ", padding), names.help)
	}
}
