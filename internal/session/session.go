// Package session runs the line protocol spoken with one connected guest.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"catlibrary/internal/termio"
	"catlibrary/internal/util"
	"catlibrary/pkg/domain"
	"catlibrary/pkg/events"
	"catlibrary/pkg/library"
)

const (
	commandPrompt  = "; "
	nicknamePrompt = "what is it? "
	tooLongMessage = "line too long.\n"
)

var firstVisitLines = []string{
	"Welcome to the Cat Library!",
	"this appears to be your first visit...",
	"you will need to provide a nickname.",
	"nicknames are public so that addresses can be private.",
}

// Session is the state of one guest's conversation. It is not safe for
// concurrent use; the library it points at is.
type Session struct {
	stream    *termio.Stream
	lib       *library.Library
	addr      netip.Addr
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	nick string
}

// New returns a session for the guest at addr. A nil publisher drops events.
func New(stream *termio.Stream, lib *library.Library, addr netip.Addr, publisher events.Publisher) *Session {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Session{
		stream:    stream,
		lib:       lib,
		addr:      addr.Unmap(),
		publisher: publisher,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// Nickname returns the guest's nickname once registration has finished.
func (s *Session) Nickname() string {
	return s.nick
}

// Run registers the guest and then serves commands until quit or end of
// input. A closed input stream is a normal end and returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.logger = util.LoggerFromContext(ctx)
	if err := s.register(ctx); err != nil {
		return endOfSession(err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		input, err := s.stream.ReadLine(commandPrompt)
		if errors.Is(err, termio.ErrLineTooLong) {
			s.stream.WriteString(tooLongMessage)
			continue
		}
		if err != nil {
			return endOfSession(err)
		}
		cmd, ok := ParseCommand(input)
		if !ok {
			s.stream.WriteString("unknown command! try \"help\" for more info.\n")
			continue
		}
		s.logger.Debug("received command", "cmd", cmd.String())
		quit, err := s.Do(ctx, cmd)
		// An overlong answer abandons the command, not the session.
		if errors.Is(err, termio.ErrLineTooLong) {
			s.stream.WriteString(tooLongMessage)
			err = nil
		}
		if flushErr := s.stream.Flush(); err == nil {
			err = flushErr
		}
		if err != nil {
			return endOfSession(err)
		}
		if quit {
			s.logger.Info("guest left", "nick", s.nick)
			return nil
		}
	}
}

func endOfSession(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Session) register(ctx context.Context) error {
	if nick, ok := s.lib.GuestByAddr(s.addr); ok {
		s.nick = nick
		s.logger.Info("welcome back", "nick", nick)
		s.stream.WriteString("Welcome back to the Cat Library!\n")
		s.stream.Printf("Your nickname is '%s'.\n", nick)
		return s.stream.Err()
	}

	for _, line := range firstVisitLines {
		s.stream.Println(line)
	}
	return s.askNickname(ctx)
}

// askNickname prompts until the guest's address is registered.
func (s *Session) askNickname(ctx context.Context) error {
	for {
		nick, err := s.stream.ReadLine(nicknamePrompt)
		if errors.Is(err, termio.ErrLineTooLong) {
			s.stream.WriteString(tooLongMessage)
			continue
		}
		if err != nil {
			return err
		}
		if nick == "" {
			continue
		}
		got, err := s.lib.AddGuest(s.addr, nick)
		switch {
		case err == nil:
			s.nick = got
			s.logger.Info("registered new guest", "nick", got)
			s.publish(ctx, domain.Event{Kind: domain.EventGuestRegistered})
			return nil
		case errors.Is(err, library.ErrAlreadyRegistered):
			// Another connection from this address registered first.
			s.nick, _ = s.lib.GuestByAddr(s.addr)
			s.logger.Info("guest registered concurrently", "nick", s.nick)
			return nil
		case errors.Is(err, library.ErrNicknameTaken):
			s.stream.WriteString("nickname is already taken\n")
		default:
			return fmt.Errorf("register guest: %w", err)
		}
	}
}

// Do executes one command and reports whether the session should end.
func (s *Session) Do(ctx context.Context, cmd Command) (bool, error) {
	switch cmd {
	case None:
	case Help:
		writeHelp(s.stream)
	case Quit:
		return true, nil
	case Search:
		results, err := s.search()
		if err != nil {
			return false, err
		}
		s.listEntries(results)
	case CheckOut:
		return false, s.checkout(ctx)
	case CheckIn:
		return false, s.checkin(ctx)
	case Read:
		return false, s.read()
	case Add:
		return false, s.add(ctx)
	case Meow:
		s.stream.WriteString("meow?\n")
	default:
		return false, fmt.Errorf("session: unhandled command %d", cmd)
	}
	return false, s.stream.Err()
}

func (s *Session) publish(ctx context.Context, event domain.Event) {
	event.Guest = s.addr.String()
	event.Nick = s.nick
	event.CreatedAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", "kind", string(event.Kind), "err", err)
	}
}
