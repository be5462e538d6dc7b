// Package commands parses bot commands like "/generate@my_bot 1 10" out of
// message text and filters handler trees on them.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"

	"github.com/neoclaw-ai/teledispatch/internal/handler"
	"github.com/neoclaw-ai/teledispatch/internal/logging"
)

// ErrNotCommand is returned by Parse for text that does not start with "/".
var ErrNotCommand = errors.New("not a command")

// Command is one parsed bot command.
type Command struct {
	// Name is lower case without the leading slash.
	Name string
	// Mention is the bot username after "@", if any.
	Mention string
	Args    []string
}

// Parse splits text into a command and its arguments. Arguments follow shell
// quoting rules, so "/say 'hello world'" has one argument.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, ErrNotCommand
	}

	head, rest, _ := strings.Cut(text[1:], " ")
	head, rest = strings.TrimSpace(head), strings.TrimSpace(rest)
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = strings.TrimSpace(head[i:] + " " + rest)
		head = head[:i]
	}
	name, mention, _ := strings.Cut(head, "@")
	if name == "" {
		return Command{}, ErrNotCommand
	}

	var args []string
	if rest != "" {
		var err error
		args, err = shlex.Split(rest)
		if err != nil {
			return Command{}, fmt.Errorf("parse arguments of /%s: %w", name, err)
		}
	}
	return Command{
		Name:    strings.ToLower(name),
		Mention: mention,
		Args:    args,
	}, nil
}

// Definition describes one supported command.
type Definition struct {
	Name        string
	Description string
}

// Set is the list of commands a bot understands.
type Set struct {
	title string
	defs  []Definition
}

// NewSet creates a command set. title heads the generated help text.
func NewSet(title string, defs ...Definition) *Set {
	s := &Set{title: title}
	for _, def := range defs {
		def.Name = strings.ToLower(strings.TrimPrefix(def.Name, "/"))
		s.defs = append(s.defs, def)
	}
	return s
}

// Lookup finds a command by name.
func (s *Set) Lookup(name string) (Definition, bool) {
	name = strings.ToLower(name)
	for _, def := range s.defs {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

// Descriptions renders the help text: the title followed by one line per command.
func (s *Set) Descriptions() string {
	var b strings.Builder
	b.WriteString(s.title)
	for _, def := range s.defs {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("/" + def.Name)
		if def.Description != "" {
			b.WriteString(" - " + def.Description)
		}
	}
	return b.String()
}

// CommandKey holds the parsed command for handlers below Filter.
var CommandKey = handler.NewKey[Command]("command")

// Filter runs next for messages carrying one of the set's commands. Commands
// addressed to another bot with "@name" are passed on, which needs MeKey; when
// the bot's identity is unknown, mentioned commands are passed on as well.
func (s *Set) Filter(next handler.Handler) handler.Handler {
	return handler.FilterMap(CommandKey, func(ctx context.Context, deps *handler.Deps) (Command, bool) {
		msg, ok := handler.Get(deps, handler.MessageKey)
		if !ok || msg == nil || msg.Text == "" {
			return Command{}, false
		}
		cmd, err := Parse(msg.Text)
		if err != nil {
			if !errors.Is(err, ErrNotCommand) {
				logging.FromContext(ctx).Debug("ignoring malformed command", "err", err)
			}
			return Command{}, false
		}
		if _, ok := s.Lookup(cmd.Name); !ok {
			return Command{}, false
		}
		if cmd.Mention != "" {
			me, ok := handler.Get(deps, handler.MeKey)
			if !ok || me == nil || !strings.EqualFold(me.Username, cmd.Mention) {
				return Command{}, false
			}
		}
		return cmd, true
	}, next)
}
