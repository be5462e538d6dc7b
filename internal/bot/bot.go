// Package bot is the demo handler tree: a few commands plus a shared counter
// of every message received.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/go-telegram/bot/models"

	"github.com/neoclaw-ai/teledispatch/internal/commands"
	"github.com/neoclaw-ai/teledispatch/internal/format"
	"github.com/neoclaw-ai/teledispatch/internal/handler"
	"github.com/neoclaw-ai/teledispatch/internal/stats"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

// Replier sends messages back to a chat.
type Replier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendHTML(ctx context.Context, chatID int64, html string) error
}

// ReplierKey holds the Replier in dispatcher dependencies.
var ReplierKey = handler.NewKey[Replier]("replier")

// previousCountKey is the counter value before the current message.
var previousCountKey = handler.NewKey[uint64]("previous_count")

// Commands lists the commands the demo bot answers.
var Commands = commands.NewSet("These commands are supported:",
	commands.Definition{Name: "help", Description: "display this text."},
	commands.Definition{Name: "meow", Description: "be a cat."},
	commands.Definition{Name: "generate", Description: "generate a random number within [0; 1), or an integer within [min; max] with /generate min max."},
	commands.Definition{Name: "count", Description: "show how many messages I received."},
)

// AllowedKinds are the update kinds Handler reacts to.
var AllowedKinds = []updates.Kind{updates.KindMessage}

const generateUsage = "Usage: /generate or /generate min max, with integers min <= max."

// Handler builds the tree. It needs stats.CounterKey and ReplierKey in the
// dependency set.
func Handler() handler.Handler {
	return handler.OnMessage(countMessages(handler.Branch(
		Commands.Filter(handler.Endpoint(answerCommand)),
		handler.Filter(hasText, handler.Endpoint(answerCount)),
	)))
}

func countMessages(next handler.Handler) handler.Handler {
	return handler.FilterMap(previousCountKey, func(_ context.Context, deps *handler.Deps) (uint64, bool) {
		counter, ok := handler.Get(deps, stats.CounterKey)
		if !ok || counter == nil {
			return 0, false
		}
		return counter.Inc(), true
	}, next)
}

func hasText(deps *handler.Deps) bool {
	msg, ok := handler.Get(deps, handler.MessageKey)
	return ok && msg.Text != ""
}

func answerCommand(ctx context.Context, deps *handler.Deps) error {
	cmd := handler.MustGet(deps, commands.CommandKey)
	msg := handler.MustGet(deps, handler.MessageKey)

	switch cmd.Name {
	case "help":
		return reply(ctx, deps, msg, Commands.Descriptions())
	case "meow":
		return reply(ctx, deps, msg, "I am a cat! Meow!")
	case "generate":
		text, err := generate(cmd.Args)
		if err != nil {
			return reply(ctx, deps, msg, generateUsage)
		}
		return reply(ctx, deps, msg, text)
	case "count":
		counter := handler.MustGet(deps, stats.CounterKey)
		return replyHTML(ctx, deps, msg, fmt.Sprintf("I received **%d** messages in total.", counter.Load()))
	default:
		return fmt.Errorf("command /%s has no answer", cmd.Name)
	}
}

func answerCount(ctx context.Context, deps *handler.Deps) error {
	msg := handler.MustGet(deps, handler.MessageKey)
	previous := handler.MustGet(deps, previousCountKey)
	return replyHTML(ctx, deps, msg, fmt.Sprintf("I received **%d** messages in total.", previous))
}

var errBadRange = errors.New("bad range")

func generate(args []string) (string, error) {
	switch len(args) {
	case 0:
		return strconv.FormatFloat(rand.Float64(), 'f', -1, 64), nil
	case 2:
		lo, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("parse min: %w", err)
		}
		hi, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("parse max: %w", err)
		}
		if lo > hi || hi-lo < 0 || hi-lo == 1<<63-1 {
			return "", errBadRange
		}
		return strconv.FormatInt(lo+rand.Int64N(hi-lo+1), 10), nil
	default:
		return "", errBadRange
	}
}

// reply sends text, split over several messages when it is too long for one.
func reply(ctx context.Context, deps *handler.Deps, msg *models.Message, text string) error {
	replier := handler.MustGet(deps, ReplierKey)
	for _, part := range format.SplitMessage(text) {
		if err := replier.SendText(ctx, msg.Chat.ID, part); err != nil {
			return err
		}
	}
	return nil
}

func replyHTML(ctx context.Context, deps *handler.Deps, msg *models.Message, markdown string) error {
	return handler.MustGet(deps, ReplierKey).SendHTML(ctx, msg.Chat.ID, format.TelegramHTML(markdown))
}
