// Package console is a local transport: lines typed in a terminal become
// message updates and bot replies are printed back, so a handler tree can be
// exercised without the Bot API.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/go-telegram/bot/models"
	"golang.org/x/term"

	"github.com/neoclaw-ai/teledispatch/internal/logging"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

const (
	defaultPrompt = "you> "
	replyPrefix   = "bot> "

	// ChatID is the chat every console message belongs to.
	ChatID int64 = 1
	userID int64 = 1
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Channel reads updates from a terminal and prints replies to it. It
// implements the dispatcher's Bot interface.
type Channel struct {
	in          io.Reader
	out         io.Writer
	historyPath string

	startOnce sync.Once
	rl        *readline.Instance
	fallback  *bufio.Reader

	writeMu sync.Mutex

	// The reader goroutine reads one line per request, so nothing is
	// prompted for or written once input is no longer wanted.
	requests   chan struct{}
	lines      chan readResult
	readerDone chan struct{}

	mu      sync.Mutex
	started bool
	reading bool
	pending []updates.Update
	nextID  int64
	done    chan struct{}
	closed  bool
}

type readResult struct {
	line string
	err  error
}

// New creates a console channel over in and out. historyPath may be empty.
func New(in io.Reader, out io.Writer, historyPath string) *Channel {
	return &Channel{
		in:          in,
		out:         out,
		historyPath: historyPath,
		requests:    make(chan struct{}, 1),
		lines:       make(chan readResult, 1),
		readerDone:  make(chan struct{}),
		nextID:      1,
		done:        make(chan struct{}),
	}
}

// Done is closed when input ends or the user types /quit or /exit.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close ends input and releases the terminal. When no read is in flight it
// waits for the reader goroutine to exit.
func (c *Channel) Close() error {
	c.finish()

	c.mu.Lock()
	started, reading := c.started, c.reading
	c.mu.Unlock()
	if started && !reading {
		<-c.readerDone
	}
	if c.rl != nil {
		return c.rl.Close()
	}
	return nil
}

// GetMe returns the console bot identity.
func (c *Channel) GetMe(context.Context) (*models.User, error) {
	return &models.User{
		ID:        0,
		IsBot:     true,
		FirstName: "teledispatch",
		Username:  "teledispatch_console_bot",
	}, nil
}

// SendText prints a reply.
func (c *Channel) SendText(_ context.Context, chatID int64, text string) error {
	if chatID != ChatID {
		return fmt.Errorf("unknown console chat %d", chatID)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := fmt.Fprintf(c.writer(), "%s%s\n", replyPrefix, text)
	return err
}

// SendHTML prints a reply with markup removed.
func (c *Channel) SendHTML(ctx context.Context, chatID int64, body string) error {
	return c.SendText(ctx, chatID, html.UnescapeString(htmlTag.ReplaceAllString(body, "")))
}

// Fetch behaves like getUpdates: updates below params.Offset are
// acknowledged and dropped, unacknowledged ones are returned again, and an
// empty batch is returned when nothing arrives within params.Timeout.
func (c *Channel) Fetch(ctx context.Context, params updates.FetchParams) ([]updates.Update, error) {
	c.startOnce.Do(c.start)

	if batch := c.unacknowledged(params); len(batch) > 0 {
		return batch, nil
	}
	if params.Timeout <= 0 {
		return nil, nil
	}

	timer := time.NewTimer(params.Timeout)
	defer timer.Stop()

	lines := c.requestLine()
	select {
	case res := <-lines:
		c.mu.Lock()
		c.reading = false
		c.mu.Unlock()
		if res.err != nil {
			if !errors.Is(res.err, io.EOF) {
				logging.Logger().Warn("console input failed", "err", res.err)
			}
			c.finish()
			return nil, nil
		}
		return c.accept(res.line), nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// requestLine asks the reader for the next line unless a read is already in
// flight. It returns nil once input has ended.
func (c *Channel) requestLine() <-chan readResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if !c.reading {
		c.reading = true
		c.requests <- struct{}{}
	}
	return c.lines
}

func (c *Channel) unacknowledged(params updates.FetchParams) []updates.Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.pending[:0]
	for _, upd := range c.pending {
		if upd.ID >= params.Offset {
			kept = append(kept, upd)
		}
	}
	c.pending = kept

	n := len(c.pending)
	if params.Limit > 0 && n > params.Limit {
		n = params.Limit
	}
	batch := make([]updates.Update, n)
	copy(batch, c.pending[:n])
	return batch
}

func (c *Channel) accept(line string) []updates.Update {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return nil
	case "/quit", "/exit":
		c.finish()
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	payload := &models.Update{
		ID: id,
		Message: &models.Message{
			ID:   int(id),
			Date: int(time.Now().Unix()),
			Chat: models.Chat{ID: ChatID, Type: "private"},
			From: &models.User{ID: userID, FirstName: "console"},
			Text: line,
		},
	}
	upd, err := updates.FromPayload(payload)
	if err != nil {
		logging.Logger().Warn("dropping console input", "err", err)
		return nil
	}
	c.pending = append(c.pending, upd)
	return []updates.Update{upd}
}

func (c *Channel) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *Channel) start() {
	rl, err := newReadline(c.in, c.out, c.historyPath)
	if err == nil {
		c.rl = rl
	} else {
		c.fallback = bufio.NewReader(c.in)
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	go c.readLoop()
}

func (c *Channel) readLoop() {
	defer close(c.readerDone)
	for {
		select {
		case <-c.requests:
		case <-c.done:
			return
		}
		line, err := c.readLine()
		// lines has room for the one outstanding request.
		c.lines <- readResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

func (c *Channel) readLine() (string, error) {
	if c.rl != nil {
		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		return line, nil
	}

	c.writeMu.Lock()
	_, err := fmt.Fprint(c.out, defaultPrompt)
	c.writeMu.Unlock()
	if err != nil {
		return "", err
	}
	line, err := c.fallback.ReadString('\n')
	if err != nil {
		if len(line) > 0 {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

func (c *Channel) writer() io.Writer {
	if c.rl != nil {
		return c.rl.Stdout()
	}
	return c.out
}

func newReadline(in io.Reader, out io.Writer, historyPath string) (*readline.Instance, error) {
	stdin, ok := in.(io.ReadCloser)
	if !ok {
		return nil, fmt.Errorf("stdin is not read-closer")
	}
	inFile, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(inFile.Fd())) {
		return nil, fmt.Errorf("stdin is not terminal")
	}
	outFile, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(outFile.Fd())) {
		return nil, fmt.Errorf("stdout is not terminal")
	}

	return readline.NewEx(&readline.Config{
		Prompt:          defaultPrompt,
		HistoryFile:     historyPath,
		HistoryLimit:    200,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           stdin,
		Stdout:          out,
		Stderr:          out,
	})
}
