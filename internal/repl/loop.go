// Package repl is the line-oriented terminal front end: it submits user input,
// prints new transcript messages and asks consent questions inline.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"photoagent/internal/chat"
	"photoagent/internal/conversation"
	"photoagent/internal/i18n"
	"photoagent/internal/permission"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[90m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiBold   = "\x1b[1m"
)

// Session is what the REPL needs from the session controller.
type Session interface {
	SubmitUserInput(ctx context.Context, text string) bool
	Suggestion(n int) (chat.SuggestedAction, bool)
	State() *conversation.Store
	Wait()
}

// ConsentQueue exposes the outstanding consent request. permission.QueueBroker
// satisfies it.
type ConsentQueue interface {
	Outstanding() (permission.ConsentRequest, bool)
	Decide(id string, granted bool) error
}

// Loop holds REPL state: the session, the input source and how much of the
// transcript has been printed.
// Loop 持有 REPL 状态：会话、输入源以及已打印的记录位置。
type Loop struct {
	session Session
	consent ConsentQueue
	in      LineInput
	out     io.Writer
	color   bool
	width   int
	printed int
}

func NewLoop(sess Session, consent ConsentQueue, in LineInput, out io.Writer) *Loop {
	width := 100
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w
		}
	}
	return &Loop{
		session: sess,
		consent: consent,
		in:      in,
		out:     out,
		color:   useColor(),
		width:   width,
	}
}

// Run reads input until EOF, Ctrl+C or /exit.
func (l *Loop) Run(ctx context.Context) error {
	defer l.in.Close()
	l.flush(true)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.settleConsent(ctx); err != nil {
			return err
		}
		line, err := l.in.ReadLine(l.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return err
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "/") {
			if l.command(ctx, text) {
				return nil
			}
			continue
		}
		l.submit(ctx, text)
	}
}

func (l *Loop) submit(ctx context.Context, text string) {
	if !l.session.SubmitUserInput(ctx, text) {
		l.line(ansiYellow, i18n.T("status.busy"))
		return
	}
	l.flush(false)
}

// settleConsent asks the user about each outstanding request until the turn
// no longer waits for permission.
func (l *Loop) settleConsent(ctx context.Context) error {
	for l.session.State().Status() == conversation.StatusRequiresPermission {
		req, ok := l.consent.Outstanding()
		if !ok {
			return nil
		}
		l.line(ansiBold, i18n.T("consent.title")+": "+req.Summary)
		if len(req.URIs) > 0 {
			l.line(ansiDim, "  "+l.fit(strings.Join(req.URIs, ", ")))
		}
		answer, err := l.in.ReadLine(i18n.T("consent.prompt") + " ")
		if err != nil && !errors.Is(err, readline.ErrInterrupt) && !errors.Is(err, io.EOF) {
			return err
		}
		if err := l.decide(req.ID, isYes(answer)); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (l *Loop) decide(id string, granted bool) error {
	if err := l.consent.Decide(id, granted); err != nil {
		if errors.Is(err, permission.ErrNoOutstanding) {
			l.line(ansiYellow, i18n.T("consent.none"))
			return nil
		}
		return err
	}
	l.session.Wait()
	l.flush(false)
	return nil
}

// command handles a slash command and reports whether the loop should exit.
func (l *Loop) command(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	state := l.session.State()
	switch parts[0] {
	case "/exit", "/quit":
		return true
	case "/help":
		l.printCommands()
	case "/select":
		state.SetSelection(parts[1:])
		l.line(ansiDim, i18n.T("cmd.selected", len(state.Selection())))
	case "/clear":
		state.SetSelection(nil)
		l.line(ansiDim, i18n.T("cmd.selected", 0))
	case "/suggest":
		arg := ""
		if len(parts) > 1 {
			arg = parts[1]
		}
		n, err := strconv.Atoi(arg)
		sugg, ok := l.session.Suggestion(n)
		if err != nil || !ok {
			l.line(ansiYellow, i18n.T("cmd.no_suggest", arg))
			return false
		}
		l.line(ansiGreen, "you> "+sugg.Prompt)
		l.submit(ctx, sugg.Prompt)
	case "/allow", "/deny":
		req, ok := l.consent.Outstanding()
		if !ok {
			l.line(ansiYellow, i18n.T("consent.none"))
			return false
		}
		if err := l.decide(req.ID, parts[0] == "/allow"); err != nil {
			l.line(ansiRed, err.Error())
		}
	default:
		l.line(ansiYellow, i18n.T("cmd.unknown", parts[0]))
	}
	return false
}

var replCommands = []struct{ name, key string }{
	{"/help", "cmd.help"},
	{"/select", "cmd.select"},
	{"/clear", "cmd.clear"},
	{"/suggest", "cmd.suggest"},
	{"/allow", "cmd.allow"},
	{"/deny", "cmd.deny"},
	{"/exit", "cmd.exit"},
}

func (l *Loop) printCommands() {
	for _, c := range replCommands {
		fmt.Fprintf(l.out, "  %-10s %s\n", c.name, i18n.T(c.key))
	}
}

// flush prints transcript messages appended since the last call. User
// messages are skipped unless withUser is set, since the terminal echoed them.
func (l *Loop) flush(withUser bool) {
	msgs := l.session.State().Messages()
	if l.printed > len(msgs) {
		l.printed = 0
	}
	for _, m := range msgs[l.printed:] {
		if m.Sender == chat.SenderUser && !withUser {
			continue
		}
		l.printMessage(m)
	}
	l.printed = len(msgs)
}

func (l *Loop) printMessage(m chat.Message) {
	switch m.Sender {
	case chat.SenderUser:
		l.line(ansiGreen, "you> "+m.Text)
	case chat.SenderError:
		l.line(ansiRed, "error: "+m.Text)
	default:
		l.line(ansiCyan, "agent: "+m.Text)
	}
	if len(m.Images) > 0 {
		l.line(ansiDim, "       "+l.fit(strings.Join(m.Images, ", ")))
	}
	if len(m.Suggested) > 0 {
		labels := make([]string, 0, len(m.Suggested))
		for i, s := range m.Suggested {
			labels = append(labels, fmt.Sprintf("%d) %s", i+1, s.Label))
		}
		l.line(ansiDim, "       "+i18n.T("input.suggestions", strings.Join(labels, "  ")))
	}
}

func (l *Loop) prompt() string {
	label := "photos"
	if n := len(l.session.State().Selection()); n > 0 {
		label = fmt.Sprintf("photos [%d]", n)
	}
	return label + "> "
}

func (l *Loop) fit(s string) string {
	return runewidth.Truncate(s, l.width-8, "...")
}

func (l *Loop) line(color, text string) {
	if l.color {
		fmt.Fprintf(l.out, "%s%s%s\n", color, text, ansiReset)
		return
	}
	fmt.Fprintln(l.out, text)
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "是", "允许":
		return true
	}
	return false
}

func useColor() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("PHOTOAGENT_NO_COLOR")) != "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(os.Getenv("TERM"))) != "dumb"
}
