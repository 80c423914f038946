// Package prompt provides prompt handlers for the document watcher: an
// interactive terminal prompt, a fixed policy for unattended runs and a
// scripted handler for tests and automation.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/lifecycle"
	"github.com/charmbracelet/lipgloss"

	"github.com/aretw0/folio/pkg/core"
)

type styles struct {
	title  lipgloss.Style
	batch  lipgloss.Style
	option lipgloss.Style
	err    lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		batch:  r.NewStyle().Faint(true),
		option: r.NewStyle().Foreground(lipgloss.Color("6")),
		err:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

// Terminal asks conflicts on a line-oriented terminal. Answers are an option
// number or a decision name such as "reload" or "close-all".
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	lines  chan string
	styles styles
}

var _ core.PromptHandler = (*Terminal)(nil)

// NewTerminal reads answers from in and writes prompts to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{
		out:    out,
		lines:  make(chan string),
		styles: newStyles(out),
	}
	lifecycle.Go(context.Background(), func(ctx context.Context) error {
		defer close(t.lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			t.lines <- strings.TrimSpace(sc.Text())
		}
		return sc.Err()
	})
	return t
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

func (t *Terminal) Ask(ctx context.Context, c core.Conflict, batch core.BatchContext) (core.Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		t.render(c, batch)
		line, err := t.readLine(ctx)
		if err != nil {
			return core.Decision{}, err
		}
		kind, ok := choose(c.Options, line)
		if !ok {
			fmt.Fprintf(t.out, "Invalid choice %q\n\n", line)
			continue
		}
		if kind != core.DecisionSaveAs {
			return core.Decision{Kind: kind}, nil
		}

		fmt.Fprint(t.out, "Save as: ")
		path, err := t.readLine(ctx)
		if err != nil {
			return core.Decision{}, err
		}
		if path == "" {
			fmt.Fprintln(t.out)
			continue
		}
		return core.SaveAs(path), nil
	}
}

func (t *Terminal) ReportError(ctx context.Context, fe core.FileError) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out, t.styles.err.Render(fe.Title))
	fmt.Fprintln(t.out, fe.Summary)
	if fe.Detail != "" {
		fmt.Fprintln(t.out, fe.Detail)
	}
	fmt.Fprintln(t.out)
}

func (t *Terminal) render(c core.Conflict, batch core.BatchContext) {
	title := t.styles.title.Render(c.Title)
	if batch.Index > 1 || batch.Remaining > 1 {
		total := batch.Index + batch.Remaining - 1
		title += " " + t.styles.batch.Render(fmt.Sprintf("(%d of %d)", batch.Index, total))
	}
	fmt.Fprintln(t.out, title)
	fmt.Fprintln(t.out, c.Text)
	for i, o := range c.Options {
		fmt.Fprintf(t.out, "  %s %s\n", t.styles.option.Render(strconv.Itoa(i+1)+")"), o.Label)
	}
	fmt.Fprint(t.out, "> ")
}

// choose maps an answer to an offered option, by number or by name.
func choose(options []core.Option, answer string) (core.DecisionKind, bool) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1].Kind, true
		}
		return 0, false
	}
	kind, err := core.ParseDecisionKind(strings.ToLower(answer))
	if err != nil {
		return 0, false
	}
	for _, o := range options {
		if o.Kind == kind {
			return kind, true
		}
	}
	return 0, false
}
