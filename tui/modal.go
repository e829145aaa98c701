// Package tui renders the wallet-selection modal in the terminal.
package tui

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xWizop/incubator-sub002"
)

// ErrUnexpectedModel is returned when the program ends with a foreign model.
var ErrUnexpectedModel = errors.New("unexpected final bubbletea model type")

// dismissedMsg reports that the prompt was settled elsewhere.
type dismissedMsg struct{}

type model struct {
	prompt    *walletsession.Prompt
	wallets   []walletsession.Wallet
	cursor    int
	chosen    *walletsession.Wallet
	cancelled bool
	dismissed bool
	styles    styles
}

func newModel(prompt *walletsession.Prompt) model {
	return model{
		prompt:  prompt,
		wallets: prompt.Wallets,
		styles:  newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	done := m.prompt.Done()
	return func() tea.Msg {
		<-done
		return dismissedMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dismissedMsg:
		m.dismissed = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.wallets)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.wallets) == 0 {
				return m, nil
			}
			w := m.wallets[m.cursor]
			m.chosen = &w
			return m, tea.Quit
		case "esc", "q", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.chosen != nil || m.cancelled || m.dismissed {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.title.Render("Connect a wallet"))
	b.WriteString("\n")

	if len(m.wallets) == 0 {
		b.WriteString(m.styles.empty.Render("No wallets registered."))
		b.WriteString("\n")
	}
	for i, w := range m.wallets {
		name := w.DisplayName()
		chain := m.styles.chain.Render(string(w.Chain))
		if i == m.cursor {
			fmt.Fprintf(&b, "%s %s %s\n", m.styles.cursor.Render(">"), m.styles.selected.Render(name), chain)
			continue
		}
		fmt.Fprintf(&b, "  %s %s\n", m.styles.wallet.Render(name), chain)
	}

	b.WriteString(m.styles.help.Render("↑/↓ select • enter connect • esc cancel"))
	return m.styles.frame.Render(b.String()) + "\n"
}

// Modal presents prompts as a terminal list. It implements walletsession.Modal.
type Modal struct {
	input  io.Reader
	output io.Writer
	logger *slog.Logger
}

// Option configures a Modal.
type Option func(*Modal)

// WithInput sets the terminal input. It defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(m *Modal) { m.input = r }
}

// WithOutput sets the terminal output. It defaults to os.Stderr so stdout
// stays free for command output.
func WithOutput(w io.Writer) Option {
	return func(m *Modal) { m.output = w }
}

// WithLogger sets the logger for program failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Modal) { m.logger = logger }
}

// NewModal creates a terminal modal.
func NewModal(opts ...Option) *Modal {
	m := &Modal{input: os.Stdin, output: os.Stderr, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Present runs the list until the user picks a wallet, cancels or the prompt
// is settled elsewhere.
func (m *Modal) Present(prompt *walletsession.Prompt) {
	wallet, err := m.run(prompt)
	switch {
	case err != nil:
		m.logger.Error("wallet modal failed", "prompt", prompt.ID, "error", err)
		prompt.Cancel()
	case wallet != nil:
		prompt.Resolve(*wallet)
	default:
		prompt.Cancel()
	}
}

func (m *Modal) run(prompt *walletsession.Prompt) (*walletsession.Wallet, error) {
	p := tea.NewProgram(
		newModel(prompt),
		tea.WithInput(m.input),
		tea.WithOutput(m.output),
	)

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	rendered, ok := final.(model)
	if !ok {
		return nil, ErrUnexpectedModel
	}
	return rendered.chosen, nil
}
