package tui

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"nthprime/internal/domain"
)

// PrimePort is the TUI-facing subset of the prime service.
type PrimePort interface {
	NthPrime(ctx context.Context, n *big.Int) (*big.Int, error)
	IsPrime(ctx context.Context, k *big.Int) (domain.Classification, error)
	Bounds(n *big.Int) (domain.Window, error)
}

// resultMsg carries a finished computation back into Update.
type resultMsg struct {
	line    string
	err     error
	elapsed time.Duration
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service  PrimePort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []string
	status   string
	busy     bool
	cancel   context.CancelFunc
	ready    bool
}

// New creates a new TUI model instance.
func New(service PrimePort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "n | is <k> | bound <n>"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{service: service, input: ti, viewport: vp, spinner: sp, status: "Enter n to compute the n-th prime."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := historyBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderHistory())
		return m, nil
	case resultMsg:
		m.busy = false
		m.cancel = nil
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Done in %s", msg.elapsed.Round(time.Microsecond))
			m.history = append(m.history, msg.line)
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		switch msg.String() {
		case "esc":
			if m.busy && m.cancel != nil {
				m.cancel()
				m.status = "Cancelling..."
				return m, nil
			}
		case "enter":
			if m.busy {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			run, err := m.parse(q)
			if err != nil {
				m.status = "Error: " + err.Error()
				return m, nil
			}
			ctx, cancel := context.WithCancel(context.Background())
			m.cancel = cancel
			m.busy = true
			m.status = fmt.Sprintf("Computing %s (esc to cancel)", q)
			m.input.SetValue("")
			return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
				defer cancel()
				start := time.Now()
				line, err := run(ctx)
				return resultMsg{line: line, err: err, elapsed: time.Since(start)}
			})
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("nthprime")
	history := historyBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + history + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return "No results yet."
	}
	return strings.Join(m.history, "\n")
}

type job func(ctx context.Context) (string, error)

// parse turns a query into a job. Accepted forms: "<n>", "nth <n>",
// "is <k>", "bound <n>".
func (m Model) parse(q string) (job, error) {
	fields := strings.Fields(strings.ToLower(q))
	verb, arg := "nth", fields[0]
	if len(fields) == 2 {
		verb, arg = fields[0], fields[1]
	} else if len(fields) > 2 {
		return nil, errors.New("expected at most two words")
	}
	v, ok := new(big.Int).SetString(strings.ReplaceAll(arg, ",", ""), 10)
	if !ok {
		return nil, fmt.Errorf("%q is not an integer", arg)
	}
	switch verb {
	case "nth", "n":
		return func(ctx context.Context) (string, error) {
			p, err := m.service.NthPrime(ctx, v)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("p(%s) = %s", humanize.BigComma(v), highlightStyle.Render(humanize.BigComma(p))), nil
		}, nil
	case "is", "isprime":
		return func(ctx context.Context) (string, error) {
			c, err := m.service.IsPrime(ctx, v)
			if err != nil {
				return "", err
			}
			verdict := "composite"
			if c.Prime {
				verdict = highlightStyle.Render("prime")
			}
			if !c.Exact {
				verdict += " (probable)"
			}
			return fmt.Sprintf("%s is %s", humanize.BigComma(v), verdict), nil
		}, nil
	case "bound":
		return func(context.Context) (string, error) {
			w, err := m.service.Bounds(v)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("p(%s) in [%s, %s), Rosser < %s", humanize.BigComma(v),
				humanize.BigComma(w.Lower), humanize.BigComma(w.Upper), humanize.BigComma(w.Rosser)), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", verb)
	}
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
