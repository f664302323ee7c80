// Package repl is the interactive shell: a prompt, statement history, and
// slash commands over one environment. Statements run through the usual
// parse/evaluate pipeline; a failed statement leaves the environment
// untouched.
package repl

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rlch/relic"
	"github.com/rlch/relic/loader"
	"github.com/rlch/relic/rel"
	"github.com/rlch/relic/render"
	"github.com/rlch/relic/workspace"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

const helpText = `commands:
  /load <name> <path> [format]   load a data file as a relation
  /env                           list bound relations
  /drop <name>                   unbind a relation
  /save <path>                   save the workspace
  /open <path>                   open a workspace
  /quit                          exit`

// Model is the bubbletea model for the shell.
type Model struct {
	env      *rel.Env
	input    textinput.Model
	history  []string
	histIdx  int
	rd       *render.Renderer
	ld       *loader.Loader
	log      *zap.Logger
	quitting bool
}

// New creates a shell over env.
func New(env *rel.Env, log *zap.Logger, color bool) Model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("relic> ")
	ti.Focus()

	return Model{
		env:   env,
		input: ti,
		rd:    render.New(color),
		ld:    loader.New(log),
		log:   log,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)

		return m, cmd
	}

	switch keyMsg.String() {
	case "ctrl+c", "ctrl+d":
		m.quitting = true

		return m, tea.Quit

	case "up":
		if m.histIdx > 0 {
			m.histIdx--
			m.input.SetValue(m.history[m.histIdx])
			m.input.CursorEnd()
		}

		return m, nil

	case "down":
		if m.histIdx < len(m.history)-1 {
			m.histIdx++
			m.input.SetValue(m.history[m.histIdx])
			m.input.CursorEnd()
		} else {
			m.histIdx = len(m.history)
			m.input.SetValue("")
		}

		return m, nil

	case "enter":
		line := strings.TrimSpace(m.input.Value())
		if line == "" {
			return m, nil
		}

		m.history = append(m.history, line)
		m.histIdx = len(m.history)
		m.input.SetValue("")

		out, quit := m.execute(line)
		if quit {
			m.quitting = true

			return m, tea.Sequence(tea.Println(out), tea.Quit)
		}

		return m, tea.Println(promptText(line) + "\n" + out)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	return m.input.View() + "\n" + dimStyle.Render("enter a statement, /help for commands, ctrl+d to quit")
}

func promptText(line string) string {
	return promptStyle.Render("relic> ") + line
}

// execute runs one line: a slash command or a statement. It returns the
// output and whether the shell should quit.
func (m Model) execute(line string) (string, bool) {
	if strings.HasPrefix(line, "/") {
		return m.command(line)
	}

	res, err := relic.RunStatement(line, m.env)
	if err != nil {
		return m.rd.Error(err), false
	}

	return m.rd.Result(res), false
}

func (m Model) command(line string) (string, bool) {
	fields := strings.Fields(line)

	switch fields[0] {
	case "/quit", "/q":
		return dimStyle.Render("bye"), true

	case "/help":
		return dimStyle.Render(helpText), false

	case "/env":
		names := m.env.Names()
		if len(names) == 0 {
			return dimStyle.Render("empty environment"), false
		}

		var b strings.Builder

		for _, n := range names {
			r, _ := m.env.Get(n)
			b.WriteString(n + "  {" + strings.Join(r.Schema(), " ") + "}  " + countText(r.Len()) + "\n")
		}

		return strings.TrimRight(b.String(), "\n"), false

	case "/load":
		if len(fields) < 3 {
			return m.rd.Error(errUsage("/load <name> <path> [format]")), false
		}

		format := ""
		if len(fields) > 3 {
			format = fields[3]
		}

		r, err := m.ld.LoadFile(fields[2], format)
		if err != nil {
			return m.rd.Error(err), false
		}

		m.env.Set(fields[1], r)

		return dimStyle.Render("loaded " + fields[1] + " " + countText(r.Len())), false

	case "/drop":
		if len(fields) != 2 {
			return m.rd.Error(errUsage("/drop <name>")), false
		}

		m.env.Drop(fields[1])

		return dimStyle.Render("dropped " + fields[1]), false

	case "/save":
		if len(fields) != 2 {
			return m.rd.Error(errUsage("/save <path>")), false
		}

		if err := workspace.Save(m.env, fields[1]); err != nil {
			return m.rd.Error(err), false
		}

		return dimStyle.Render("saved " + fields[1]), false

	case "/open":
		if len(fields) != 2 {
			return m.rd.Error(errUsage("/open <path>")), false
		}

		env, err := workspace.Load(fields[1])
		if err != nil {
			return m.rd.Error(err), false
		}

		for _, n := range env.Names() {
			r, _ := env.Get(n)
			m.env.Set(n, r)
		}

		return dimStyle.Render("opened " + fields[1]), false

	default:
		return m.rd.Error(errUsage("unknown command " + fields[0] + ", try /help")), false
	}
}

func countText(n int) string {
	if n == 1 {
		return "(1 tuple)"
	}

	return "(" + strconv.Itoa(n) + " tuples)"
}

type usageError string

func errUsage(s string) error { return usageError(s) }

func (e usageError) Error() string { return "usage: " + string(e) }

// Run starts the shell and blocks until it exits.
func Run(env *rel.Env, log *zap.Logger, color bool) error {
	p := tea.NewProgram(New(env, log, color))

	_, err := p.Run()

	return err
}
