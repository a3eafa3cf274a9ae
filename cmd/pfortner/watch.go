package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/term"

	"github.com/codefionn/pfortner/internal/audit"
	"github.com/codefionn/pfortner/internal/config"
)

const (
	watchPollInterval = time.Second
	watchFetchLimit   = 200
	watchKeepRows     = 500
)

// runWatch follows the audit trail: a full-screen view on a terminal, plain
// line output when piped.
func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	plain := fs.Bool("plain", false, "line output even on a terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	store, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if *plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return watchPlain(store)
	}

	m := newWatchModel(store)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// watchPlain prints one line per event until interrupted.
func watchPlain(store *audit.Store) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	var lastID int64
	for {
		events, err := store.Recent(lastID, watchFetchLimit)
		if err != nil {
			return err
		}
		for _, ev := range events {
			fmt.Println(formatEvent(ev))
			lastID = ev.ID
		}
		select {
		case <-sigCh:
			return nil
		case <-ticker.C:
		}
	}
}

func formatEvent(ev audit.Event) string {
	return fmt.Sprintf("%s  %-12s %-16s %-12s %s",
		ev.Time.Local().Format("15:04:05"), ev.Decision, ev.Operation, ev.Identity, ev.Reason)
}

var (
	watchTitleStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230"))
	watchFooterStyle = lipgloss.NewStyle().Faint(true).Padding(0, 1)

	decisionStyles = map[string]lipgloss.Style{
		audit.DecisionAllowed:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		audit.DecisionDenied:       lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		audit.DecisionUnauthorized: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		audit.DecisionRateLimited:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		audit.DecisionError:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
)

type watchTickMsg time.Time

type watchEventsMsg struct {
	events []audit.Event
	err    error
}

type watchModel struct {
	store  *audit.Store
	lastID int64
	rows   []audit.Event
	width  int
	height int
	err    error
}

func newWatchModel(store *audit.Store) *watchModel {
	return &watchModel{store: store, width: 80, height: 24}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), watchTick())
}

func watchTick() tea.Cmd {
	return tea.Tick(watchPollInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m *watchModel) fetch() tea.Cmd {
	store, lastID := m.store, m.lastID
	return func() tea.Msg {
		events, err := store.Recent(lastID, watchFetchLimit)
		return watchEventsMsg{events: events, err: err}
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case watchTickMsg:
		return m, tea.Batch(m.fetch(), watchTick())
	case watchEventsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		for _, ev := range msg.events {
			m.lastID = ev.ID
		}
		m.rows = append(m.rows, msg.events...)
		if len(m.rows) > watchKeepRows {
			m.rows = m.rows[len(m.rows)-watchKeepRows:]
		}
	}
	return m, nil
}

func (m *watchModel) View() string {
	title := watchTitleStyle.Render("pfortner audit trail")
	footer := watchFooterStyle.Render("q to quit")
	if m.err != nil {
		footer = watchFooterStyle.Render(fmt.Sprintf("read error: %v", m.err))
	}

	// Newest at the bottom, window sized to the terminal.
	visible := m.height - 3
	if visible < 1 {
		visible = 1
	}
	rows := m.rows
	if len(rows) > visible {
		rows = rows[len(rows)-visible:]
	}

	body := ""
	for _, ev := range rows {
		style, ok := decisionStyles[ev.Decision]
		if !ok {
			style = lipgloss.NewStyle()
		}
		line := truncate.StringWithTail(formatEvent(ev), uint(m.width), "…")
		body += style.Render(line) + "\n"
	}
	for i := len(rows); i < visible; i++ {
		body += "\n"
	}

	return title + "\n" + body + footer
}
