package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/oskarwestin/gantry/internal/api"
	"github.com/oskarwestin/gantry/internal/models"
	"github.com/oskarwestin/gantry/internal/repository"
)

// Machines is the work-center picker, the entry screen of the planner.
type Machines struct {
	client *api.Client
	stash  *repository.StashRepo
	width  int
	height int

	machines []models.Machine
	pending  map[string]bool
	cursor   int
	loading  bool
	spin     spinner.Model
	err      error
}

func NewMachines(client *api.Client, stash *repository.StashRepo) *Machines {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Machines{client: client, stash: stash, spin: sp}
}

func (m *Machines) SetSize(width, height int) {
	m.width = width
	m.height = height
}

type machinesDataMsg struct {
	machines []models.Machine
	pending  map[string]bool
	err      error
}

func (m *Machines) Init() tea.Cmd {
	m.loading = true
	m.err = nil
	return tea.Batch(m.loadData, m.spin.Tick)
}

func (m *Machines) loadData() tea.Msg {
	machines, err := m.client.Machines(context.Background())
	if err != nil {
		return machinesDataMsg{err: err}
	}

	pending := map[string]bool{}
	if saves, err := m.stash.All(); err == nil {
		for _, s := range saves {
			pending[s.MachineKey] = true
		}
	}
	return machinesDataMsg{machines: machines, pending: pending}
}

func (m *Machines) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case machinesDataMsg:
		m.loading = false
		m.err = msg.err
		m.machines = msg.machines
		m.pending = msg.pending
		if m.cursor >= len(m.machines) {
			m.cursor = max(0, len(m.machines)-1)
		}
		return nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.machines)-1 {
				m.cursor++
			}
		case "r":
			return m.Init()
		case "enter":
			if len(m.machines) > 0 {
				return NavigateToMachine("planning", m.machines[m.cursor].Key)
			}
		}
	}
	return nil
}

func (m *Machines) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("MACHINES"))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.spin.View() + " Loading machines...\n")
		return b.String()
	}

	if m.err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("[r] Retry  [ctrl+c] Quit"))
		return b.String()
	}

	if len(m.machines) == 0 {
		b.WriteString(DimStyle.Render("No machines available."))
		b.WriteString("\n")
	} else {
		for i, mach := range m.machines {
			cursor := "  "
			style := NormalStyle
			if i == m.cursor {
				cursor = "> "
				style = SelectedStyle
			}

			line := fmt.Sprintf("%s%s (%s)", cursor, mach.Name, mach.Key)
			if m.pending[mach.Key] {
				line += "  " + WarningStyle.Render("[unsaved plan]")
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("[enter] Open plan  [r] Refresh  [q] Quit"))
	return b.String()
}
