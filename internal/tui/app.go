package tui

import (
	"database/sql"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/oskarwestin/gantry/internal/api"
	"github.com/oskarwestin/gantry/internal/config"
	"github.com/oskarwestin/gantry/internal/plan"
	"github.com/oskarwestin/gantry/internal/repository"
	"github.com/oskarwestin/gantry/internal/tui/screens"
)

type Screen int

const (
	ScreenMachines Screen = iota
	ScreenPlanning
	ScreenGantt
)

type App struct {
	cfg           *config.Config
	loc           *time.Location
	currentScreen Screen
	width         int
	height        int

	// Screen models
	machines *screens.Machines
	planning *screens.Planning
	gantt    *screens.Gantt

	// generation grows on every machine selection; sessions carry it
	// so responses from abandoned selections can be discarded.
	generation uint64
}

func NewApp(db *sql.DB, cfg *config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.BackendURL, cfg.APIToken)
	stash := repository.NewStashRepo(db)
	snapshots := repository.NewSnapshotRepo(db)

	return &App{
		cfg:           cfg,
		loc:           loc,
		currentScreen: ScreenMachines,
		machines:      screens.NewMachines(client, stash),
		planning:      screens.NewPlanning(client, stash, snapshots, loc),
		gantt:         screens.NewGantt(loc),
	}, nil
}

func (a *App) Init() tea.Cmd {
	if a.cfg.DefaultMachine != "" {
		return a.selectMachine(a.cfg.DefaultMachine)
	}
	return a.machines.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.currentScreen == ScreenMachines {
				return a, tea.Quit
			}
			// Deeper screens handle 'q' as back.
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.machines.SetSize(msg.Width, msg.Height)
		a.planning.SetSize(msg.Width, msg.Height)
		a.gantt.SetSize(msg.Width, msg.Height)

	case screens.NavigateMsg:
		return a.handleNavigation(msg)
	}

	var cmd tea.Cmd
	switch a.currentScreen {
	case ScreenMachines:
		cmd = a.machines.Update(msg)
	case ScreenPlanning:
		cmd = a.planning.Update(msg)
	case ScreenGantt:
		cmd = a.gantt.Update(msg)
	}

	return a, cmd
}

// selectMachine starts a fresh planning session under a new
// generation.
func (a *App) selectMachine(machineKey string) tea.Cmd {
	a.generation++
	session := plan.NewSession(machineKey, a.generation)
	a.planning.SetSession(session)
	a.gantt.SetSession(session)
	a.currentScreen = ScreenPlanning
	return a.planning.Init()
}

func (a *App) handleNavigation(msg screens.NavigateMsg) (tea.Model, tea.Cmd) {
	switch msg.Screen {
	case "machines":
		a.currentScreen = ScreenMachines
		return a, a.machines.Init()
	case "planning":
		if msg.MachineKey != "" {
			return a, a.selectMachine(msg.MachineKey)
		}
		a.currentScreen = ScreenPlanning
		return a, nil
	case "gantt":
		a.currentScreen = ScreenGantt
		return a, a.gantt.Init()
	}
	return a, nil
}

func (a *App) View() string {
	var content string

	switch a.currentScreen {
	case ScreenMachines:
		content = a.machines.View()
	case ScreenPlanning:
		content = a.planning.View()
	case ScreenGantt:
		content = a.gantt.View()
	}

	return lipgloss.NewStyle().
		Width(a.width).
		Height(a.height).
		Render(content)
}

func Run(db *sql.DB, cfg *config.Config) error {
	app, err := NewApp(db, cfg)
	if err != nil {
		return err
	}
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
