package screens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/oskarwestin/gantry/internal/api"
	"github.com/oskarwestin/gantry/internal/calendar"
	"github.com/oskarwestin/gantry/internal/models"
	"github.com/oskarwestin/gantry/internal/plan"
	"github.com/oskarwestin/gantry/internal/repository"
	"github.com/oskarwestin/gantry/internal/schedule"
)

type planningMode int

const (
	planningModeList planningMode = iota
	planningModeEditHours
	planningModeStartDate
)

const startDateLayout = "2006-01-02 15:04"

// Planning is the plan editor of one machine: reorder, inline edits,
// autoschedule and save. It owns the PlanningSession for the current
// machine selection.
type Planning struct {
	client    *api.Client
	stash     *repository.StashRepo
	snapshots *repository.SnapshotRepo
	loc       *time.Location
	width     int
	height    int

	session     *plan.Session
	mode        planningMode
	input       textinput.Model
	critPending schedule.Criterion
	cursor      int

	loadingTasks bool
	loadingCal   bool
	saving       bool
	offline      bool
	err          error
	message      string
}

func NewPlanning(client *api.Client, stash *repository.StashRepo, snapshots *repository.SnapshotRepo, loc *time.Location) *Planning {
	ti := textinput.New()
	ti.CharLimit = 32
	ti.Width = 24

	return &Planning{
		client:    client,
		stash:     stash,
		snapshots: snapshots,
		loc:       loc,
		input:     ti,
	}
}

func (p *Planning) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetSession installs the session of a fresh machine selection.
// Responses of earlier selections are identified by their generation
// and dropped.
func (p *Planning) SetSession(s *plan.Session) {
	p.session = s
	p.cursor = 0
	p.offline = false
	p.err = nil
	p.message = ""
}

func (p *Planning) Session() *plan.Session {
	return p.session
}

type planningTasksMsg struct {
	gen   uint64
	tasks []models.Task
	err   error
}

type planningCalendarMsg struct {
	gen uint64
	cal *models.MachineCalendar
	err error
}

type planSavedMsg struct {
	gen     uint64
	patches []models.PlanPatch
	err     error
}

func (p *Planning) Init() tea.Cmd {
	if p.session == nil {
		return Navigate("machines")
	}
	p.mode = planningModeList
	p.loadingTasks = true
	p.loadingCal = true

	// Task and calendar loads run concurrently; controls stay
	// disabled until both have answered for this generation.
	gen, machine := p.session.Generation, p.session.MachineKey
	return tea.Batch(
		func() tea.Msg {
			tasks, err := p.client.Tasks(context.Background(), machine)
			return planningTasksMsg{gen: gen, tasks: tasks, err: err}
		},
		func() tea.Msg {
			cal, err := p.client.Calendar(context.Background(), machine)
			return planningCalendarMsg{gen: gen, cal: cal, err: err}
		},
	)
}

func (p *Planning) busy() bool {
	return p.loadingTasks || p.loadingCal || p.saving
}

func (p *Planning) Update(msg tea.Msg) tea.Cmd {
	if p.session == nil {
		return nil
	}

	if p.mode == planningModeEditHours || p.mode == planningModeStartDate {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "enter":
				return p.handleInputKey()
			case "esc":
				p.mode = planningModeList
				p.input.Blur()
				return nil
			}
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return cmd
	}

	switch msg := msg.(type) {
	case planningTasksMsg:
		if msg.gen != p.session.Generation {
			return nil // stale response from an earlier selection
		}
		p.loadingTasks = false
		if msg.err != nil {
			return p.fallBackToSnapshot(msg.err)
		}
		p.session.SetTasks(msg.tasks)
		p.offline = false
		_ = p.snapshots.Put(p.session.MachineKey, msg.tasks)
		return nil

	case planningCalendarMsg:
		if msg.gen != p.session.Generation {
			return nil
		}
		p.loadingCal = false
		if msg.err != nil {
			// Degrade to 7x24 scheduling rather than blocking.
			p.session.SetCalendar(nil, p.loc)
			p.message = fmt.Sprintf("Calendar unavailable, scheduling around the clock: %v", msg.err)
			return nil
		}
		p.session.SetCalendar(msg.cal, p.loc)
		return nil

	case planSavedMsg:
		if msg.gen != p.session.Generation {
			return nil
		}
		p.saving = false
		if msg.err != nil {
			// Keep local state; stash the change set for retry.
			_ = p.stash.Put(p.session.MachineKey, msg.patches, msg.err.Error())
			p.err = msg.err
			return nil
		}
		p.session.Snapshot()
		_ = p.stash.Delete(p.session.MachineKey)
		p.message = fmt.Sprintf("Saved %d change(s)", len(msg.patches))
		return nil

	case tea.KeyMsg:
		return p.handleListKey(msg)
	}

	return nil
}

func (p *Planning) fallBackToSnapshot(loadErr error) tea.Cmd {
	tasks, loadedAt, err := p.snapshots.Get(p.session.MachineKey)
	if err == nil && tasks != nil {
		p.session.SetTasks(tasks)
		p.offline = true
		p.err = fmt.Errorf("%v (showing cached plan from %s)", loadErr, loadedAt.In(p.loc).Format(startDateLayout))
		return nil
	}
	p.offline = true
	p.err = loadErr
	return nil
}

// rows lists in-plan tasks in plan order followed by the rest.
func (p *Planning) rows() []*models.Task {
	out := p.session.InPlan()
	for _, t := range p.session.Tasks() {
		if !t.InPlan {
			out = append(out, t)
		}
	}
	return out
}

func (p *Planning) handleListKey(msg tea.KeyMsg) tea.Cmd {
	rows := p.rows()
	inPlanCount := len(p.session.InPlan())
	if p.cursor >= len(rows) {
		p.cursor = max(0, len(rows)-1)
	}

	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(rows)-1 {
			p.cursor++
		}

	case "K": // move task up
		if p.busy() || p.offline {
			return nil
		}
		if p.cursor > 0 && p.cursor < inPlanCount {
			if err := p.session.Reorder(p.cursor, p.cursor-1); err == nil {
				p.cursor--
			}
		}
	case "J": // move task down
		if p.busy() || p.offline {
			return nil
		}
		if p.cursor < inPlanCount-1 {
			if err := p.session.Reorder(p.cursor, p.cursor+1); err == nil {
				p.cursor++
			}
		}

	case "e":
		if p.busy() || p.offline || len(rows) == 0 {
			return nil
		}
		p.mode = planningModeEditHours
		p.input.Placeholder = "remaining hours"
		// Prefill the stored value only; the scheduling fallbacks stay
		// fallbacks until the user types a real number.
		prefill := ""
		if h := rows[p.cursor].RemainingHours; h > 0 {
			prefill = strconv.FormatFloat(h, 'f', -1, 64)
		}
		p.input.SetValue(prefill)
		p.input.Focus()

	case "x":
		if p.busy() || p.offline || len(rows) == 0 || !rows[p.cursor].InPlan {
			return nil
		}
		if err := p.session.RemoveFromPlan(rows[p.cursor].Key); err != nil {
			p.err = err
		}

	case "p":
		if p.busy() || p.offline || len(rows) == 0 || rows[p.cursor].InPlan {
			return nil
		}
		if err := p.session.AddToPlan(rows[p.cursor].Key); err != nil {
			p.err = err
		}

	case "L":
		if p.busy() || p.offline || len(rows) == 0 {
			return nil
		}
		if err := p.session.ToggleLock(rows[p.cursor].Key); err != nil {
			p.err = err
		}

	case "a", "f":
		if p.busy() || p.offline {
			return nil
		}
		p.critPending = schedule.ByOrder
		if msg.String() == "f" {
			p.critPending = schedule.ByFinishTime
		}
		p.mode = planningModeStartDate
		p.input.Placeholder = startDateLayout
		p.input.SetValue(time.Now().In(p.loc).Format(startDateLayout))
		p.input.Focus()

	case "s":
		if p.busy() || p.offline {
			return nil
		}
		return p.save()

	case "g":
		return Navigate("gantt")

	case "r":
		if p.busy() {
			return nil
		}
		return p.Init()

	case "q", "esc":
		return Navigate("machines")
	}
	return nil
}

func (p *Planning) handleInputKey() tea.Cmd {
	value := strings.TrimSpace(p.input.Value())
	mode := p.mode
	p.mode = planningModeList
	p.input.Blur()

	switch mode {
	case planningModeEditHours:
		rows := p.rows()
		if len(rows) == 0 || value == "" {
			return nil
		}
		hours, err := strconv.ParseFloat(value, 64)
		if err != nil {
			p.err = fmt.Errorf("invalid hours %q", value)
			return nil
		}
		if err := p.session.SetRemainingHours(rows[p.cursor].Key, hours); err != nil {
			p.err = err
		}

	case planningModeStartDate:
		start, err := parseStartDate(value, p.loc)
		if err != nil {
			// Validated before anything mutates.
			p.err = err
			return nil
		}
		switch err := p.session.Autoschedule(start, p.critPending); {
		case errors.Is(err, schedule.ErrNothingToSchedule):
			p.message = "Nothing to schedule"
		case errors.Is(err, calendar.ErrHorizonExhausted):
			p.err = fmt.Errorf("no working time found in calendar horizon")
		case err != nil:
			p.err = err
		default:
			p.message = "Autoschedule complete, review and save"
		}
	}
	return nil
}

func parseStartDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("start date is required")
	}
	if t, err := time.ParseInLocation(startDateLayout, value, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid start date %q, want YYYY-MM-DD [HH:MM]", value)
}

func (p *Planning) save() tea.Cmd {
	patches := p.session.ChangeSet()
	if len(patches) == 0 {
		p.message = "No changes to save"
		return nil
	}

	p.saving = true
	gen := p.session.Generation
	return func() tea.Msg {
		err := p.client.SavePlan(context.Background(), patches)
		return planSavedMsg{gen: gen, patches: patches, err: err}
	}
}

func (p *Planning) fmtMs(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return models.MillisToTime(*ms, p.loc).Format("01-02 15:04")
}

func (p *Planning) View() string {
	if p.session == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("PLAN - %s", p.session.MachineKey)))
	b.WriteString("\n\n")

	if p.loadingTasks || p.loadingCal {
		b.WriteString("Loading plan...\n")
		return b.String()
	}

	if p.err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", p.err)))
		b.WriteString("\n\n")
		p.err = nil
	}
	if p.message != "" {
		b.WriteString(SuccessStyle.Render(p.message))
		b.WriteString("\n\n")
		p.message = ""
	}
	if p.offline {
		b.WriteString(WarningStyle.Render("OFFLINE - cached plan, editing disabled"))
		b.WriteString("\n\n")
	}

	if p.mode == planningModeEditHours {
		b.WriteString("Remaining hours:\n")
		b.WriteString(p.input.View())
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("[enter] Apply  [esc] Cancel"))
		return b.String()
	}
	if p.mode == planningModeStartDate {
		label := "Autoschedule from (by plan order):"
		if p.critPending == schedule.ByFinishTime {
			label = "Autoschedule from (by finish time):"
		}
		b.WriteString(label + "\n")
		b.WriteString(p.input.View())
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("[enter] Run  [esc] Cancel"))
		return b.String()
	}

	rows := p.rows()
	inPlanCount := len(p.session.InPlan())
	if len(rows) == 0 {
		b.WriteString(DimStyle.Render("No tasks on this machine."))
		b.WriteString("\n")
	}

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("  %-3s %-10s %-24s %6s  %-11s %-11s %s",
		"#", "KEY", "TASK", "HOURS", "START", "END", "LOCK")))
	b.WriteString("\n")

	for i, t := range rows {
		if i == inPlanCount && inPlanCount > 0 {
			b.WriteString(DimStyle.Render("  --- not in plan ---"))
			b.WriteString("\n")
		}

		cursor := "  "
		style := NormalStyle
		if i == p.cursor {
			cursor = "> "
			style = SelectedStyle
		}
		if !t.InPlan {
			style = DimStyle
			if i == p.cursor {
				style = SelectedStyle
			}
		}

		order := "-"
		if t.PlanOrder != nil {
			order = strconv.Itoa(*t.PlanOrder)
		}
		lock := ""
		if t.PlanLocked {
			lock = "*"
		}
		name := truncate(t.Name, 24)

		line := fmt.Sprintf("%s%-3s %-10s %-24s %6.1f  %-11s %-11s %s",
			cursor, order, t.Key, name, t.PlanHours(), p.fmtMs(t.PlannedStartMs), p.fmtMs(t.PlannedEndMs), lock)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := "[J/K] Move  [e] Hours  [x] Unplan  [p] Plan  [L] Lock  [a] Schedule  [f] By finish  [s] Save  [g] Gantt  [r] Reload  [q] Back"
	if p.offline {
		help = "[r] Reload  [g] Gantt  [q] Back"
	}
	b.WriteString(HelpStyle.Render(help))
	return b.String()
}
