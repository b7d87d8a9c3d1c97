// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/tasklist/lib/schema"
	"github.com/bureau-foundation/tasklist/lib/session"
	"github.com/bureau-foundation/tasklist/lib/tasksync"
)

// Column identifies one of the board's two columns.
type Column int

const (
	ColumnPending Column = iota
	ColumnCompleted
)

func (c Column) String() string {
	if c == ColumnCompleted {
		return "Completed"
	}
	return "Pending"
}

// noticeDuration is how long a notice stays in the status bar.
const noticeDuration = 4 * time.Second

// MessageNotOwner is shown when a mutation key is pressed on a task
// the current identity did not create.
const MessageNotOwner = "Only the task's creator can change it"

// eventMsg wraps a bridge event for the bubbletea loop.
type eventMsg struct {
	event event
	ok    bool
}

// mutationResultMsg is sent when an asynchronous mutation returns.
// Server failures already arrive as notices; err is shown only for
// local refusals.
type mutationResultMsg struct {
	err error
}

// noticeFadeMsg clears the notice it was scheduled for.
type noticeFadeMsg struct {
	generation int
}

// Model is the bubbletea model for the board.
type Model struct {
	ctx    context.Context
	source Source
	theme  Theme
	keys   KeyMap
	events *bridge
	slab   *util.Slab

	width  int
	height int

	// columns holds the cached tasks after search narrowing, indexed
	// by Column.
	columns    [2][]schema.Task
	column     Column
	cursor     [2]int
	selectedID string
	showDetail bool

	searching bool
	search    string

	notice           *tasksync.Notice
	noticeGeneration int

	tornDown       bool
	teardownReason string
}

// NewModel creates a board over source. Mutations started from the
// board run under ctx. Call Close when the program exits.
func NewModel(ctx context.Context, source Source) Model {
	model := Model{
		ctx:    ctx,
		source: source,
		theme:  DefaultTheme,
		keys:   DefaultKeyMap,
		events: newBridge(source),
		slab:   newSlab(),
	}
	model.rebuild()
	return model
}

// Close detaches the board from its source.
func (model Model) Close() {
	model.events.close()
}

// TeardownReason returns the reason the session ended while the board
// was running, or "" if it did not.
func (model Model) TeardownReason() string {
	return model.teardownReason
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return listen(model.events)
}

func listen(events *bridge) tea.Cmd {
	return func() tea.Msg {
		e, ok := events.next()
		return eventMsg{event: e, ok: ok}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		if model.searching {
			return model.handleSearchKeys(message)
		}
		return model.handleKeys(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height

	case eventMsg:
		if !message.ok {
			return model, nil
		}
		return model.handleEvent(message.event)

	case mutationResultMsg:
		if isLocalRefusal(message.err) {
			return model.showNotice(tasksync.Notice{Kind: tasksync.NoticeFailure, Message: message.err.Error(), Err: message.err})
		}

	case noticeFadeMsg:
		if message.generation == model.noticeGeneration {
			model.notice = nil
		}
	}
	return model, nil
}

func (model Model) handleEvent(e event) (tea.Model, tea.Cmd) {
	next := listen(model.events)
	switch {
	case e.cacheChanged:
		model.rebuild()

	case e.notice != nil:
		updated, fade := model.showNotice(*e.notice)
		return updated, tea.Batch(next, fade)

	case e.session != nil:
		switch e.session.Kind {
		case session.TornDown:
			model.tornDown = true
			model.teardownReason = e.session.Reason
			return model, tea.Quit
		case session.Established:
			model.rebuild()
		}
	}
	return model, next
}

func (model Model) showNotice(notice tasksync.Notice) (Model, tea.Cmd) {
	model.notice = &notice
	model.noticeGeneration++
	generation := model.noticeGeneration
	return model, tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return noticeFadeMsg{generation: generation}
	})
}

func isLocalRefusal(err error) bool {
	return errors.Is(err, tasksync.ErrPermissionDenied) ||
		errors.Is(err, tasksync.ErrUnknownTask) ||
		errors.Is(err, tasksync.ErrNotAuthenticated)
}

func (model Model) handleKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	filter := model.source.Filter()
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.Up):
		model.moveCursor(-1)

	case key.Matches(message, model.keys.Down):
		model.moveCursor(1)

	case key.Matches(message, model.keys.SwitchColumn):
		model.column = 1 - model.column
		model.clampCursor()

	case key.Matches(message, model.keys.Detail):
		model.showDetail = !model.showDetail

	case key.Matches(message, model.keys.ToggleSort):
		filter.ToggleSort()

	case key.Matches(message, model.keys.CycleStatus):
		filter.SetStatus(nextStatusFilter(filter.Query().Status))

	case key.Matches(message, model.keys.Refresh):
		filter.Refresh()

	case key.Matches(message, model.keys.Search):
		model.searching = true

	case key.Matches(message, model.keys.SearchCancel):
		model.search = ""
		model.rebuild()

	case key.Matches(message, model.keys.ToggleStatus):
		return model.mutate(func(ctx context.Context, task schema.Task) error {
			_, err := model.source.ToggleStatus(ctx, task.ID)
			return err
		})

	case key.Matches(message, model.keys.Delete):
		return model.mutate(func(ctx context.Context, task schema.Task) error {
			return model.source.DeleteTask(ctx, task.ID)
		})
	}
	return model, nil
}

// mutate runs action on the selected task in the background if the
// current identity may change it.
func (model Model) mutate(action func(context.Context, schema.Task) error) (tea.Model, tea.Cmd) {
	task, ok := model.Selected()
	if !ok {
		return model, nil
	}
	if !model.source.CanMutate(task) {
		return model.showNotice(tasksync.Notice{Kind: tasksync.NoticeFailure, Message: MessageNotOwner})
	}
	ctx := model.ctx
	return model, func() tea.Msg {
		return mutationResultMsg{err: action(ctx, task)}
	}
}

func (model Model) handleSearchKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch message.Type {
	case tea.KeyCtrlC:
		return model, tea.Quit
	case tea.KeyEsc:
		model.searching = false
		model.search = ""
	case tea.KeyEnter:
		model.searching = false
	case tea.KeyBackspace:
		if runes := []rune(model.search); len(runes) > 0 {
			model.search = string(runes[:len(runes)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		model.search += string(message.Runes)
		if message.Type == tea.KeySpace && len(message.Runes) == 0 {
			model.search += " "
		}
	default:
		return model, nil
	}
	model.rebuild()
	return model, nil
}

// nextStatusFilter cycles all → Pending → Completed → all.
func nextStatusFilter(current schema.Status) schema.Status {
	switch current {
	case "":
		return schema.StatusPending
	case schema.StatusPending:
		return schema.StatusCompleted
	default:
		return ""
	}
}

// rebuild re-reads the cache, applies the search, and restores the
// selection by task id.
func (model *Model) rebuild() {
	pending, completed := model.source.Cache().Partition()
	model.columns[ColumnPending] = narrow(pending, model.search, model.slab)
	model.columns[ColumnCompleted] = narrow(completed, model.search, model.slab)

	if model.selectedID != "" {
		for column, tasks := range model.columns {
			for index, task := range tasks {
				if task.ID == model.selectedID {
					model.column = Column(column)
					model.cursor[column] = index
					return
				}
			}
		}
	}
	model.clampCursor()
}

func (model *Model) clampCursor() {
	tasks := model.columns[model.column]
	cursor := model.cursor[model.column]
	if cursor >= len(tasks) {
		cursor = len(tasks) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	model.cursor[model.column] = cursor
	if len(tasks) == 0 {
		model.selectedID = ""
		return
	}
	model.selectedID = tasks[cursor].ID
}

func (model *Model) moveCursor(delta int) {
	model.cursor[model.column] += delta
	model.clampCursor()
}

// Selected returns the task under the cursor.
func (model Model) Selected() (schema.Task, bool) {
	tasks := model.columns[model.column]
	cursor := model.cursor[model.column]
	if cursor < 0 || cursor >= len(tasks) {
		return schema.Task{}, false
	}
	return tasks[cursor], true
}

// ActiveColumn returns the column holding the cursor.
func (model Model) ActiveColumn() Column { return model.column }

// ColumnTasks returns the tasks shown in column.
func (model Model) ColumnTasks(column Column) []schema.Task {
	return model.columns[column]
}

// View implements tea.Model.
func (model Model) View() string {
	if model.tornDown {
		style := lipgloss.NewStyle().Foreground(model.theme.NoticeAuth).Bold(true)
		return style.Render("Signed out: "+model.teardownReason) + "\n"
	}
	width := model.width
	if width <= 0 {
		width = 80
	}
	height := model.height
	if height <= 0 {
		height = 24
	}

	header := model.renderHeader(width)
	status := model.renderStatusBar(width)
	bodyHeight := height - 2
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	var sections []string
	sections = append(sections, header)
	if model.showDetail {
		listHeight := bodyHeight / 2
		sections = append(sections,
			model.renderColumns(width, listHeight),
			model.renderDetail(width, bodyHeight-listHeight),
		)
	} else {
		sections = append(sections, model.renderColumns(width, bodyHeight))
	}
	sections = append(sections, status)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model Model) renderHeader(width int) string {
	query := model.source.Filter().Query()
	title := "Tasks"
	if profile, ok := model.source.Profile(); ok {
		title += " · " + profile.DisplayName()
	}

	status := "all"
	if query.Status != "" {
		status = string(query.Status)
	}
	due := "any"
	if !query.DueDate.IsZero() {
		due = query.DueDate.String()
	}
	state := fmt.Sprintf("status: %s  due: %s  sort: %s", status, due, query.Sort.Normalized())
	if model.searching || model.search != "" {
		state += "  /" + model.search
		if model.searching {
			state += "█"
		}
	}

	left := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render(title)
	right := lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(state)
	gap := width - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 1 {
		gap = 1
	}
	return ansi.Truncate(left+strings.Repeat(" ", gap)+right, width, "…")
}

func (model Model) renderColumns(width, height int) string {
	columnWidth := (width - 1) / 2
	pending := model.renderColumn(ColumnPending, columnWidth, height)
	completed := model.renderColumn(ColumnCompleted, width-1-columnWidth, height)
	divider := lipgloss.NewStyle().Foreground(model.theme.BorderColor).
		Render(strings.TrimRight(strings.Repeat("│\n", height), "\n"))
	return lipgloss.JoinHorizontal(lipgloss.Top, pending, divider, completed)
}

func (model Model) renderColumn(column Column, width, height int) string {
	tasks := model.columns[column]
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.StatusColor(schema.Status(column.String())))
	if column != model.column {
		headerStyle = headerStyle.Faint(true)
	}
	lines := []string{headerStyle.Render(fmt.Sprintf("%s (%d)", column, len(tasks)))}

	rows := height - 1
	start := 0
	if cursor := model.cursor[column]; cursor >= rows {
		start = cursor - rows + 1
	}
	for index := start; index < len(tasks) && len(lines) < height; index++ {
		selected := column == model.column && index == model.cursor[column]
		lines = append(lines, model.renderRow(tasks[index], width, selected))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (model Model) renderRow(task schema.Task, width int, selected bool) string {
	textStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	if !model.source.CanMutate(task) {
		textStyle = textStyle.Foreground(model.theme.FaintText)
	}
	if selected {
		textStyle = textStyle.Background(model.theme.SelectedBackground).Foreground(model.theme.SelectedForeground)
	}

	due := ""
	if day := task.DueDay(); !day.IsZero() {
		due = day.String()
	}
	titleWidth := width - ansi.StringWidth(due) - 2
	if titleWidth < 4 {
		titleWidth = 4
	}
	title := model.highlightTitle(task.Title, textStyle)
	title = ansi.Truncate(title, titleWidth, "…")
	padding := width - ansi.StringWidth(title) - ansi.StringWidth(due) - 1
	if padding < 1 {
		padding = 1
	}
	return " " + title + textStyle.Render(strings.Repeat(" ", padding)) +
		lipgloss.NewStyle().Foreground(model.theme.FaintText).Inherit(textStyle).Render(due)
}

// highlightTitle marks the runes the search matched.
func (model Model) highlightTitle(title string, style lipgloss.Style) string {
	pattern := []rune(strings.TrimSpace(model.search))
	match := fuzzyMatch(title, pattern, model.slab)
	if len(match.Positions) == 0 {
		return style.Render(title)
	}
	highlight := style.Background(model.theme.SearchHighlightBackground)
	marked := make(map[int]bool, len(match.Positions))
	for _, position := range match.Positions {
		marked[position] = true
	}
	var builder strings.Builder
	for index, character := range []rune(title) {
		if marked[index] {
			builder.WriteString(highlight.Render(string(character)))
		} else {
			builder.WriteString(style.Render(string(character)))
		}
	}
	return builder.String()
}

func (model Model) renderDetail(width, height int) string {
	border := lipgloss.NewStyle().Foreground(model.theme.BorderColor).Render(strings.Repeat("─", width))
	task, ok := model.Selected()
	if !ok {
		return border + "\n" + lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("No task selected")
	}

	label := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	lines := []string{
		border,
		lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render(task.Title),
		label.Render("status ") + lipgloss.NewStyle().Foreground(model.theme.StatusColor(task.Status)).Render(string(task.Status)),
	}
	if day := task.DueDay(); !day.IsZero() {
		lines = append(lines, label.Render("due    ")+day.String())
	}
	lines = append(lines, label.Render("by     ")+task.CreatedBy.Label())
	if task.AssignedUser != nil {
		lines = append(lines, label.Render("for    ")+task.AssignedUser.Label())
	}
	if !model.source.CanMutate(task) {
		lines = append(lines, label.Render("read-only"))
	}
	if description := renderMarkdown(task.Description, model.theme, width); description != "" {
		lines = append(lines, "", description)
	}

	content := strings.Split(strings.Join(lines, "\n"), "\n")
	if len(content) > height {
		content = content[:height]
	}
	return strings.Join(content, "\n")
}

func (model Model) renderStatusBar(width int) string {
	if model.notice != nil {
		style := lipgloss.NewStyle().Bold(true).Foreground(model.theme.NoticeColor(model.notice.Kind))
		return ansi.Truncate(style.Render(model.notice.Message), width, "…")
	}
	var parts []string
	for _, binding := range model.keys.helpBindings() {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	style := lipgloss.NewStyle().Foreground(model.theme.HelpText)
	return ansi.Truncate(style.Render(strings.Join(parts, "  ")), width, "…")
}
