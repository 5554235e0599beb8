// internal/tui/app.go
//
// The editor shell. It follows The Elm Architecture via bubbletea: the App
// model holds all screen state, Update reacts to messages, View renders.
// Screens: the draft prompt shown on open, the section menu, the active
// section's form, and the attachment picker.

package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/drvillela/expediente/internal/editor"
	"github.com/drvillela/expediente/internal/expedient"
	"github.com/drvillela/expediente/internal/progress"
	"github.com/drvillela/expediente/internal/registry"
	"github.com/drvillela/expediente/internal/saver"
	"go.uber.org/zap"
)

type appState int

const (
	stateDraftPrompt appState = iota // "resume draft?" modal on open
	stateMenu                        // section picker
	stateForm                        // editing the active section
	stateAttachSlot                  // choosing an attachment slot
	stateAttachPath                  // typing the file path to attach
)

type saveResultMsg struct {
	section expedient.SectionKey
	result  saver.Result
	err     error
}

type sectionItem struct {
	key      expedient.SectionKey
	complete bool
}

func (i sectionItem) Title() string {
	mark := "○"
	if i.complete {
		mark = "●"
	}
	return fmt.Sprintf("%s %s", mark, i.key.Title())
}

func (i sectionItem) Description() string {
	if i.complete {
		return "Guardada"
	}
	return "Pendiente"
}

func (i sectionItem) FilterValue() string { return string(i.key) }

type slotItem struct {
	slot expedient.Slot
}

func (i slotItem) Title() string       { return string(i.slot) }
func (i slotItem) Description() string { return "Seleccionar archivo de imagen" }
func (i slotItem) FilterValue() string { return string(i.slot) }

// App is the editor's top-level bubbletea model.
type App struct {
	session  *editor.Session
	registry *registry.Registry
	progress *progress.Tracker
	logger   *zap.Logger

	offer *editor.Offer

	state       appState
	sectionMenu list.Model
	slotMenu    list.Model
	pathInput   textinput.Model

	forms      map[expedient.SectionKey][]*SubForm
	current    expedient.SectionKey
	focusSub   int
	focusField int

	pendingSlot expedient.Slot
	statusMsg   string
	width       int
	height      int
}

// NewApp builds the shell, creating and registering one SubForm editor per
// sub-form kind. offer may be nil when no stored draft was found.
func NewApp(session *editor.Session, reg *registry.Registry, tracker *progress.Tracker, offer *editor.Offer, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	forms := make(map[expedient.SectionKey][]*SubForm)
	for _, section := range expedient.SectionOrder {
		for _, kind := range expedient.KindsFor(section) {
			form := NewSubForm(kind)
			if err := reg.Register(form); err != nil {
				logger.Warn("sub-form registration rejected", zap.Error(err))
				continue
			}
			forms[section] = append(forms[section], form)
		}
	}

	sectionMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	sectionMenu.Title = "Expediente clínico"
	sectionMenu.SetShowStatusBar(false)
	sectionMenu.SetFilteringEnabled(false)

	slotMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	slotMenu.Title = "Adjuntar imagen"
	slotMenu.SetShowStatusBar(false)
	slotMenu.SetFilteringEnabled(false)

	pathInput := textinput.New()
	pathInput.Prompt = "Archivo: "
	pathInput.Placeholder = "/ruta/a/imagen.png"

	state := stateMenu
	if offer != nil {
		state = stateDraftPrompt
	}
	app := &App{
		session:     session,
		registry:    reg,
		progress:    tracker,
		logger:      logger,
		offer:       offer,
		state:       state,
		sectionMenu: sectionMenu,
		slotMenu:    slotMenu,
		pathInput:   pathInput,
		forms:       forms,
		current:     tracker.Active(),
	}
	app.refreshSectionMenu()
	return app
}

func (a *App) refreshSectionMenu() {
	snapshot := a.progress.Snapshot()
	items := make([]list.Item, 0, len(expedient.SectionOrder))
	for _, section := range expedient.SectionOrder {
		items = append(items, sectionItem{key: section, complete: snapshot[section]})
	}
	a.sectionMenu.SetItems(items)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update dispatches messages by screen.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.sectionMenu.SetSize(maxInt(0, msg.Width-6), maxInt(0, msg.Height-10))
		a.slotMenu.SetSize(maxInt(0, msg.Width-6), maxInt(0, msg.Height-10))
		return a, nil

	case saveResultMsg:
		return a.handleSaveResult(msg)

	case tea.KeyMsg:
		switch a.state {
		case stateDraftPrompt:
			return a.updateDraftPrompt(msg)
		case stateMenu:
			return a.updateMenu(msg)
		case stateForm:
			return a.updateForm(msg)
		case stateAttachSlot:
			return a.updateAttachSlot(msg)
		case stateAttachPath:
			return a.updateAttachPath(msg)
		}
	}
	return a, nil
}

func (a *App) updateDraftPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "s", "enter":
		a.session.AcceptDraft(a.offer)
		a.statusMsg = "Borrador restaurado"
		a.offer = nil
		a.state = stateMenu
	case "n", "esc":
		if err := a.session.RejectDraft(a.offer); err != nil {
			a.statusMsg = fmt.Sprintf("Error al descartar borrador: %v", err)
		} else {
			a.statusMsg = "Borrador descartado"
		}
		a.offer = nil
		a.state = stateMenu
	case "ctrl+c":
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		a.session.Close()
		return a, tea.Quit
	case "enter":
		item, ok := a.sectionMenu.SelectedItem().(sectionItem)
		if !ok {
			return a, nil
		}
		if err := a.session.JumpTo(item.key); err != nil {
			a.statusMsg = err.Error()
			return a, nil
		}
		return a, a.enterSection(item.key)
	}
	var cmd tea.Cmd
	a.sectionMenu, cmd = a.sectionMenu.Update(msg)
	return a, cmd
}

func (a *App) enterSection(section expedient.SectionKey) tea.Cmd {
	a.current = section
	a.state = stateForm
	a.focusSub = 0
	a.focusField = 0
	if forms := a.forms[section]; len(forms) > 0 {
		return forms[0].Focus(0)
	}
	return nil
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	forms := a.forms[a.current]
	switch msg.String() {
	case "ctrl+c":
		a.session.Close()
		return a, tea.Quit
	case "esc":
		if len(forms) > a.focusSub {
			forms[a.focusSub].Focus(-1)
		}
		a.state = stateMenu
		a.refreshSectionMenu()
		return a, nil
	case "tab", "enter":
		return a, a.cycleFocus(forms, 1)
	case "shift+tab":
		return a, a.cycleFocus(forms, -1)
	case "ctrl+s":
		a.statusMsg = fmt.Sprintf("Guardando %s...", a.current.Title())
		return a, a.saveCmd(a.current)
	case "ctrl+a":
		if slots := expedient.SlotsFor(a.current); len(slots) > 0 {
			items := make([]list.Item, 0, len(slots))
			for _, slot := range slots {
				items = append(items, slotItem{slot: slot})
			}
			a.slotMenu.SetItems(items)
			a.state = stateAttachSlot
			return a, nil
		}
		a.statusMsg = "Esta sección no tiene imágenes adjuntas"
		return a, nil
	}
	if len(forms) > a.focusSub {
		return a, forms[a.focusSub].Update(msg)
	}
	return a, nil
}

// cycleFocus moves keyboard focus across every field of every sub-form in
// the active section.
func (a *App) cycleFocus(forms []*SubForm, delta int) tea.Cmd {
	if len(forms) == 0 {
		return nil
	}
	forms[a.focusSub].Focus(-1)
	a.focusField += delta
	for a.focusField < 0 || a.focusField >= forms[a.focusSub].FieldCount() {
		if a.focusField < 0 {
			a.focusSub--
			if a.focusSub < 0 {
				a.focusSub = len(forms) - 1
			}
			a.focusField = forms[a.focusSub].FieldCount() - 1
		} else {
			a.focusSub = (a.focusSub + 1) % len(forms)
			a.focusField = 0
		}
	}
	return forms[a.focusSub].Focus(a.focusField)
}

func (a *App) updateAttachSlot(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.state = stateForm
		return a, nil
	case "ctrl+c":
		return a, tea.Quit
	case "enter":
		item, ok := a.slotMenu.SelectedItem().(slotItem)
		if !ok {
			return a, nil
		}
		a.pendingSlot = item.slot
		a.pathInput.SetValue("")
		a.state = stateAttachPath
		return a, a.pathInput.Focus()
	}
	var cmd tea.Cmd
	a.slotMenu, cmd = a.slotMenu.Update(msg)
	return a, cmd
}

func (a *App) updateAttachPath(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.pathInput.Blur()
		a.state = stateForm
		return a, nil
	case "ctrl+c":
		return a, tea.Quit
	case "enter":
		path := strings.TrimSpace(a.pathInput.Value())
		a.pathInput.Blur()
		a.state = stateForm
		if path == "" {
			return a, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			a.statusMsg = fmt.Sprintf("No se pudo leer %s: %v", path, err)
			return a, nil
		}
		if _, err := a.session.SelectAttachment(a.pendingSlot, filepath.Base(path), data); err != nil {
			a.statusMsg = fmt.Sprintf("Imagen rechazada: %v", err)
			return a, nil
		}
		a.statusMsg = fmt.Sprintf("Imagen lista en %s (se sube al guardar la sección)", a.pendingSlot)
		return a, nil
	}
	var cmd tea.Cmd
	a.pathInput, cmd = a.pathInput.Update(msg)
	return a, cmd
}

func (a *App) saveCmd(section expedient.SectionKey) tea.Cmd {
	return func() tea.Msg {
		result, err := a.session.SaveSection(context.Background(), section)
		return saveResultMsg{section: section, result: result, err: err}
	}
}

func (a *App) handleSaveResult(msg saveResultMsg) (tea.Model, tea.Cmd) {
	a.refreshSectionMenu()
	// The outcome is already applied to shared state; feedback is shown only
	// while the saved section is still the current one, so a stale save never
	// overwrites the status of a section the user has moved on to.
	if a.current != msg.section {
		return a, nil
	}
	switch {
	case msg.err != nil:
		a.statusMsg = fmt.Sprintf("Error al guardar %s: %v", msg.section.Title(), msg.err)
	case !msg.result.OK():
		var names []string
		for _, kind := range msg.result.FailedKinds() {
			names = append(names, string(kind))
		}
		a.statusMsg = fmt.Sprintf("Fallo al guardar %s: %s (reintentar con ctrl+s)", msg.section.Title(), strings.Join(names, ", "))
	default:
		a.statusMsg = fmt.Sprintf("%s guardada", msg.section.Title())
		for _, attachment := range msg.result.Attachments {
			if attachment.Err != nil {
				a.statusMsg += fmt.Sprintf(" · imagen %s falló: %v", attachment.Slot, attachment.Err)
			}
		}
		if a.progress.AllComplete() {
			a.statusMsg = "Expediente completo"
		}
	}
	return a, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
)

// View renders the current screen.
func (a *App) View() string {
	header := headerStyle.Render("◆ EXPEDIENTE")
	var content string
	switch a.state {
	case stateDraftPrompt:
		content = a.renderDraftPrompt()
	case stateMenu:
		content = a.sectionMenu.View() + hintStyle.Render("\nEnter → abrir sección    q → salir")
	case stateForm:
		content = a.renderForm()
	case stateAttachSlot:
		content = a.slotMenu.View() + hintStyle.Render("\nEnter → elegir    Esc → volver")
	case stateAttachPath:
		content = a.pathInput.View() + hintStyle.Render("\nEnter → adjuntar    Esc → cancelar")
	}
	footer := footerStyle.Render(a.footerText())
	return strings.Join([]string{header, boxStyle.Render(content), footer}, "\n")
}

func (a *App) footerText() string {
	if saved := a.session.LastAutosave(); !saved.IsZero() {
		stamp := fmt.Sprintf("Autoguardado %s", saved.Format("15:04:05"))
		if a.statusMsg == "" {
			return stamp
		}
		return a.statusMsg + "    " + stamp
	}
	return a.statusMsg
}

func (a *App) renderDraftPrompt() string {
	title := "¿Retomar el borrador guardado?"
	if a.offer != nil && !a.offer.Key.IsNew() {
		title = "¿Restaurar cambios sin guardar?"
	}
	detail := ""
	if a.offer != nil && !a.offer.Draft.SavedAt.IsZero() {
		detail = fmt.Sprintf("Guardado: %s", a.offer.Draft.SavedAt.Format("2006-01-02 15:04:05"))
	}
	lines := []string{subFormTitleStyle.Render(title)}
	if detail != "" {
		lines = append(lines, detail)
	}
	lines = append(lines, hintStyle.Render("s/Enter → restaurar    n/Esc → descartar"))
	return strings.Join(lines, "\n")
}

func (a *App) renderForm() string {
	var blocks []string
	blocks = append(blocks, subFormTitleStyle.Render(a.current.Title()))
	for _, form := range a.forms[a.current] {
		blocks = append(blocks, form.View())
	}
	hint := "Tab → siguiente campo    ctrl+s → guardar sección    Esc → secciones"
	if len(expedient.SlotsFor(a.current)) > 0 {
		hint += "    ctrl+a → adjuntar imagen"
	}
	blocks = append(blocks, hintStyle.Render(hint))
	return strings.Join(blocks, "\n\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
