// internal/tui/form.go
//
// SubForm is the bubbles-backed editor for one sub-form. It doubles as the
// handle the registry consumes: the registry restores cached values through
// Apply and subscribes to edits through Watch.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/drvillela/expediente/internal/expedient"
)

// SubForm renders the fields of one sub-form kind as text inputs.
type SubForm struct {
	kind   expedient.Kind
	fields []expedient.FieldSpec
	inputs []textinput.Model

	watchers    map[int]func(expedient.Values)
	nextWatcher int
}

// NewSubForm builds an empty editor for a kind.
func NewSubForm(kind expedient.Kind) *SubForm {
	fields := expedient.Fields(kind)
	inputs := make([]textinput.Model, len(fields))
	for i, spec := range fields {
		input := textinput.New()
		input.Prompt = ""
		input.Placeholder = spec.Label
		input.CharLimit = 120
		inputs[i] = input
	}
	return &SubForm{
		kind:     kind,
		fields:   fields,
		inputs:   inputs,
		watchers: make(map[int]func(expedient.Values)),
	}
}

// Kind identifies which sub-form this editor is.
func (f *SubForm) Kind() expedient.Kind { return f.kind }

// Values snapshots the current input contents.
func (f *SubForm) Values() expedient.Values {
	values := make(expedient.Values, len(f.fields))
	for i, spec := range f.fields {
		values[spec.Key] = f.inputs[i].Value()
	}
	return values
}

// Apply overwrites the inputs from a snapshot. Restoration does not notify
// watchers; only live edits feed the change stream.
func (f *SubForm) Apply(values expedient.Values) {
	for i, spec := range f.fields {
		if value, ok := values[spec.Key]; ok {
			f.inputs[i].SetValue(value)
		}
	}
}

// Reset clears every input back to defaults.
func (f *SubForm) Reset() {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
	}
}

// Watch subscribes to value changes and returns a cancel function.
func (f *SubForm) Watch(fn func(expedient.Values)) func() {
	id := f.nextWatcher
	f.nextWatcher++
	f.watchers[id] = fn
	return func() { delete(f.watchers, id) }
}

// FieldCount returns the number of editable fields.
func (f *SubForm) FieldCount() int { return len(f.inputs) }

// Focus gives keyboard focus to one field and blurs the rest. An index of
// -1 blurs everything.
func (f *SubForm) Focus(index int) tea.Cmd {
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == index {
			cmd = f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return cmd
}

// Update forwards a message to the focused input and notifies watchers when
// the edit changed the sub-form's values.
func (f *SubForm) Update(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	changed := false
	for i := range f.inputs {
		if !f.inputs[i].Focused() {
			continue
		}
		before := f.inputs[i].Value()
		var cmd tea.Cmd
		f.inputs[i], cmd = f.inputs[i].Update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		if f.inputs[i].Value() != before {
			changed = true
		}
	}
	if changed {
		values := f.Values()
		for _, fn := range f.watchers {
			fn(values)
		}
	}
	return tea.Batch(cmds...)
}

var (
	subFormTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	fieldLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Width(30)
)

// View renders the sub-form with its field labels.
func (f *SubForm) View() string {
	var lines []string
	lines = append(lines, subFormTitleStyle.Render(titleForKind(f.kind)))
	for i, spec := range f.fields {
		label := fieldLabelStyle.Render(spec.Label)
		lines = append(lines, fmt.Sprintf("%s %s", label, f.inputs[i].View()))
	}
	return strings.Join(lines, "\n")
}

func titleForKind(kind expedient.Kind) string {
	parts := strings.Split(string(kind), "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
