package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// componentFields is the raw text of a component entered on the command line
// or in the form.
type componentFields struct {
	Name            string
	Category        string
	Description     string
	Severity        string
	Exposure        string
	Controllability string
}

func (f componentFields) record() (schema.ComponentRecord, error) {
	rating, err := schema.ParseRating(f.Severity, f.Exposure, f.Controllability)
	if err != nil {
		return schema.ComponentRecord{}, err
	}
	rec := schema.ComponentRecord{
		Name:        strings.TrimSpace(f.Name),
		Category:    strings.TrimSpace(f.Category),
		Description: strings.TrimSpace(f.Description),
		Rating:      rating,
		Source:      schema.SourceUser,
	}
	return rec, nil
}

type formField struct {
	prompt   string
	hint     string
	validate func(string) error
	assign   func(*componentFields, string)
}

var formFields = []formField{
	{
		prompt: "Name", hint: "Electric Parking Brake",
		validate: func(v string) error {
			n := len(strings.TrimSpace(v))
			if n < schema.ComponentNameMin || n > schema.ComponentNameMax {
				return fmt.Errorf("name must be %d-%d characters", schema.ComponentNameMin, schema.ComponentNameMax)
			}
			return nil
		},
		assign: func(f *componentFields, v string) { f.Name = v },
	},
	{
		prompt: "Category", hint: schema.DefaultCategory,
		assign: func(f *componentFields, v string) { f.Category = v },
	},
	{
		prompt: "Description", hint: "optional",
		assign: func(f *componentFields, v string) { f.Description = v },
	},
	{
		prompt: "Severity", hint: "S0-S3",
		validate: func(v string) error { _, err := schema.ParseSeverity(v); return err },
		assign:   func(f *componentFields, v string) { f.Severity = v },
	},
	{
		prompt: "Exposure", hint: "E0-E4",
		validate: func(v string) error { _, err := schema.ParseExposure(v); return err },
		assign:   func(f *componentFields, v string) { f.Exposure = v },
	},
	{
		prompt: "Controllability", hint: "C0-C3",
		validate: func(v string) error { _, err := schema.ParseControllability(v); return err },
		assign:   func(f *componentFields, v string) { f.Controllability = v },
	},
}

// formModel asks for one field at a time and rejects invalid answers in place.
type formModel struct {
	fields []formField
	idx    int
	inputs []textinput.Model
	err    error
	done   bool
}

func newFormModel(fields []formField) formModel {
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Placeholder = f.hint
		ti.CharLimit = schema.ComponentDescriptionMax
		inputs[i] = ti
	}
	m := formModel{fields: fields, inputs: inputs}
	if len(inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

func (m formModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if v := m.fields[m.idx].validate; v != nil {
				if err := v(m.inputs[m.idx].Value()); err != nil {
					m.err = err
					return m, nil
				}
			}
			m.err = nil
			if m.idx < len(m.inputs)-1 {
				m.inputs[m.idx].Blur()
				m.idx++
				m.inputs[m.idx].Focus()
				return m, textinput.Blink
			}
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.inputs[m.idx], cmd = m.inputs[m.idx].Update(msg)
	return m, cmd
}

func (m formModel) View() string {
	if m.done || len(m.fields) == 0 {
		return ""
	}
	view := fmt.Sprintf("%s: %s\n", m.fields[m.idx].prompt, m.inputs[m.idx].View())
	if m.err != nil {
		view += fmt.Sprintf("  ⚠️  %v\n", m.err)
	}
	return view
}

func (m formModel) values() componentFields {
	var out componentFields
	for i, f := range m.fields {
		f.assign(&out, strings.TrimSpace(m.inputs[i].Value()))
	}
	return out
}

// promptComponent runs the form and returns the answers.
func promptComponent() (componentFields, error) {
	p := tea.NewProgram(newFormModel(formFields))
	result, err := p.Run()
	if err != nil {
		return componentFields{}, err
	}
	final, ok := result.(formModel)
	if !ok || !final.done {
		return componentFields{}, fmt.Errorf("cancelled")
	}
	return final.values(), nil
}
