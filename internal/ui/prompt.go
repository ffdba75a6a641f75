package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type promptKind int

const (
	promptRename promptKind = iota + 1
	promptMkdir
	promptChmod
	promptDownload
	promptUpload
	promptRun
	promptFilter
	promptConfirmDelete
	promptHostKey
)

// prompt is the one-line question shown above the status bar. Text prompts
// read a value; yes/no prompts only take y or n.
type prompt struct {
	kind     promptKind
	question string
	target   string // what a yes/no prompt is about
	yesNo    bool
	input    textinput.Model
}

// ask opens a text prompt prefilled with value.
func (m *Model) ask(kind promptKind, question, value string) {
	in := textinput.New()
	in.Prompt = question
	in.CharLimit = 4096
	in.Width = max(m.width-len(question)-2, 20)
	in.SetValue(value)
	in.CursorEnd()
	in.Focus()
	m.prompt = &prompt{kind: kind, question: question, input: in}
}

// confirm opens a yes/no prompt about target.
func (m *Model) confirm(kind promptKind, question, target string) {
	m.prompt = &prompt{kind: kind, question: question, target: target, yesNo: true}
}

func (m *Model) updatePrompt(msg tea.KeyMsg) tea.Cmd {
	p := m.prompt
	if key.Matches(msg, m.keys.Escape) {
		m.prompt = nil
		m.status.SetContext("Cancelled")
		return nil
	}
	if p.yesNo {
		if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
			return nil
		}
		switch msg.Runes[0] {
		case 'y', 'Y':
			m.prompt = nil
			return m.answer(p)
		case 'n', 'N':
			m.prompt = nil
			m.status.SetContext("Cancelled")
		}
		return nil
	}
	if key.Matches(msg, m.keys.Select) {
		m.prompt = nil
		return m.submitPrompt(p, p.input.Value())
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

func (p *prompt) View() string {
	if p.yesNo {
		return " " + keyStyle.Render(p.question)
	}
	return " " + p.input.View()
}
