package board

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, m.loadBoard()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case boardLoadedMsg:
		m.board = msg.board
		m.err = nil
		m.loading = false
		return m, nil

	case errMsg:
		// Keep the last good snapshot on screen; the error renders above it.
		m.err = msg.err
		m.loading = false
		return m, nil

	case tickMsg:
		m.loading = true
		return m, tea.Batch(m.loadBoard(), m.tick())
	}

	return m, nil
}
