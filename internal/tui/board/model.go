// Package board renders the pipeline board as a live terminal view.
package board

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/usecase"
)

// defaultRefresh is the board reload interval when none is configured.
const defaultRefresh = 10 * time.Second

type boardLoadedMsg struct {
	board *domain.Board
}

type errMsg struct {
	err error
}

type tickMsg struct{}

// Model is the bubbletea model for the live board view.
type Model struct {
	// Dependencies (pointers first for alignment)
	container *app.Container
	board     *domain.Board
	err       error

	// Components (structs with pointers)
	keys   KeyMap
	styles Styles
	help   help.Model

	// Numeric state (smaller types last)
	interval time.Duration
	width    int
	height   int
	loading  bool
}

// New creates a board model that reloads every interval.
func New(c *app.Container, interval time.Duration) *Model {
	if interval <= 0 {
		interval = defaultRefresh
	}
	return &Model{
		container: c,
		keys:      DefaultKeyMap(),
		styles:    DefaultStyles(),
		help:      help.New(),
		interval:  interval,
		loading:   true,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard(), m.tick())
}

// loadBoard returns a command that takes a fresh board snapshot.
func (m *Model) loadBoard() tea.Cmd {
	return func() tea.Msg {
		out, err := m.container.ShowStatusUseCase().Execute(context.Background(), usecase.ShowStatusInput{})
		if err != nil {
			return errMsg{err: err}
		}
		return boardLoadedMsg{board: out.Board}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}
