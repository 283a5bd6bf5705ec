package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrExit is returned when the user chooses to exit the menu
var ErrExit = errors.New("exit")

// MenuAction runs one menu entry
type MenuAction func(c context.Context, ctx *SetupContext) error

type menuEntry struct {
	key    string
	label  string
	action MenuAction
}

// Menu provides an interactive menu interface
type Menu struct {
	ctx     *SetupContext
	entries []menuEntry
}

// NewMenu creates the numbered menu over the standard operations
func NewMenu(ctx *SetupContext) *Menu {
	return &Menu{
		ctx: ctx,
		entries: []menuEntry{
			{"1", "Deploy the browser", RunDeploy},
			{"2", "Remove the browser", func(c context.Context, ctx *SetupContext) error {
				return RunRemove(c, ctx, false)
			}},
			{"3", "Show status and recent logs", func(c context.Context, ctx *SetupContext) error {
				return RunStatus(c, ctx, DefaultLogLines)
			}},
			{"4", "Exit", func(context.Context, *SetupContext) error {
				return ErrExit
			}},
		},
	}
}

func (m *Menu) displayMenu() {
	m.ctx.UI.Header("Remote Browser Setup")
	m.ctx.UI.Info("Runs a Chromium browser in a container, reachable from any web browser.")
	m.ctx.UI.Print("")
	for _, entry := range m.entries {
		m.ctx.UI.MenuOption(entry.key, entry.label)
	}
	m.ctx.UI.Print("")
}

// Show displays the menu, reads one choice and runs it. Exit returns nil;
// an unknown choice is an error.
func (m *Menu) Show(c context.Context) error {
	m.displayMenu()

	choice, err := m.ctx.Prompter.PromptInput("Enter your choice", "")
	if err != nil {
		return err
	}

	if err := m.handleChoice(c, strings.TrimSpace(choice)); err != nil {
		if errors.Is(err, ErrExit) {
			return nil
		}
		return err
	}
	return nil
}

func (m *Menu) handleChoice(c context.Context, choice string) error {
	for _, entry := range m.entries {
		if entry.key == choice {
			return entry.action(c, m.ctx)
		}
	}
	return fmt.Errorf("invalid choice: %q (expected 1-%d)", choice, len(m.entries))
}
