package tui

import (
	"context"
	"fmt"

	"docassistant/controllers"
	"docassistant/models"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Run shows the chat screen until the user quits or ctx is done
func Run(ctx context.Context, ctrl *controllers.SessionController, logger *zap.Logger, opts ...tea.ProgramOption) error {
	ctrl.Start()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(ctx, ctrl, logger), opts...)

	// Send blocks until the update loop reads the message, and snapshots are
	// also published from inside Update, so delivery is asynchronous. The
	// model drops snapshots that arrive out of order.
	cancel := ctrl.Subscribe(func(s models.Snapshot) {
		go p.Send(snapshotMsg(s))
	})
	defer cancel()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}
