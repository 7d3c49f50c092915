package app

import (
	"context"
)

// List returns a fresh snapshot of attachable processes.
func (a *App) List(ctx context.Context) ([]Process, error) {
	descs, err := a.handler.ListProcesses(ctx)
	if err != nil {
		return nil, err
	}
	procs := make([]Process, 0, len(descs))
	for _, d := range descs {
		procs = append(procs, Process{ID: d.ID, Display: d.Display})
	}
	return procs, nil
}
