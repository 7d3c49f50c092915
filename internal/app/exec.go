package app

import (
	"context"
	"fmt"

	"agentctl/internal/attach"
	"agentctl/internal/command"
	"agentctl/internal/handler"
	"agentctl/internal/version"
)

// Exec resolves params.Selector, attaches, runs the command and detaches.
// Commands that need no target are answered locally.
func (a *App) Exec(ctx context.Context, params ExecParams) (ExecResult, error) {
	res := ExecResult{Command: params.Command}
	req := handler.Request{Selector: params.Selector, Command: params.Command}

	err := a.handler.Run(ctx, req, func(ctx context.Context, hd *attach.Handle) error {
		if hd == nil {
			out, err := a.local(ctx, params.Command)
			res.Output = out
			return err
		}
		res.Target = hd.Target()
		a.logger.Debug("executing command", "command", params.Command, "target", hd.Target())
		out, err := hd.Execute(ctx, params.Command, params.Args)
		if err != nil {
			return fmt.Errorf("%s on process %s: %w", params.Command, hd.Target(), err)
		}
		res.Output = out
		return nil
	})
	if err != nil {
		return ExecResult{Command: params.Command}, err
	}
	return res, nil
}

func (a *App) local(ctx context.Context, name string) (map[string]any, error) {
	switch name {
	case command.List:
		procs, err := a.List(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, len(procs))
		for _, p := range procs {
			items = append(items, map[string]any{"id": p.ID, "display": p.Display})
		}
		return map[string]any{"processes": items}, nil
	case command.Version:
		return map[string]any{"version": version.String()}, nil
	default:
		return nil, fmt.Errorf("command %q has no local implementation", name)
	}
}
