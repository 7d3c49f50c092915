package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"agentctl/internal/app"
	"agentctl/internal/attach"
	"agentctl/internal/command"
	"agentctl/internal/selector"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type stubController struct {
	listFunc func(ctx context.Context) ([]app.Process, error)
	execFunc func(ctx context.Context, params app.ExecParams) (app.ExecResult, error)
}

func (s *stubController) List(ctx context.Context) ([]app.Process, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx)
	}
	panic("List not implemented")
}

func (s *stubController) Exec(ctx context.Context, params app.ExecParams) (app.ExecResult, error) {
	if s.execFunc != nil {
		return s.execFunc(ctx, params)
	}
	panic("Exec not implemented")
}

func withController(t *testing.T, stub controllerAPI) {
	t.Helper()
	origFactory := controllerFactory
	controllerFactory = func() (controllerAPI, error) {
		return stub, nil
	}
	t.Cleanup(func() {
		controllerFactory = origFactory
	})
}

func withOutput(t *testing.T, cmd *cobra.Command, format string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	origOut := cmd.OutOrStdout()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(context.Background())

	origFormat := outputFormat
	outputFormat = format
	t.Cleanup(func() {
		cmd.SetOut(origOut)
		outputFormat = origFormat
	})
	return buf
}

func twoProcs(context.Context) ([]app.Process, error) {
	return []app.Process{{ID: "101", Display: "MyApp"}, {ID: "202", Display: "Other"}}, nil
}

func TestListText(t *testing.T) {
	withController(t, &stubController{listFunc: twoProcs})
	buf := withOutput(t, cmdList, "text")

	if err := cmdList.RunE(cmdList, nil); err != nil {
		t.Fatalf("RunE error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "PID") || !strings.Contains(lines[1], "MyApp") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestListEmpty(t *testing.T) {
	withController(t, &stubController{listFunc: func(context.Context) ([]app.Process, error) { return nil, nil }})
	buf := withOutput(t, cmdList, "text")

	if err := cmdList.RunE(cmdList, nil); err != nil {
		t.Fatalf("RunE error: %v", err)
	}
	if got := buf.String(); got != "No attachable processes found\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestListJSON(t *testing.T) {
	withController(t, &stubController{listFunc: twoProcs})
	buf := withOutput(t, cmdList, "json")

	if err := cmdList.RunE(cmdList, nil); err != nil {
		t.Fatalf("RunE error: %v", err)
	}
	var procs []app.Process
	if err := json.Unmarshal(buf.Bytes(), &procs); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(procs) != 2 || procs[1].ID != "202" {
		t.Fatalf("unexpected procs %+v", procs)
	}
}

func TestListYAML(t *testing.T) {
	withController(t, &stubController{listFunc: twoProcs})
	buf := withOutput(t, cmdList, "yaml")

	if err := cmdList.RunE(cmdList, nil); err != nil {
		t.Fatalf("RunE error: %v", err)
	}
	var procs []app.Process
	if err := yaml.Unmarshal(buf.Bytes(), &procs); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(procs) != 2 || procs[0].Display != "MyApp" {
		t.Fatalf("unexpected procs %+v", procs)
	}
}

func TestListUnknownFormat(t *testing.T) {
	withController(t, &stubController{listFunc: twoProcs})
	withOutput(t, cmdList, "xml")

	err := cmdList.RunE(cmdList, nil)
	if err == nil || !strings.Contains(err.Error(), `unknown output format "xml"`) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestStartPassesSelectorAndAddr(t *testing.T) {
	var got app.ExecParams
	withController(t, &stubController{
		execFunc: func(_ context.Context, params app.ExecParams) (app.ExecResult, error) {
			got = params
			return app.ExecResult{Command: params.Command, Target: "101", Output: map[string]any{
				"running": true, "changed": true, "url": "http://127.0.0.1:9000/agentctl/",
			}}, nil
		},
	})
	buf := withOutput(t, cmdStart, "text")
	origAddr := agentAddr
	agentAddr = "127.0.0.1:9000"
	t.Cleanup(func() { agentAddr = origAddr })

	if err := cmdStart.RunE(cmdStart, []string{"MyApp"}); err != nil {
		t.Fatalf("RunE error: %v", err)
	}
	if got.Selector != "MyApp" || got.Command != command.Start || got.Args["addr"] != "127.0.0.1:9000" {
		t.Fatalf("unexpected params %+v", got)
	}
	if out := buf.String(); out != "Process 101: agent started at http://127.0.0.1:9000/agentctl/\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatusDoesNotSendAddr(t *testing.T) {
	withController(t, &stubController{
		execFunc: func(_ context.Context, params app.ExecParams) (app.ExecResult, error) {
			if params.Args != nil {
				t.Fatalf("unexpected args %v", params.Args)
			}
			return app.ExecResult{Command: params.Command, Target: "101", Output: map[string]any{"running": false}}, nil
		},
	})
	buf := withOutput(t, cmdStatus, "text")
	origAddr := agentAddr
	agentAddr = "127.0.0.1:9000"
	t.Cleanup(func() { agentAddr = origAddr })

	if err := cmdStatus.RunE(cmdStatus, []string{"101"}); err != nil {
		t.Fatalf("RunE error: %v", err)
	}
	if out := buf.String(); out != "Process 101: agent not running\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStopError(t *testing.T) {
	expected := &selector.NoSuchProcessError{Selector: "nope"}
	withController(t, &stubController{
		execFunc: func(context.Context, app.ExecParams) (app.ExecResult, error) {
			return app.ExecResult{}, expected
		},
	})
	withOutput(t, cmdStop, "text")

	err := cmdStop.RunE(cmdStop, []string{"nope"})
	if !errors.Is(err, selector.ErrNoSuchProcess) {
		t.Fatalf("expected no-such-process error, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	withController(t, &stubController{
		execFunc: func(_ context.Context, params app.ExecParams) (app.ExecResult, error) {
			if params.Command != command.Version || params.Selector != "" {
				t.Fatalf("unexpected params %+v", params)
			}
			return app.ExecResult{Command: command.Version, Output: map[string]any{"version": "1.2.3 (abc)"}}, nil
		},
	})
	buf := withOutput(t, cmdVersion, "text")

	if err := cmdVersion.RunE(cmdVersion, nil); err != nil {
		t.Fatalf("RunE error: %v", err)
	}
	if got := buf.String(); got != "agentctl 1.2.3 (abc)\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestReportExitCodes(t *testing.T) {
	transient := &attach.TransientError{
		Target: "101",
		Cause:  attach.NewCause(attach.KindAttachNotSupported, nil, "Unable to open socket file /tmp/101.sock"),
	}

	var buf bytes.Buffer
	if code := report(&buf, nil); code != 0 || buf.Len() != 0 {
		t.Fatalf("nil error: code=%d output=%q", code, buf.String())
	}

	buf.Reset()
	if code := report(&buf, transient); code != exitTempFail {
		t.Fatalf("expected exit %d for transient error, got %d", exitTempFail, code)
	}
	if !strings.HasPrefix(buf.String(), "Warning: ") {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	if code := report(&buf, &command.UnknownCommandError{Name: "x", Known: []string{"list"}}); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(buf.String(), "agentctl --help") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestAddrFlagDefaultsToTargetAddress(t *testing.T) {
	for _, c := range []*cobra.Command{cmdStart, cmdToggle} {
		f := c.Flags().Lookup("addr")
		if f == nil {
			t.Fatalf("%s has no --addr flag", c.Name())
		}
		if f.DefValue != "" || !strings.Contains(f.Usage, "target agent") {
			t.Fatalf("%s --addr: default %q usage %q", c.Name(), f.DefValue, f.Usage)
		}
	}
	for _, c := range []*cobra.Command{cmdStop, cmdStatus} {
		if c.Flags().Lookup("addr") != nil {
			t.Fatalf("%s must not take --addr", c.Name())
		}
	}
}
