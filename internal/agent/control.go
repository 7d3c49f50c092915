package agent

import (
	"context"

	"agentctl/internal/command"
	"agentctl/internal/protocol"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// controlService implements protocol.ControlServer on top of an Agent.
type controlService struct {
	agent *Agent
}

func (s *controlService) Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(protocol.Version), nil
}

func (s *controlService) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, args, err := protocol.ParseRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	a := s.agent
	a.logger.Debug("executing command", "command", name)

	var out map[string]any
	switch name {
	case command.Start:
		out, err = s.start(protocol.StringArg(args, "addr"))
	case command.Stop:
		out, err = s.stop()
	case command.Status:
		st := a.ManagementStatus()
		out = map[string]any{"running": st.Running, "url": st.URL}
	case command.Toggle:
		if a.ManagementStatus().Running {
			out, err = s.stop()
		} else {
			out, err = s.start(protocol.StringArg(args, "addr"))
		}
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown agent command %q", name)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%s: %v", name, err)
	}

	out["pid"] = a.pid
	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s result: %v", name, err)
	}
	return resp, nil
}

func (s *controlService) start(addr string) (map[string]any, error) {
	url, started, err := s.agent.StartManagement(addr)
	if err != nil {
		return nil, err
	}
	return map[string]any{"running": true, "url": url, "changed": started}, nil
}

func (s *controlService) stop() (map[string]any, error) {
	stopped, err := s.agent.StopManagement()
	if err != nil {
		return nil, err
	}
	return map[string]any{"running": false, "url": "", "changed": stopped}, nil
}
