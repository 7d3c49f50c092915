package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// NewRequest encodes a command and its arguments.
func NewRequest(command string, args map[string]any) (*structpb.Struct, error) {
	if command == "" {
		return nil, errors.New("command must not be empty")
	}
	fields := map[string]any{requestCommandField: command}
	if len(args) > 0 {
		fields[requestArgsField] = args
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", command, err)
	}
	return req, nil
}

// ParseRequest is the inverse of NewRequest.
func ParseRequest(req *structpb.Struct) (string, map[string]any, error) {
	if req == nil {
		return "", nil, errors.New("empty request")
	}
	fields := req.GetFields()
	command := fields[requestCommandField].GetStringValue()
	if command == "" {
		return "", nil, errors.New("request has no command")
	}
	var args map[string]any
	if a := fields[requestArgsField].GetStructValue(); a != nil {
		args = a.AsMap()
	}
	return command, args, nil
}

// StringArg returns args[key] when it is a non-empty string.
func StringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
