package protocol

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type fakeConn struct {
	invoke func(ctx context.Context, method string, args interface{}, reply interface{}, opts ...grpc.CallOption) error
}

func (f *fakeConn) Invoke(ctx context.Context, method string, args interface{}, reply interface{}, opts ...grpc.CallOption) error {
	if f.invoke != nil {
		return f.invoke(ctx, method, args, reply, opts...)
	}
	return nil
}

func (f *fakeConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not implemented")
}

func TestControlClientRoutesMethods(t *testing.T) {
	var methods []string
	client := NewControlClient(&fakeConn{
		invoke: func(ctx context.Context, method string, args interface{}, reply interface{}, opts ...grpc.CallOption) error {
			methods = append(methods, method)
			switch out := reply.(type) {
			case *wrapperspb.StringValue:
				out.Value = Version
			case *structpb.Struct:
				in := args.(*structpb.Struct)
				cmd, _, err := ParseRequest(in)
				require.NoError(t, err)
				out.Fields = map[string]*structpb.Value{"echo": structpb.NewStringValue(cmd)}
			default:
				t.Fatalf("unexpected reply type %T", reply)
			}
			return nil
		},
	})

	pong, err := client.Ping(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, Version, pong.GetValue())

	req, err := NewRequest("status", nil)
	require.NoError(t, err)
	resp, err := client.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "status", resp.AsMap()["echo"])
	assert.Equal(t, []string{PingFullMethod, ExecuteFullMethod}, methods)
}

func TestControlClientPropagatesErrors(t *testing.T) {
	client := NewControlClient(&fakeConn{
		invoke: func(context.Context, string, interface{}, interface{}, ...grpc.CallOption) error {
			return status.Error(codes.Unavailable, "gone")
		},
	})
	_, err := client.Ping(context.Background(), &emptypb.Empty{})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestRequestEncoding(t *testing.T) {
	req, err := NewRequest("start", map[string]any{"addr": "127.0.0.1:0"})
	require.NoError(t, err)

	cmd, args, err := ParseRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "start", cmd)
	assert.Equal(t, "127.0.0.1:0", StringArg(args, "addr"))
	assert.Empty(t, StringArg(args, "missing"))

	_, err = NewRequest("", nil)
	assert.Error(t, err)
	_, _, err = ParseRequest(&structpb.Struct{})
	assert.EqualError(t, err, "request has no command")
	_, _, err = ParseRequest(nil)
	assert.EqualError(t, err, "empty request")
}

type echoServer struct{}

func (echoServer) Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(Version), nil
}

func (echoServer) Execute(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	cmd, _, err := ParseRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return structpb.NewStruct(map[string]any{"command": cmd})
}

func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "actl")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestDialOverUnixSocket(t *testing.T) {
	path := filepath.Join(shortTempDir(t), "c.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	srv := grpc.NewServer()
	RegisterControlServer(srv, echoServer{})
	go srv.Serve(ln)
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, conn, err := Dial(ctx, path)
	require.NoError(t, err)
	defer conn.Close()

	pong, err := client.Ping(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, Version, pong.GetValue())

	req, err := NewRequest("toggle", nil)
	require.NoError(t, err)
	resp, err := client.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "toggle", resp.AsMap()["command"])

	_, err = client.Execute(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDialMissingSocketTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, _, err := Dial(ctx, filepath.Join(shortTempDir(t), "missing.sock"))
	assert.Error(t, err)
}

func TestSocketTarget(t *testing.T) {
	assert.Equal(t, "unix:///run/x.sock", socketTarget("/run/x.sock"))
	assert.Equal(t, "unix://rel.sock", socketTarget("rel.sock"))
}
