package renderpb

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/ab180/mandelmr/fractal"
	"github.com/ab180/mandelmr/partitions"
	"github.com/segmentio/fasthash/fnv1a"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

func TestWorkerService(t *testing.T) {
	var assigned *AssignRequest
	var header *RenderHeader
	clientConn, s := newMockWorkerClientAndServer(t, &mockWorkerServer{
		assign: func(ctx context.Context, req *AssignRequest) (*AssignResponse, error) {
			assigned = req
			h, err := RenderHeaderFromContext(ctx)
			if err != nil {
				return nil, err
			}
			header = h
			return &AssignResponse{Host: "worker-1"}, nil
		},
		render: func(req *RenderRequest, stream Worker_RenderServer) error {
			for y := 0; y < 3; y++ {
				pixels := []PixelResult{{X: 0, Y: y, Count: y}, {X: 1, Y: y, Count: 256}}
				if err := stream.Send(NewPixelBatch(1, uint64(y), pixels)); err != nil {
					return err
				}
			}
			return nil
		},
	})
	defer s.Stop()
	defer clientConn.Close()

	c := NewWorkerClient(clientConn)
	ctx, err := WithRenderHeader(context.Background(), RenderHeader{RenderID: "R1", CoordinatorHost: "localhost"})
	require.NoError(t, err)

	t.Run("Assign", func(t *testing.T) {
		cfg := fractal.DefaultConfig()
		a := partitions.RowAssignment{WorkerID: 1, StartRow: 0, RowCount: 400}
		resp, err := c.Assign(ctx, NewAssignRequest("R1", a, cfg))
		require.NoError(t, err)
		require.Equal(t, "worker-1", resp.Host)

		require.Equal(t, a, assigned.Assignment())
		require.Equal(t, cfg, assigned.Config.Fractal())
		require.Equal(t, "R1", header.RenderID)
	})

	t.Run("Render", func(t *testing.T) {
		stream, err := c.Render(ctx, &RenderRequest{RenderID: "R1"})
		require.NoError(t, err)

		var batches []*PixelBatch
		for {
			b, err := stream.Recv()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			require.True(t, b.Verify())
			batches = append(batches, b)
		}
		require.Len(t, batches, 3)
		require.Equal(t, uint64(2), batches[2].Seq)
		require.Equal(t, PixelResult{X: 1, Y: 2, Count: 256}, batches[2].Pixels[1])
	})

	t.Run("Unimplemented methods", func(t *testing.T) {
		_, err := c.Finish(ctx, &FinishRequest{RenderID: "R1"})
		require.Equal(t, codes.Unimplemented, status.Code(err))
	})
}

func TestPixelBatch_Verify(t *testing.T) {
	b := NewPixelBatch(2, 0, []PixelResult{{X: 3, Y: 4, Count: 5}})
	require.True(t, b.Verify())

	b.Pixels[0].Count = 6
	require.False(t, b.Verify())

	swapped := NewPixelBatch(2, 0, []PixelResult{{X: 4, Y: 3, Count: 5}})
	require.NotEqual(t, ChecksumOf([]PixelResult{{X: 3, Y: 4, Count: 5}}), swapped.Checksum)
}

func TestChecksumOf(t *testing.T) {
	require.Equal(t, fnv1a.Init64, ChecksumOf(nil))

	h := fnv1a.Init64
	for _, v := range []uint64{0, 1, 10, 1, 1, 3} {
		h = fnv1a.AddUint64(h, v)
	}
	require.Equal(t, h, ChecksumOf([]PixelResult{{X: 0, Y: 1, Count: 10}, {X: 1, Y: 1, Count: 3}}))

	// order of pixels is part of the checksum
	require.NotEqual(t, h, ChecksumOf([]PixelResult{{X: 1, Y: 1, Count: 3}, {X: 0, Y: 1, Count: 10}}))
}

func newMockWorkerClientAndServer(t *testing.T, srv WorkerServer) (*grpc.ClientConn, *grpc.Server) {
	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)

	s := grpc.NewServer()
	RegisterWorkerServer(s, srv)
	go func() {
		_ = s.Serve(lis)
	}()

	clientConn, err := grpc.Dial(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	return clientConn, s
}

type mockWorkerServer struct {
	assign func(context.Context, *AssignRequest) (*AssignResponse, error)
	render func(*RenderRequest, Worker_RenderServer) error

	UnimplementedWorkerServer
}

func (m *mockWorkerServer) Assign(ctx context.Context, req *AssignRequest) (*AssignResponse, error) {
	return m.assign(ctx, req)
}

func (m *mockWorkerServer) Render(req *RenderRequest, stream Worker_RenderServer) error {
	return m.render(req, stream)
}
