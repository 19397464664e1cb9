package renderpb

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc/metadata"
)

const renderHeaderKey = "renderHeader"

// RenderHeader identifies the render and the caller of an RPC.
type RenderHeader struct {
	RenderID        string `json:"renderID"`
	CoordinatorHost string `json:"coordinatorHost"`
}

// WithRenderHeader attaches the header to the outgoing metadata of the context.
func WithRenderHeader(ctx context.Context, h RenderHeader) (context.Context, error) {
	raw, err := json.MarshalToString(h)
	if err != nil {
		return nil, errors.Wrap(err, "marshal renderHeader")
	}
	return metadata.AppendToOutgoingContext(ctx, renderHeaderKey, raw), nil
}

// RenderHeaderFromContext reads the header from the incoming metadata.
func RenderHeaderFromContext(ctx context.Context) (*RenderHeader, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errors.New("no metadata")
	}
	entries := md.Get(renderHeaderKey)
	if len(entries) < 1 {
		return nil, errors.New("error parsing metadata: renderHeader is required")
	}
	header := new(RenderHeader)
	if err := json.UnmarshalFromString(entries[0], header); err != nil {
		return nil, errors.Wrap(err, "parse renderHeader")
	}
	return header, nil
}
