package renderpb

import (
	"github.com/ab180/mandelmr/fractal"
	"github.com/ab180/mandelmr/partitions"
	"github.com/jinzhu/copier"
	"github.com/segmentio/fasthash/fnv1a"
)

// Config is the wire form of fractal.Config.
type Config struct {
	MaxIter int     `json:"maxIter"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	RealMin float64 `json:"realMin"`
	RealMax float64 `json:"realMax"`
	ImagMin float64 `json:"imagMin"`
	ImagMax float64 `json:"imagMax"`
}

func ConfigFrom(c fractal.Config) (wire Config) {
	if err := copier.Copy(&wire, &c); err != nil {
		panic(err)
	}
	return
}

func (c Config) Fractal() (fc fractal.Config) {
	if err := copier.Copy(&fc, &c); err != nil {
		panic(err)
	}
	return
}

// AssignRequest delivers a row range of a render to a worker.
type AssignRequest struct {
	RenderID string `json:"renderID"`
	WorkerID int    `json:"workerID"`
	StartRow int    `json:"startRow"`
	RowCount int    `json:"rowCount"`
	Config   Config `json:"config"`
}

func NewAssignRequest(renderID string, a partitions.RowAssignment, c fractal.Config) *AssignRequest {
	return &AssignRequest{
		RenderID: renderID,
		WorkerID: a.WorkerID,
		StartRow: a.StartRow,
		RowCount: a.RowCount,
		Config:   ConfigFrom(c),
	}
}

func (r *AssignRequest) Assignment() partitions.RowAssignment {
	return partitions.RowAssignment{
		WorkerID: r.WorkerID,
		StartRow: r.StartRow,
		RowCount: r.RowCount,
	}
}

type AssignResponse struct {
	Host string `json:"host"`
}

type RenderRequest struct {
	RenderID string `json:"renderID"`
}

// FinishRequest releases a completed render on a worker.
type FinishRequest struct {
	RenderID string `json:"renderID"`
}

type Empty struct{}

// PixelResult is an escape count of a pixel. It carries its own coordinates,
// so results can be consumed in any order.
type PixelResult struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Count int `json:"count"`
}

// PixelBatch is a chunk of results sent on a Render stream.
type PixelBatch struct {
	WorkerID int           `json:"workerID"`
	Seq      uint64        `json:"seq"`
	Pixels   []PixelResult `json:"pixels"`
	Checksum uint64        `json:"checksum"`
}

// NewPixelBatch creates a sealed batch from the results.
func NewPixelBatch(workerID int, seq uint64, pixels []PixelResult) *PixelBatch {
	return &PixelBatch{
		WorkerID: workerID,
		Seq:      seq,
		Pixels:   pixels,
		Checksum: ChecksumOf(pixels),
	}
}

// Verify reports whether the checksum matches the pixels.
func (b *PixelBatch) Verify() bool {
	return b.Checksum == ChecksumOf(b.Pixels)
}

// ChecksumOf returns an FNV-1a hash over the coordinates and counts of the pixels.
func ChecksumOf(pixels []PixelResult) uint64 {
	h := fnv1a.Init64
	for _, p := range pixels {
		h = fnv1a.AddUint64(h, uint64(p.X))
		h = fnv1a.AddUint64(h, uint64(p.Y))
		h = fnv1a.AddUint64(h, uint64(p.Count))
	}
	return h
}
