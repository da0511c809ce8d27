// Package replay keeps the last few screen frames and encodes them as an
// animated GIF for attachment to a report.
package replay

import (
	"bytes"
	"context"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"sync"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/buffer"
	"go.uber.org/zap"
)

const (
	DefaultMaxFrames = 30
	DefaultInterval  = 500 * time.Millisecond
)

// FrameSource produces the current screen image. Platform bindings provide
// one; the Go side only stores and encodes.
type FrameSource interface {
	CaptureFrame() (image.Image, error)
}

type FrameSourceFunc func() (image.Image, error)

func (f FrameSourceFunc) CaptureFrame() (image.Image, error) {
	return f()
}

type frame struct {
	image *image.Paletted
	delay time.Duration
}

type Recorder struct {
	frames   *buffer.Ring[frame]
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRecorder(maxFrames int, interval time.Duration, logger *zap.Logger) *Recorder {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		frames:   buffer.NewRing[frame](maxFrames),
		interval: interval,
		logger:   logger,
	}
}

// AddFrame stores img, evicting the oldest frame when full.
func (r *Recorder) AddFrame(img image.Image) {
	if img == nil {
		return
	}
	r.frames.Add(frame{image: toPaletted(img), delay: r.interval})
}

func (r *Recorder) Frames() int {
	return r.frames.Size()
}

func (r *Recorder) Clear() {
	r.frames.Clear()
}

// Start captures a frame from src every interval until Stop or ctx ends.
// Starting a running recorder is a no-op.
func (r *Recorder) Start(ctx context.Context, src FrameSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(ctx, src, r.done)
}

func (r *Recorder) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (r *Recorder) loop(ctx context.Context, src FrameSource, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img, err := src.CaptureFrame()
			if err != nil {
				r.logger.Debug("frame capture failed", zap.Error(err))
				continue
			}
			r.AddFrame(img)
		}
	}
}

// Encode renders the stored frames as a looping GIF. It returns nil when no
// frame has been recorded.
func (r *Recorder) Encode() ([]byte, error) {
	frames := r.frames.Snapshot()
	if len(frames) == 0 {
		return nil, nil
	}

	anim := &gif.GIF{
		Image: make([]*image.Paletted, 0, len(frames)),
		Delay: make([]int, 0, len(frames)),
	}
	for _, f := range frames {
		anim.Image = append(anim.Image, f.image)
		anim.Delay = append(anim.Delay, int(f.delay/(10*time.Millisecond)))
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toPaletted(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok {
		return p
	}
	bounds := img.Bounds()
	p := image.NewPaletted(bounds, palette.Plan9)
	draw.FloydSteinberg.Draw(p, bounds, img, bounds.Min)
	return p
}
