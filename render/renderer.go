package render

import (
	_ "embed"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"unsafe"

	"cogentcore.org/core/gpu"
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/visiona/virtual-backdrop/media"
)

//go:embed shaders/quad.wgsl
var quadShader string

// quadUniform mirrors the Quad uniform struct in quad.wgsl.
type quadUniform struct {
	ScaleX, ScaleY float32
	pad0, pad1     float32
}

// Renderer draws the slot's latest frame to a surface. Draw must be
// called from the display refresh loop; it is not safe for concurrent
// use.
type Renderer struct {
	slot    *Slot
	surface *gpu.Surface

	sy *gpu.GraphicsSystem
	pl *gpu.GraphicsPipeline

	texCoordVal *gpu.Value
	uniformVal  *gpu.Value
	textureVal  *gpu.Value

	cache textureCache
	tf    viewTransform

	// upload writes an image into the GPU texture. Indirect so tests
	// can exercise the failure path without a device.
	upload func(img *image.RGBA) error

	framesDrawn  atomic.Uint64
	drawsSkipped atomic.Uint64
}

// NewRenderer builds the graphics system on the given surface, reading
// frames from slot. Fails fast on shader compilation errors.
func NewRenderer(gp *gpu.GPU, surface *gpu.Surface, slot *Slot) (*Renderer, error) {
	if slot == nil {
		return nil, fmt.Errorf("render: slot is required")
	}

	sy := gpu.NewGraphicsSystem(gp, "preview", surface)
	pl := sy.AddGraphicsPipeline("quad")
	pl.SetGraphicsDefaults()
	pl.SetCullMode(wgpu.CullModeNone)
	pl.SetTopology(gpu.TriangleStrip, false)
	pl.SetAlphaBlend(false)

	sh := pl.AddShader("quad")
	if err := sh.OpenCode(quadShader); err != nil {
		sy.Release()
		return nil, fmt.Errorf("render: shader compilation failed: %w", err)
	}
	pl.AddEntry(sh, gpu.VertexShader, "vs_main")
	pl.AddEntry(sh, gpu.FragmentShader, "fs_main")

	vgp := sy.Vars().AddVertexGroup()
	ugp := sy.Vars().AddGroup(gpu.Uniform, "Quad")
	tgp := sy.Vars().AddGroup(gpu.SampledTexture, "Texture")

	posv := vgp.Add("Pos", gpu.Float32Vector2, 4, gpu.VertexShader)
	uvv := vgp.Add("UV", gpu.Float32Vector2, 4, gpu.VertexShader)
	univ := ugp.AddStruct("Quad", int(unsafe.Sizeof(quadUniform{})), 1, gpu.VertexShader)
	texv := tgp.Add("TexSampler", gpu.TextureRGBA32, 1, gpu.FragmentShader)

	vgp.SetNValues(1)
	ugp.SetNValues(1)
	tgp.SetNValues(1)
	sy.Config()

	r := &Renderer{
		slot:        slot,
		surface:     surface,
		sy:          sy,
		pl:          pl,
		texCoordVal: uvv.Values.Values[0],
		uniformVal:  univ.Values.Values[0],
		textureVal:  texv.Values.Values[0],
	}
	r.upload = r.uploadToTexture

	// Quad positions never change; only UVs and the uniform do.
	if err := gpu.SetValueFrom(posv.Values.Values[0], quadPositions[:]); err != nil {
		sy.Release()
		return nil, fmt.Errorf("render: quad setup failed: %w", err)
	}

	slog.Info("render: renderer created",
		"surface", fmt.Sprintf("%dx%d", surface.Format.Size.X, surface.Format.Size.Y))
	return r, nil
}

// Draw renders the current slot contents once. An empty slot is a
// cheap no-op. A texture conversion failure flushes the cache and
// skips this draw only; the next frame recovers.
func (r *Renderer) Draw() {
	snap := r.slot.Snapshot()
	if snap.Frame == nil || !snap.Frame.Valid() {
		r.drawsSkipped.Add(1)
		return
	}
	frame := snap.Frame

	if !r.uploadIfNeeded(frame) {
		return
	}

	view := r.surface.Format.Size
	if r.tf.update(frame.Width, frame.Height, view.X, view.Y, snap.Mirrored, snap.Rotation) {
		if err := gpu.SetValueFrom(r.texCoordVal, r.tf.TexCoords[:]); err != nil {
			slog.Error("render: texcoord update failed", "error", err)
			return
		}
		uni := quadUniform{ScaleX: r.tf.ScaleX, ScaleY: r.tf.ScaleY}
		if err := gpu.SetValueFrom(r.uniformVal, []quadUniform{uni}); err != nil {
			slog.Error("render: uniform update failed", "error", err)
			return
		}
		slog.Debug("render: transform recomputed",
			"texture", fmt.Sprintf("%dx%d", frame.Width, frame.Height),
			"view", fmt.Sprintf("%dx%d", view.X, view.Y),
			"mirrored", snap.Mirrored,
			"rotation", snap.Rotation.String(),
		)
	}

	rp, err := r.sy.BeginRenderPass()
	if err != nil {
		slog.Error("render: begin render pass failed", "error", err)
		return
	}
	r.pl.BindPipeline(rp)
	r.pl.BindVertex(rp)
	rp.Draw(4, 1, 0, 0)
	rp.End()
	r.sy.EndRenderPass(rp)

	r.framesDrawn.Add(1)
}

// uploadIfNeeded pushes the frame's pixels to the texture when the
// cache misses. On failure the cache is flushed so the next draw
// retries, and false is returned to skip this draw.
func (r *Renderer) uploadIfNeeded(frame *media.Frame) bool {
	if !r.cache.needsUpload(frame) {
		return true
	}
	img := &image.RGBA{
		Pix:    frame.Pix,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	if err := r.upload(img); err != nil {
		slog.Error("render: texture upload failed, skipping draw",
			"error", err, "trace_id", frame.TraceID)
		r.cache.flush()
		r.drawsSkipped.Add(1)
		return false
	}
	return true
}

// uploadToTexture copies the image into the sampled texture and
// configures its sampler, surfacing any device error.
func (r *Renderer) uploadToTexture(img *image.RGBA) error {
	tex := r.textureVal.Texture
	if err := tex.SetFromGoImage(img, 0); err != nil {
		return err
	}
	return tex.Sampler.Config(r.sy.Device())
}

// FramesDrawn returns the number of completed draws.
func (r *Renderer) FramesDrawn() uint64 {
	return r.framesDrawn.Load()
}

// SetSize propagates a window resize to the surface; the next draw
// recomputes the transform against the new bounds.
func (r *Renderer) SetSize(size image.Point) {
	r.surface.SetSize(size)
}

// Release frees the graphics system. The surface is owned by the caller.
func (r *Renderer) Release() {
	if r.sy != nil {
		r.sy.Release()
		r.sy = nil
	}
	slog.Info("render: renderer released",
		"frames_drawn", r.framesDrawn.Load(),
		"draws_skipped", r.drawsSkipped.Load(),
	)
}
