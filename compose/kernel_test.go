package compose

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"unsafe"

	"cogentcore.org/core/gpu"

	"github.com/visiona/virtual-backdrop/media"
)

// compositeReference is a CPU implementation of the selection math in
// composite.wgsl, used to validate the kernel's per-pixel behavior
// without a GPU.
func compositeReference(frame *media.Frame, mask *media.Mask, bg *Background, outW, outH, person int) []byte {
	out := make([]byte, outW*outH*4)

	bgTexel := func(x, y int) [4]float64 {
		if x < 0 {
			x = 0
		}
		if x > bg.Width-1 {
			x = bg.Width - 1
		}
		if y < 0 {
			y = 0
		}
		if y > bg.Height-1 {
			y = bg.Height - 1
		}
		off := (y*bg.Width + x) * 4
		return [4]float64{
			float64(bg.Pix[off]) / 255,
			float64(bg.Pix[off+1]) / 255,
			float64(bg.Pix[off+2]) / 255,
			float64(bg.Pix[off+3]) / 255,
		}
	}

	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			u := (float64(ox) + 0.5) / float64(outW)
			v := (float64(oy) + 0.5) / float64(outH)

			mx := int(u * float64(mask.Width))
			if mx > mask.Width-1 {
				mx = mask.Width - 1
			}
			my := int(v * float64(mask.Height))
			if my > mask.Height-1 {
				my = mask.Height - 1
			}

			dst := (oy*outW + ox) * 4
			if mask.Classes[my*mask.Width+mx] == int32(person) {
				fx := int(u * float64(frame.Width))
				if fx > frame.Width-1 {
					fx = frame.Width - 1
				}
				fy := int(v * float64(frame.Height))
				if fy > frame.Height-1 {
					fy = frame.Height - 1
				}
				src := (fy*frame.Width + fx) * 4
				copy(out[dst:dst+4], frame.Pix[src:src+4])
			} else {
				bx := u*float64(bg.Width) - 0.5
				by := v*float64(bg.Height) - 0.5
				x0 := int(math.Floor(bx))
				y0 := int(math.Floor(by))
				tx := bx - math.Floor(bx)
				ty := by - math.Floor(by)

				p00 := bgTexel(x0, y0)
				p10 := bgTexel(x0+1, y0)
				p01 := bgTexel(x0, y0+1)
				p11 := bgTexel(x0+1, y0+1)
				for c := 0; c < 4; c++ {
					top := p00[c] + (p10[c]-p00[c])*tx
					bot := p01[c] + (p11[c]-p01[c])*tx
					out[dst+c] = byte(math.Round((top + (bot-top)*ty) * 255))
				}
			}
		}
	}
	return out
}

func testFrame(w, h int) *media.Frame {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = byte(i)
		pix[i+1] = byte(i >> 8)
		pix[i+2] = 200
		pix[i+3] = 255
	}
	return &media.Frame{Pix: pix, Width: w, Height: h}
}

func uniformMask(w, h int, class int32) *media.Mask {
	classes := make([]int32, w*h)
	for i := range classes {
		classes[i] = class
	}
	return &media.Mask{Classes: classes, Width: w, Height: h}
}

func solidBackground(w, h int, r, g, b byte) *Background {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = r
		pix[i+1] = g
		pix[i+2] = b
		pix[i+3] = 255
	}
	return &Background{Pix: pix, Width: w, Height: h, Generation: 1}
}

// TestCompositeAllPerson verifies that a mask classifying every cell as
// person reproduces the camera frame exactly when frame and output
// resolutions match: every output pixel is the exact camera pixel.
func TestCompositeAllPerson(t *testing.T) {
	const w, h = 32, 24
	frame := testFrame(w, h)
	mask := uniformMask(13, 13, int32(DefaultPersonClass))
	bg := solidBackground(w, h, 0, 0, 255)

	out := compositeReference(frame, mask, bg, w, h, DefaultPersonClass)

	for i := range out {
		if out[i] != frame.Pix[i] {
			t.Fatalf("pixel byte %d: got %d, want camera byte %d", i, out[i], frame.Pix[i])
		}
	}
}

// TestCompositeNoPerson verifies that a mask with no person cells
// reproduces the background exactly when background and output
// resolutions match: at matching resolutions the bilinear sample
// positions land on exact texel centers.
func TestCompositeNoPerson(t *testing.T) {
	const w, h = 32, 24
	frame := testFrame(w, h)
	mask := uniformMask(13, 13, 0) // class 0 = background
	bg := solidBackground(w, h, 40, 80, 120)

	out := compositeReference(frame, mask, bg, w, h, DefaultPersonClass)

	for i := range out {
		if out[i] != bg.Pix[i] {
			t.Fatalf("pixel byte %d: got %d, want background byte %d", i, out[i], bg.Pix[i])
		}
	}
}

// TestCompositeSplitMask verifies per-pixel selection with a mask whose
// left half is person and right half is background, at independent
// frame, mask, background and output resolutions.
func TestCompositeSplitMask(t *testing.T) {
	const outW, outH = 64, 48
	frame := testFrame(80, 60)
	bg := solidBackground(100, 100, 255, 0, 0)

	mask := uniformMask(16, 16, 0)
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			mask.Classes[y*16+x] = int32(DefaultPersonClass)
		}
	}

	out := compositeReference(frame, mask, bg, outW, outH, DefaultPersonClass)

	// A pixel well inside the left half must be a camera pixel.
	left := (10*outW + 5) * 4
	u := (5.0 + 0.5) / outW
	v := (10.0 + 0.5) / outH
	fx := int(u * 80)
	fy := int(v * 60)
	src := (fy*80 + fx) * 4
	for c := 0; c < 4; c++ {
		if out[left+c] != frame.Pix[src+c] {
			t.Errorf("left half byte %d: got %d, want camera %d", c, out[left+c], frame.Pix[src+c])
		}
	}

	// A pixel well inside the right half must be the background color.
	right := (10*outW + 60) * 4
	if out[right] != 255 || out[right+1] != 0 || out[right+2] != 0 {
		t.Errorf("right half pixel = (%d,%d,%d), want background (255,0,0)",
			out[right], out[right+1], out[right+2])
	}
}

// TestKernelParamsMirrorsShader verifies that the Go uniform struct and
// the Params struct declared in composite.wgsl stay in lockstep: same
// field order, 4-byte scalars at sequential offsets, 48 bytes total, and
// a workgroup size matching the dispatch constant. A mismatch here means
// the shader reads garbage dimensions.
func TestKernelParamsMirrorsShader(t *testing.T) {
	wantFields := []string{
		"frame_w", "frame_h",
		"mask_w", "mask_h",
		"bg_w", "bg_h",
		"out_w", "out_h",
		"person_class",
		"pad0", "pad1", "pad2",
	}

	start := strings.Index(compositeShader, "struct Params {")
	if start < 0 {
		t.Fatal("Params struct not found in shader source")
	}
	block := compositeShader[start:]
	block = block[:strings.Index(block, "}")]
	var shaderFields []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutSuffix(line, ": u32,"); ok {
			shaderFields = append(shaderFields, name)
		}
	}
	if !reflect.DeepEqual(shaderFields, wantFields) {
		t.Errorf("shader Params fields = %v, want %v", shaderFields, wantFields)
	}

	pt := reflect.TypeOf(kernelParams{})
	if pt.NumField() != len(wantFields) {
		t.Fatalf("kernelParams has %d fields, shader Params has %d", pt.NumField(), len(wantFields))
	}
	for i := 0; i < pt.NumField(); i++ {
		f := pt.Field(i)
		if f.Type.Kind() != reflect.Uint32 {
			t.Errorf("kernelParams.%s is %s, want uint32 to match %s: u32", f.Name, f.Type, wantFields[i])
		}
		if f.Offset != uintptr(4*i) {
			t.Errorf("kernelParams.%s offset = %d, want %d", f.Name, f.Offset, 4*i)
		}
	}
	if size := unsafe.Sizeof(kernelParams{}); size != 48 {
		t.Errorf("kernelParams size = %d, want 48", size)
	}

	wgAttr := fmt.Sprintf("@workgroup_size(%d, %d, 1)", workgroupDim, workgroupDim)
	if !strings.Contains(compositeShader, wgAttr) {
		t.Errorf("shader workgroup size does not match dispatch constant %d", workgroupDim)
	}
}

// TestCompositeOnGPU runs one full compositing pass on a real device and
// compares every output byte against the CPU reference.
func TestCompositeOnGPU(t *testing.T) {
	t.Skip("Need software GPU on CI")
	gp, _, err := gpu.NoDisplayGPU()
	if err != nil {
		t.Fatalf("no GPU available: %v", err)
	}
	defer gp.Release()

	cfg := KernelConfig{
		FrameWidth: 80, FrameHeight: 60,
		MaskWidth: 16, MaskHeight: 16,
		BackgroundWidth: 100, BackgroundHeight: 100,
		OutWidth: 64, OutHeight: 48,
		PersonClass: DefaultPersonClass,
	}
	k, err := NewKernel(gp, cfg)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	defer k.Release()

	frame := testFrame(cfg.FrameWidth, cfg.FrameHeight)
	bg := solidBackground(cfg.BackgroundWidth, cfg.BackgroundHeight, 255, 0, 0)
	mask := uniformMask(cfg.MaskWidth, cfg.MaskHeight, 0)
	for y := 0; y < cfg.MaskHeight; y++ {
		for x := 0; x < cfg.MaskWidth/2; x++ {
			mask.Classes[y*cfg.MaskWidth+x] = int32(DefaultPersonClass)
		}
	}

	got, err := k.Composite(frame, mask, bg)
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	want := compositeReference(frame, mask, bg, cfg.OutWidth, cfg.OutHeight, cfg.PersonClass)
	if !bytes.Equal(got.Pix, want) {
		t.Error("GPU output differs from CPU reference")
	}
}

// TestKernelConfigValidate verifies fail-fast dimension validation.
func TestKernelConfigValidate(t *testing.T) {
	valid := KernelConfig{
		FrameWidth: 1280, FrameHeight: 720,
		MaskWidth: 513, MaskHeight: 513,
		BackgroundWidth: 1280, BackgroundHeight: 720,
		OutWidth: 1280, OutHeight: 720,
		PersonClass: DefaultPersonClass,
	}
	if err := valid.validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := valid
	bad.MaskWidth = 0
	if err := bad.validate(); err == nil {
		t.Error("zero mask width accepted")
	}

	bad = valid
	bad.PersonClass = -1
	if err := bad.validate(); err == nil {
		t.Error("negative person class accepted")
	}
}
