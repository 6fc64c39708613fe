// Package visualization renders evaluation results for inspection: each
// frame pairs a colormapped scan slice with its predicted binary mask, and
// frames can be exported as a PNG sequence or an animated GIF.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"vesselseg/internal/models"
	"vesselseg/pkg/colormap"
)

// Mask rendering colors: background and foreground of the binary overlay.
var (
	maskBackground = color.RGBA{R: 0, G: 34, B: 78, A: 255}
	maskForeground = color.RGBA{R: 253, G: 231, B: 55, A: 255}
)

// Viewer renders side-by-side scan/mask slice pairs. The scan keeps its
// native resolution and the mask its transform resolution; both panels are
// scaled to a common output height.
type Viewer struct {
	scan   *models.Volume
	mask   *models.MaskVolume
	scheme string

	// panelHeight is the output height of each panel in pixels.
	panelHeight int
}

// NewViewer builds a viewer over a scan volume and the mask predicted for it.
// Scan and mask must have the same depth; their spatial sizes may differ.
func NewViewer(scan *models.Volume, mask *models.MaskVolume, scheme string, panelHeight int) (*Viewer, error) {
	if scan.Depth != mask.Depth {
		return nil, fmt.Errorf("%w: scan depth %d, mask depth %d",
			models.ErrShapeMismatch, scan.Depth, mask.Depth)
	}
	if !colormap.Registered(scheme) {
		return nil, fmt.Errorf("%w: %q", colormap.ErrUnknownScheme, scheme)
	}
	if panelHeight <= 0 {
		panelHeight = 256
	}
	return &Viewer{scan: scan, mask: mask, scheme: scheme, panelHeight: panelHeight}, nil
}

// RenderSlice renders the z-th scan/mask pair as one RGBA frame.
func (v *Viewer) RenderSlice(z int) (image.Image, error) {
	if z < 0 || z >= v.scan.Depth {
		return nil, fmt.Errorf("visualization: slice %d out of range [0,%d)", z, v.scan.Depth)
	}

	scanImg, err := v.renderScan(z)
	if err != nil {
		return nil, err
	}
	maskImg := v.renderMask(z)

	// Smooth interpolation for the intensity panel, nearest-neighbor for the
	// label panel so mask pixels stay crisp blocks.
	scanPanel := scalePanel(scanImg, v.panelHeight, xdraw.CatmullRom)
	maskPanel := scalePanel(maskImg, v.panelHeight, xdraw.NearestNeighbor)

	out := image.NewRGBA(image.Rect(0, 0, scanPanel.Bounds().Dx()+maskPanel.Bounds().Dx(), v.panelHeight))
	xdraw.Draw(out, scanPanel.Bounds(), scanPanel, image.Point{}, xdraw.Src)
	xdraw.Draw(out, maskPanel.Bounds().Add(image.Pt(scanPanel.Bounds().Dx(), 0)), maskPanel, image.Point{}, xdraw.Src)
	return out, nil
}

// renderScan colormaps one scan slice into an RGBA image at native size.
func (v *Viewer) renderScan(z int) (*image.RGBA, error) {
	rgb, err := colormap.Map(v.scan.Slice(z), v.scan.Height, v.scan.Width, v.scheme)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, v.scan.Width, v.scan.Height))
	for y := 0; y < v.scan.Height; y++ {
		for x := 0; x < v.scan.Width; x++ {
			i := (y*v.scan.Width + x) * 3
			img.SetRGBA(x, y, color.RGBA{
				R: clamp8(rgb[i+0]),
				G: clamp8(rgb[i+1]),
				B: clamp8(rgb[i+2]),
				A: 255,
			})
		}
	}
	return img, nil
}

// renderMask paints one label slice as a two-color image at native size.
func (v *Viewer) renderMask(z int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, v.mask.Width, v.mask.Height))
	for y := 0; y < v.mask.Height; y++ {
		for x := 0; x < v.mask.Width; x++ {
			c := maskBackground
			if v.mask.At(z, y, x) != 0 {
				c = maskForeground
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// SaveSliceSequence renders every slice and writes slice_NNN.png files into
// outputDir, creating it if needed.
func (v *Viewer) SaveSliceSequence(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("visualization: creating %s: %w", outputDir, err)
	}
	for z := 0; z < v.scan.Depth; z++ {
		frame, err := v.RenderSlice(z)
		if err != nil {
			return err
		}
		path := filepath.Join(outputDir, fmt.Sprintf("slice_%03d.png", z))
		if err := savePNG(frame, path); err != nil {
			return err
		}
	}
	return nil
}

// SaveAnimation renders every slice into an animated GIF at the given frame
// rate, looping forever.
func (v *Viewer) SaveAnimation(path string, fps int) error {
	if fps <= 0 {
		fps = 10
	}
	delay := 100 / fps // GIF delay unit is 1/100 s

	anim := &gif.GIF{LoopCount: 0}
	for z := 0; z < v.scan.Depth; z++ {
		frame, err := v.RenderSlice(z)
		if err != nil {
			return err
		}
		paletted := image.NewPaletted(frame.Bounds(), palettedColors())
		xdraw.FloydSteinberg.Draw(paletted, frame.Bounds(), frame, image.Point{})
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("visualization: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := gif.EncodeAll(f, anim); err != nil {
		return fmt.Errorf("visualization: encoding gif: %w", err)
	}
	return nil
}

// palettedColors builds the GIF palette: a gray ramp for the scan panel plus
// the two mask colors.
func palettedColors() color.Palette {
	p := make(color.Palette, 0, 256)
	for i := 0; i < 254; i++ {
		g := uint8(i * 255 / 253)
		p = append(p, color.RGBA{R: g, G: g, B: g, A: 255})
	}
	p = append(p, maskBackground, maskForeground)
	return p
}

// scalePanel resizes an image to the target height preserving aspect ratio.
func scalePanel(src image.Image, height int, scaler xdraw.Scaler) image.Image {
	b := src.Bounds()
	if b.Dy() == height {
		return src
	}
	width := b.Dx() * height / b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func savePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("visualization: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("visualization: encoding %s: %w", path, err)
	}
	return nil
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
