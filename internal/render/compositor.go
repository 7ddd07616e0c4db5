// Package render paints slideshow frames onto a software gg canvas.
package render

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/satindergrewal/slidereel/internal/config"
	"github.com/satindergrewal/slidereel/internal/slides"
)

var (
	// ErrNoSurface means the frame surface has no usable size.
	ErrNoSurface = errors.New("drawing surface unavailable")
	// ErrNoContext means a drawing context (font faces) could not be built.
	ErrNoContext = errors.New("drawing context unavailable")
)

const (
	CircleCount = 7
	Footer      = "Ada Lovelace · 1815–1852 · rendered by slidereel"

	margin = 80.0 // at 720 lines; scaled with the surface
)

// Compositor owns the drawing surface and paints one frame at a time.
type Compositor struct {
	width, height int
	pixmap        *gg.Pixmap
	dc            *gg.Context
	source        *text.FontSource

	titleFace, bodyFace, footerFace text.Face
	titleSize, bodySize             float64
	pad                             float64
	fillFailed                      bool
}

// LoadFont reads font data from path, or returns Go Regular when path is empty.
func LoadFont(path string) ([]byte, error) {
	if path == "" {
		return goregular.TTF, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	return data, nil
}

// NewCompositor creates a width×height surface. Font sizes scale with height
// so that smaller previews keep the same layout.
func NewCompositor(width, height int, fontData []byte) (*Compositor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrNoSurface, width, height)
	}

	source, err := text.NewFontSource(fontData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoContext, err)
	}

	scale := float64(height) / 720
	c := &Compositor{
		width:     width,
		height:    height,
		pixmap:    gg.NewPixmap(width, height),
		source:    source,
		titleSize: 64 * scale,
		bodySize:  34 * scale,
		pad:       margin * scale,
	}
	c.titleFace = source.Face(c.titleSize)
	c.bodyFace = source.Face(c.bodySize)
	c.footerFace = source.Face(20 * scale)
	c.dc = gg.NewContext(width, height, gg.WithPixmap(c.pixmap))
	return c, nil
}

// Close releases the drawing context and font source.
func (c *Compositor) Close() error {
	err := c.dc.Close()
	if serr := c.source.Close(); err == nil {
		err = serr
	}
	return err
}

func (c *Compositor) Width() int  { return c.width }
func (c *Compositor) Height() int { return c.height }

// Draw paints slide s (position index in the deck) at the given opacity over
// a black base.
func (c *Compositor) Draw(s slides.Slide, index int, opacity float64) {
	dc := c.dc
	dc.ClearWithColor(gg.Black)

	dc.PushLayer(gg.BlendNormal, opacity)
	c.background(s.Hue)
	c.circles(s.Hue, index)
	y := c.textBlock(s.Title, c.titleFace, c.titleSize*1.2, float64(c.height)*0.3, 1)
	c.textBlock(s.Body, c.bodyFace, c.bodySize*1.45, y+c.bodySize, 0.85)
	c.footer()
	dc.PopLayer()
}

func (c *Compositor) background(hue float64) {
	w, h := float64(c.width), float64(c.height)
	grad := gg.NewLinearGradientBrush(0, 0, w, h).
		AddColorStop(0, gg.HSL(hue, 0.55, 0.32)).
		AddColorStop(1, gg.HSL(hue+40, 0.6, 0.14))
	c.dc.SetFillBrush(grad)
	c.dc.DrawRectangle(0, 0, w, h)
	c.fill()
}

// circles draws the decorative pattern. Positions come from the circle and
// slide index only, so a given slide always looks the same.
func (c *Compositor) circles(hue float64, index int) {
	w, h := float64(c.width), float64(c.height)
	for i := 0; i < CircleCount; i++ {
		x, y, r := CirclePosition(i, index, w, h)
		col := gg.HSL(hue+float64(i)*18, 0.7, 0.6)
		col.A = 0.08 + 0.02*float64(i%3)
		c.dc.SetFillBrush(gg.Solid(col))
		c.dc.DrawCircle(x, y, r)
		c.fill()
	}
}

func (c *Compositor) fill() { c.reportFill(c.dc.Fill()) }

// reportFill logs the first fill failure at debug level and drops the rest.
func (c *Compositor) reportFill(err error) {
	if err == nil || c.fillFailed {
		return
	}
	c.fillFailed = true
	config.Log.WithError(err).WithField("size", fmt.Sprintf("%dx%d", c.width, c.height)).Debug("fill path")
}

// CirclePosition returns the centre and radius of decorative circle i on
// slide index for a w×h surface.
func CirclePosition(i, index int, w, h float64) (x, y, r float64) {
	k := float64(i + index*CircleCount)
	x = math.Mod(k*0.618034*w+w*0.13, w)
	y = h*0.5 + math.Sin(k*1.7)*h*0.38
	r = h * (0.06 + 0.04*float64((i*5+index)%4))
	return x, y, r
}

// textBlock wraps s to the content width, draws it starting at baseline y and
// returns the baseline after the last line.
func (c *Compositor) textBlock(s string, face text.Face, lineHeight, y, alpha float64) float64 {
	c.dc.SetFont(face)
	c.dc.SetRGBA(1, 1, 1, alpha)
	for _, line := range c.wrapWith(s, face) {
		c.dc.DrawString(line, c.pad, y)
		y += lineHeight
	}
	return y
}

func (c *Compositor) footer() {
	c.dc.SetFont(c.footerFace)
	c.dc.SetRGBA(1, 1, 1, 0.6)
	c.dc.DrawStringAnchored(Footer, float64(c.width)/2, float64(c.height)-c.pad/2, 0.5, 0)
}

func (c *Compositor) maxTextWidth() float64 {
	return float64(c.width) - 2*c.pad
}

func (c *Compositor) wrapWith(s string, face text.Face) []string {
	return slides.Wrap(s, c.maxTextWidth(), func(line string) float64 {
		return measure(line, face)
	})
}

func measure(s string, face text.Face) float64 {
	w, _ := text.Measure(s, face)
	return w
}

// RGBA returns the current frame as tightly packed RGBA bytes. The slice
// aliases the surface and is overwritten by the next Draw.
func (c *Compositor) RGBA() []byte {
	_ = c.dc.FlushGPU()
	return c.pixmap.Data()
}

// snapshot returns a copy of the current frame.
func (c *Compositor) snapshot() *image.RGBA {
	_ = c.dc.FlushGPU()
	return c.pixmap.ToImage()
}

// PNG encodes the current frame.
func (c *Compositor) PNG(w io.Writer) error {
	_ = c.dc.FlushGPU()
	return c.dc.EncodePNG(w)
}
