package render

import (
	"bytes"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/satindergrewal/slidereel/internal/config"
	"github.com/satindergrewal/slidereel/internal/slides"
)

func newTestCompositor(t *testing.T) *Compositor {
	t.Helper()
	font, err := LoadFont("")
	if err != nil {
		t.Fatalf("LoadFont: %v", err)
	}
	c, err := NewCompositor(320, 180, font)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func brightness(c *Compositor, x, y int) int {
	p := c.snapshot().RGBAAt(x, y)
	return int(p.R) + int(p.G) + int(p.B)
}

func TestNewCompositorNoSurface(t *testing.T) {
	font, _ := LoadFont("")
	for _, size := range [][2]int{{0, 100}, {100, 0}, {-5, -5}} {
		_, err := NewCompositor(size[0], size[1], font)
		if !errors.Is(err, ErrNoSurface) {
			t.Errorf("NewCompositor(%dx%d) err = %v, want ErrNoSurface", size[0], size[1], err)
		}
	}
}

func TestNewCompositorNoContext(t *testing.T) {
	_, err := NewCompositor(100, 100, []byte("not a font"))
	if !errors.Is(err, ErrNoContext) {
		t.Errorf("err = %v, want ErrNoContext", err)
	}
	_, err = NewCompositor(100, 100, nil)
	if !errors.Is(err, ErrNoContext) {
		t.Errorf("empty font err = %v, want ErrNoContext", err)
	}
}

func TestLoadFontMissingFile(t *testing.T) {
	if _, err := LoadFont("/nonexistent/font.ttf"); err == nil {
		t.Error("LoadFont on a missing file should fail")
	}
}

func TestDrawZeroOpacityIsBlack(t *testing.T) {
	c := newTestCompositor(t)
	c.Draw(slides.Deck()[0], 0, 0)
	img := c.snapshot()
	for _, pt := range [][2]int{{0, 0}, {160, 90}, {319, 179}, {40, 150}} {
		p := img.RGBAAt(pt[0], pt[1])
		if p.R != 0 || p.G != 0 || p.B != 0 || p.A != 255 {
			t.Errorf("pixel %v = %v, want opaque black", pt, p)
		}
	}
}

func TestDrawFullOpacityPaintsBackground(t *testing.T) {
	c := newTestCompositor(t)
	c.Draw(slides.Deck()[0], 0, 1)
	if b := brightness(c, 2, 2); b == 0 {
		t.Error("corner pixel is black at full opacity")
	}
}

func TestDrawHalfOpacityDims(t *testing.T) {
	c := newTestCompositor(t)
	s := slides.Deck()[2]

	c.Draw(s, 2, 1)
	full := brightness(c, 2, 2)
	c.Draw(s, 2, 0.5)
	half := brightness(c, 2, 2)

	if full == 0 {
		t.Fatal("full-opacity pixel is black")
	}
	ratio := float64(half) / float64(full)
	if ratio < 0.35 || ratio > 0.65 {
		t.Errorf("half/full brightness ratio = %.2f, want about 0.5 (half=%d full=%d)", ratio, half, full)
	}
}

func TestDrawDeterministic(t *testing.T) {
	c := newTestCompositor(t)
	s := slides.Deck()[3]

	c.Draw(s, 3, 0.8)
	first := append([]byte(nil), c.RGBA()...)
	c.Draw(slides.Deck()[1], 1, 1)
	c.Draw(s, 3, 0.8)
	second := c.RGBA()

	if !bytes.Equal(first, second) {
		t.Error("drawing the same slide twice produced different pixels")
	}
}

func TestDrawSlidesDiffer(t *testing.T) {
	c := newTestCompositor(t)
	c.Draw(slides.Deck()[0], 0, 1)
	a := append([]byte(nil), c.RGBA()...)
	c.Draw(slides.Deck()[4], 4, 1)
	if bytes.Equal(a, c.RGBA()) {
		t.Error("different slides rendered identical frames")
	}
}

func TestRGBASize(t *testing.T) {
	c := newTestCompositor(t)
	c.Draw(slides.Deck()[0], 0, 1)
	if got, want := len(c.RGBA()), 320*180*4; got != want {
		t.Errorf("len(RGBA) = %d, want %d", got, want)
	}
}

func TestCirclePositionDeterministic(t *testing.T) {
	for idx := 0; idx < slides.Count(); idx++ {
		for i := 0; i < CircleCount; i++ {
			x1, y1, r1 := CirclePosition(i, idx, 1280, 720)
			x2, y2, r2 := CirclePosition(i, idx, 1280, 720)
			if x1 != x2 || y1 != y2 || r1 != r2 {
				t.Fatalf("circle %d on slide %d moved between calls", i, idx)
			}
			if x1 < 0 || x1 >= 1280 {
				t.Errorf("circle %d on slide %d x=%v outside surface", i, idx, x1)
			}
			if r1 <= 0 {
				t.Errorf("circle %d on slide %d radius %v", i, idx, r1)
			}
		}
	}
}

func TestWrapFitsTextWidth(t *testing.T) {
	c := newTestCompositor(t)
	for _, s := range slides.Deck() {
		lines := c.wrapWith(s.Body, c.bodyFace)
		if len(lines) < 2 {
			t.Errorf("body %q wrapped into %d line(s) on a 320px surface", s.Title, len(lines))
		}
		for _, line := range lines {
			if w := measure(line, c.bodyFace); w > c.maxTextWidth() && bytes.ContainsRune([]byte(line), ' ') {
				t.Errorf("line %q is %.1fpx, max %.1fpx", line, w, c.maxTextWidth())
			}
		}
	}
}

func TestTitlesWrapInsideMargins(t *testing.T) {
	c := newTestCompositor(t)
	for _, s := range slides.Deck() {
		for _, line := range c.wrapWith(s.Title, c.titleFace) {
			if w := measure(line, c.titleFace); w > c.maxTextWidth() && bytes.ContainsRune([]byte(line), ' ') {
				t.Errorf("title line %q is %.1fpx, max %.1fpx", line, w, c.maxTextWidth())
			}
		}
	}
}

func TestFillFailureLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	out, level, format := config.Log.Out, config.Log.GetLevel(), config.Log.Formatter
	config.Log.SetOutput(&buf)
	config.Log.SetLevel(logrus.DebugLevel)
	config.Log.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	defer func() {
		config.Log.SetOutput(out)
		config.Log.SetLevel(level)
		config.Log.SetFormatter(format)
	}()

	c := newTestCompositor(t)
	c.reportFill(nil)
	if buf.Len() != 0 {
		t.Fatalf("nil fill error logged: %s", buf.String())
	}
	for i := 0; i < 3; i++ {
		c.reportFill(errors.New("rasterizer rejected path"))
	}
	if got := strings.Count(buf.String(), "rasterizer rejected path"); got != 1 {
		t.Errorf("fill failure logged %d times, want 1:\n%s", got, buf.String())
	}
	if !strings.Contains(buf.String(), "level=debug") {
		t.Errorf("fill failure not logged at debug: %s", buf.String())
	}

	// a failure on the real path still leaves Draw usable
	c.Draw(slides.Deck()[1], 1, 1)
	if b := brightness(c, 2, 2); b == 0 {
		t.Error("Draw after a reported failure left the frame black")
	}
}

func TestPNG(t *testing.T) {
	c := newTestCompositor(t)
	c.Draw(slides.Deck()[0], 0, 1)
	var buf bytes.Buffer
	if err := c.PNG(&buf); err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Errorf("PNG bounds = %v, want 320x180", b)
	}
}
