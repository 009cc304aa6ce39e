package display

import (
	"image"
	"image/color"
	"testing"

	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"
)

func newTestDev(t *testing.T, opts Opts) *Dev {
	t.Helper()
	port := &spitest.Record{}
	dc := &gpiotest.Pin{N: "dc"}
	d, err := NewSPI(port, dc, nil, opts)
	if err != nil {
		t.Fatalf("NewSPI failed: %v", err)
	}
	return d
}

func TestNewSPIInitializes(t *testing.T) {
	d := newTestDev(t, Opts{Width: 240, Height: 240, Rotation: 270, YOffset: 80})
	if d.Width() != 240 || d.Height() != 240 {
		t.Errorf("geometry = %dx%d, want 240x240", d.Width(), d.Height())
	}
}

func TestBlitRejectsWrongSize(t *testing.T) {
	d := newTestDev(t, Opts{Width: 240, Height: 240})
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	if err := d.Blit(img); err == nil {
		t.Fatal("Blit accepted an image that does not match the panel")
	}
}

func TestBlitFullFrame(t *testing.T) {
	d := newTestDev(t, Opts{Width: 32, Height: 16})
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	if err := d.Blit(img); err != nil {
		t.Fatalf("Blit failed: %v", err)
	}
	if err := d.Fill(color.RGBA{}); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if err := d.Halt(); err != nil {
		t.Fatalf("Halt failed: %v", err)
	}
}

func TestRotationMADCtl(t *testing.T) {
	cases := map[int]byte{0: 0x00, 90: 0x60, 180: 0xC0, 270: 0xA0}
	for deg, want := range cases {
		got, err := rotationMADCtl(deg)
		if err != nil || got != want {
			t.Errorf("rotationMADCtl(%d) = (%#02x, %v), want %#02x", deg, got, err, want)
		}
	}
	if _, err := rotationMADCtl(45); err == nil {
		t.Error("rotationMADCtl accepted 45 degrees")
	}
}

func TestRGB565(t *testing.T) {
	cases := []struct {
		r, g, b byte
		want    uint16
	}{
		{0, 0, 0, 0x0000},
		{255, 255, 255, 0xFFFF},
		{255, 0, 0, 0xF800},
		{0, 255, 0, 0x07E0},
		{0, 0, 255, 0x001F},
	}
	for _, c := range cases {
		if got := rgb565(c.r, c.g, c.b); got != c.want {
			t.Errorf("rgb565(%d,%d,%d) = %#04x, want %#04x", c.r, c.g, c.b, got, c.want)
		}
	}
}
