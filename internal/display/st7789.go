// Package display drives an ST7789 TFT panel over SPI via periph.io.
//
// The driver covers exactly what the viewer needs: init, full-frame blit of
// an RGBA image converted to RGB565, blanking, and halt. Partial updates
// and scrolling are not implemented.
package display

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// ST7789 command set (subset).
const (
	cmdSWReset    = 0x01
	cmdSleepOut   = 0x11
	cmdNormalOn   = 0x13
	cmdInvertOn   = 0x21
	cmdDisplayOff = 0x28
	cmdDisplayOn  = 0x29
	cmdColAddr    = 0x2A
	cmdRowAddr    = 0x2B
	cmdRAMWrite   = 0x2C
	cmdMADCtl     = 0x36
	cmdColMod     = 0x3A
)

// maxTransfer keeps single SPI writes under the kernel's default spidev
// buffer size.
const maxTransfer = 4096

// Opts configures panel geometry.
type Opts struct {
	Width    int
	Height   int
	Rotation int // 0, 90, 180 or 270 degrees
	XOffset  int // controller RAM offset of the visible window
	YOffset  int
	Hz       physic.Frequency // SPI clock; 0 means 24 MHz
}

// Dev is an initialized panel.
type Dev struct {
	c    spi.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	opts Opts
	px   []byte // reusable RGB565 frame buffer
}

// NewSPI connects and initializes the panel. dc is required; rst may be nil
// when the reset line is tied high.
func NewSPI(p spi.Port, dc gpio.PinOut, rst gpio.PinOut, opts Opts) (*Dev, error) {
	if dc == nil {
		return nil, fmt.Errorf("st7789: data/command pin is required")
	}
	hz := opts.Hz
	if hz == 0 {
		hz = 24 * physic.MegaHertz
	}
	c, err := p.Connect(hz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("st7789: spi connect: %w", err)
	}

	d := &Dev{
		c:    c,
		dc:   dc,
		rst:  rst,
		opts: opts,
		px:   make([]byte, opts.Width*opts.Height*2),
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) init() error {
	if d.rst != nil {
		if err := d.rst.Out(gpio.Low); err != nil {
			return fmt.Errorf("st7789: reset: %w", err)
		}
		time.Sleep(10 * time.Millisecond)
		if err := d.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("st7789: reset: %w", err)
		}
		time.Sleep(120 * time.Millisecond)
	} else {
		if err := d.command(cmdSWReset, nil); err != nil {
			return err
		}
		time.Sleep(150 * time.Millisecond)
	}

	madctl, err := rotationMADCtl(d.opts.Rotation)
	if err != nil {
		return err
	}

	steps := []struct {
		cmd   byte
		data  []byte
		delay time.Duration
	}{
		{cmdSleepOut, nil, 10 * time.Millisecond},
		{cmdColMod, []byte{0x55}, 0}, // 16-bit RGB565
		{cmdMADCtl, []byte{madctl}, 0},
		{cmdInvertOn, nil, 0}, // ST7789 panels expect inversion on
		{cmdNormalOn, nil, 10 * time.Millisecond},
		{cmdDisplayOn, nil, 10 * time.Millisecond},
	}
	for _, s := range steps {
		if err := d.command(s.cmd, s.data); err != nil {
			return err
		}
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
	}
	return nil
}

func rotationMADCtl(deg int) (byte, error) {
	switch deg {
	case 0:
		return 0x00, nil
	case 90:
		return 0x60, nil
	case 180:
		return 0xC0, nil
	case 270:
		return 0xA0, nil
	}
	return 0, fmt.Errorf("st7789: unsupported rotation %d", deg)
}

// Width returns the visible width in pixels.
func (d *Dev) Width() int { return d.opts.Width }

// Height returns the visible height in pixels.
func (d *Dev) Height() int { return d.opts.Height }

// Blit writes a full frame. The image must match the panel resolution.
func (d *Dev) Blit(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != d.opts.Width || b.Dy() != d.opts.Height {
		return fmt.Errorf("st7789: image %dx%d does not match panel %dx%d",
			b.Dx(), b.Dy(), d.opts.Width, d.opts.Height)
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for x := 0; x < len(row); x += 4 {
			v := rgb565(row[x], row[x+1], row[x+2])
			d.px[i] = byte(v >> 8)
			d.px[i+1] = byte(v)
			i += 2
		}
	}
	return d.flush(d.px)
}

// Fill blanks the panel to a solid color.
func (d *Dev) Fill(c color.RGBA) error {
	v := rgb565(c.R, c.G, c.B)
	for i := 0; i < len(d.px); i += 2 {
		d.px[i] = byte(v >> 8)
		d.px[i+1] = byte(v)
	}
	return d.flush(d.px)
}

func (d *Dev) flush(px []byte) error {
	if err := d.setWindow(); err != nil {
		return err
	}
	if err := d.command(cmdRAMWrite, nil); err != nil {
		return err
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for off := 0; off < len(px); off += maxTransfer {
		end := off + maxTransfer
		if end > len(px) {
			end = len(px)
		}
		if err := d.c.Tx(px[off:end], nil); err != nil {
			return fmt.Errorf("st7789: pixel write: %w", err)
		}
	}
	return nil
}

func (d *Dev) setWindow() error {
	x0 := d.opts.XOffset
	x1 := x0 + d.opts.Width - 1
	y0 := d.opts.YOffset
	y1 := y0 + d.opts.Height - 1

	if err := d.command(cmdColAddr, addr16(x0, x1)); err != nil {
		return err
	}
	return d.command(cmdRowAddr, addr16(y0, y1))
}

func addr16(a, b int) []byte {
	return []byte{byte(a >> 8), byte(a), byte(b >> 8), byte(b)}
}

func (d *Dev) command(cmd byte, data []byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("st7789: command %#02x: %w", cmd, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	if err := d.c.Tx(data, nil); err != nil {
		return fmt.Errorf("st7789: command %#02x data: %w", cmd, err)
	}
	return nil
}

// Halt blanks the panel and switches the display off.
func (d *Dev) Halt() error {
	if err := d.Fill(color.RGBA{}); err != nil {
		return err
	}
	return d.command(cmdDisplayOff, nil)
}

func rgb565(r, g, b byte) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}
