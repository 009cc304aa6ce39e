//go:build linux

// Package gpio wraps character-device GPIO lines for the two panel buttons
// (pull-up, active-low) and the backlight output.
package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Line is a single requested GPIO line.
type Line struct {
	line   *gpiocdev.Line
	offset int
}

// NewButton requests an input line with pull-up bias, active-low: Read
// returns true while the button is held.
func NewButton(chip string, offset int) (*Line, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.AsActiveLow,
	)
	if err != nil {
		return nil, fmt.Errorf("request button line %s:%d: %w", chip, offset, err)
	}
	return &Line{line: l, offset: offset}, nil
}

// NewOutput requests an output line driven to the initial level.
func NewOutput(chip string, offset int, initial bool) (*Line, error) {
	v := 0
	if initial {
		v = 1
	}
	l, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(v))
	if err != nil {
		return nil, fmt.Errorf("request output line %s:%d: %w", chip, offset, err)
	}
	return &Line{line: l, offset: offset}, nil
}

// Read returns the logical line level.
func (l *Line) Read() (bool, error) {
	v, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read line %d: %w", l.offset, err)
	}
	return v != 0, nil
}

// Pressed is Read under its input-polling name; active-low inversion is
// handled by the line request.
func (l *Line) Pressed() (bool, error) {
	return l.Read()
}

// Write drives an output line.
func (l *Line) Write(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set line %d: %w", l.offset, err)
	}
	return nil
}

// Set satisfies the power controller's backlight interface.
func (l *Line) Set(on bool) error {
	return l.Write(on)
}

// Close releases the line.
func (l *Line) Close() error {
	return l.line.Close()
}
