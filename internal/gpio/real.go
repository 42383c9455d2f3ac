//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// RealLines holds enable lines requested from a Linux GPIO character device.
type RealLines struct {
	chip  *gpiocdev.Chip
	lines []*realLine
}

type realLine struct {
	offset int
	line   *gpiocdev.Line
}

// NewRealLines requests each offset on chipName as an output driven low,
// so every sensor starts in shutdown.
func NewRealLines(chipName string, offsets []int) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	r := &RealLines{chip: chip}
	for _, offset := range offsets {
		l, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request enable pin %d: %w", offset, err)
		}
		r.lines = append(r.lines, &realLine{offset: offset, line: l})
	}
	return r, nil
}

// Lines returns the enable lines in the order the offsets were given.
func (r *RealLines) Lines() []Line {
	out := make([]Line, len(r.lines))
	for i, l := range r.lines {
		out[i] = l
	}
	return out
}

// Close releases all lines and the chip.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults),
// which keeps the sensors held in shutdown after the process exits.
func (r *RealLines) Close() error {
	var err error
	for _, l := range r.lines {
		err = multierr.Append(err, l.Close())
	}
	r.lines = nil
	if r.chip != nil {
		if cerr := r.chip.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close chip: %w", cerr))
		}
		r.chip = nil
	}
	return err
}

func (l *realLine) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("set enable pin %d: %w", l.offset, err)
	}
	return nil
}

func (l *realLine) Close() error {
	var err error
	if rerr := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); rerr != nil {
		err = multierr.Append(err, fmt.Errorf("reconfigure enable pin %d: %w", l.offset, rerr))
	}
	if cerr := l.line.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("close enable pin %d: %w", l.offset, cerr))
	}
	return err
}
