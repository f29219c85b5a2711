// Package audio defines the text-to-speech boundary used while reading.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

var ErrNoPlayers = errors.New("audio: no players configured")

// Player speaks text at the given speed multiplier.
type Player interface {
	Play(ctx context.Context, text string, speed float64) error
}

type PlayerFunc func(ctx context.Context, text string, speed float64) error

func (f PlayerFunc) Play(ctx context.Context, text string, speed float64) error {
	return f(ctx, text, speed)
}

// Nop discards every request.
type Nop struct{}

func (Nop) Play(context.Context, string, float64) error { return nil }

// Chain tries each player in order and stops at the first success.
type Chain []Player

func (c Chain) Play(ctx context.Context, text string, speed float64) error {
	if len(c) == 0 {
		return ErrNoPlayers
	}

	var errs []error
	for i, p := range c {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.Play(ctx, text, speed)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("player %d: %w", i, err))
	}
	return errors.Join(errs...)
}

// Command speaks through a local TTS binary such as espeak or say.
type Command struct {
	Name     string // binary, e.g. "espeak"
	RateFlag string // e.g. "-s" for espeak, "-r" for say
	BaseRate int    // words per minute at speed 1.0
	Voice    string
}

func (c Command) Play(ctx context.Context, text string, speed float64) error {
	path, err := exec.LookPath(c.Name)
	if err != nil {
		return fmt.Errorf("audio: %s not available: %w", c.Name, err)
	}

	cmd := exec.CommandContext(ctx, path, c.args(text, speed)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("audio: %s failed: %w (%s)", c.Name, err, out)
	}
	return nil
}

func (c Command) args(text string, speed float64) []string {
	var args []string
	if c.RateFlag != "" && c.BaseRate > 0 {
		args = append(args, c.RateFlag, strconv.Itoa(int(float64(c.BaseRate)*speed)))
	}
	if c.Voice != "" {
		args = append(args, "-v", c.Voice)
	}
	// text starting with "-" must not be parsed as a flag
	return append(args, "--", text)
}
