package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"bireader-backend/internal/models"
	"bireader-backend/internal/session"
)

const readerHelp = `commands:
  f          flip the card
  n, enter   mark the card done and move on
  p          previous card
  r          replay audio
  s <speed>  set speech speed (0.25-4.0)
  a          toggle autoplay
  t          toggle translation
  retry      resend unsynced progress
  reload     discard unsynced progress and reload
  q          save and quit`

// exitTimeout bounds the final flush once ctx has been cancelled.
const exitTimeout = 5 * time.Second

// runReader drives eng with line commands read from in until q, EOF or ctx
// is cancelled. Position is saved in every case.
func runReader(ctx context.Context, eng *session.Engine, in io.Reader, out io.Writer) error {
	lines, readErr := scanLines(ctx, in)
	printCard(out, eng)

	for {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\ninterrupted")
			return finish(ctx, eng, out)
		}

		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\ninterrupted")
			return finish(ctx, eng, out)
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return err
				}
				return finish(ctx, eng, out)
			}
			line = l
		}
		fields := strings.Fields(line)
		cmd := ""
		if len(fields) > 0 {
			cmd = fields[0]
		}

		var err error
		redraw := true
		switch cmd {
		case "f":
			err = eng.Flip()
		case "", "n":
			err = eng.CompleteCard(ctx)
		case "p":
			err = eng.PreviousCard()
		case "r":
			err = eng.ReplayAudio()
			redraw = false
		case "s":
			err = setSpeed(ctx, eng, fields)
		case "a":
			v := !eng.Settings().AutoPlayTTS
			err = eng.UpdateSettings(ctx, models.SettingsPatch{AutoPlayTTS: &v})
		case "t":
			v := !eng.Settings().ShowTranslation
			err = eng.UpdateSettings(ctx, models.SettingsPatch{ShowTranslation: &v})
		case "retry":
			err = eng.Retry(ctx)
		case "reload":
			err = eng.Reload(ctx)
		case "q", "quit":
			return finish(ctx, eng, out)
		case "h", "help", "?":
			fmt.Fprintln(out, readerHelp)
			redraw = false
		default:
			fmt.Fprintf(out, "unknown command %q, h for help\n", cmd)
			redraw = false
		}

		if err != nil && !reportError(out, err) {
			return err
		}
		if redraw {
			printCard(out, eng)
		}
	}
}

// scanLines feeds lines from in until EOF or ctx is done. The error channel
// receives the scanner error after lines is closed.
func scanLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func setSpeed(ctx context.Context, eng *session.Engine, fields []string) error {
	if len(fields) != 2 {
		return &session.ValidationError{Fields: map[string]string{"ttsSpeed": "usage: s <speed>"}}
	}
	speed, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return &session.ValidationError{Fields: map[string]string{"ttsSpeed": "not a number"}}
	}
	return eng.UpdateSettings(ctx, models.SettingsPatch{TTSSpeed: &speed})
}

// reportError prints recoverable errors and reports whether reading can go on.
func reportError(out io.Writer, err error) bool {
	var (
		syncErr  *session.SyncError
		stateErr *session.StateError
		valErr   *session.ValidationError
	)
	switch {
	case errors.As(err, &syncErr) && syncErr.Op == "reload":
		fmt.Fprintf(out, "! reload failed: %v, type reload to try again\n", syncErr.Err)
	case errors.As(err, &syncErr):
		fmt.Fprintf(out, "! not saved (%d pending): %v, type retry\n", syncErr.Pending, syncErr.Err)
	case errors.As(err, &stateErr):
		fmt.Fprintf(out, "! %s\n", stateErr.Msg)
	case errors.As(err, &valErr):
		fmt.Fprintf(out, "! %v\n", valErr)
	default:
		return false
	}
	return true
}

// finish saves the position. It runs detached from ctx so an interrupt does
// not cancel the last write.
func finish(ctx context.Context, eng *session.Engine, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exitTimeout)
	defer cancel()

	err := eng.Exit(ctx)
	if err != nil {
		var syncErr *session.SyncError
		if errors.As(err, &syncErr) {
			fmt.Fprintf(out, "! %d change(s) could not be saved: %v\n", syncErr.Pending, syncErr.Err)
		}
		return err
	}

	p := eng.Progress()
	fmt.Fprintf(out, "saved session %s: %d/%d cards (%d%%)\n", eng.SessionID(), p.CompletedCards, p.TotalCards, p.Percentage)
	return nil
}

func printCard(out io.Writer, eng *session.Engine) {
	p := eng.Progress()
	if eng.IsCompleted() {
		fmt.Fprintf(out, "\nall %d cards done. q to quit\n", p.TotalCards)
		return
	}

	card := eng.CurrentCard()
	fmt.Fprintf(out, "\n[%d/%d] %d%%\n%s\n", card.CardIndex+1, p.TotalCards, p.Percentage, card.Chinese)
	if eng.IsFlipped() || eng.Settings().ShowTranslation {
		fmt.Fprintf(out, "%s\n", card.English)
	}
}
