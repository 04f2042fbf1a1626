package processor

import (
	"context"
	"errors"
	"time"
)

// Sequence failures. Stable strings: they surface verbatim in the activity
// log and the dashboard.
var (
	errConnectNotFound  = errors.New("connect_button_not_found")
	errNoteFieldMissing = errors.New("note_field_not_found")
	errSendMissing      = errors.New("send_button_not_found")
)

// sendSequence walks one invite from card to confirmation. Interaction steps
// use ctx, so a click already in flight completes even across a stop request;
// polls and pauses use waitCtx, so a stop lands within one polling interval.
func (p *Processor) sendSequence(ctx, waitCtx context.Context, index int, message string, dryRun bool) error {
	surf := p.cfg.Surface

	connect, err := surf.CandidateControl(ctx, index, ControlConnect)
	if err != nil {
		return err
	}
	if connect == nil {
		return errConnectNotFound
	}
	if err := surf.Scroll(ctx, connect); err != nil {
		return err
	}
	if err := p.pause(waitCtx, 500*time.Millisecond, 1500*time.Millisecond); err != nil {
		return err
	}
	if err := surf.Click(ctx, connect); err != nil {
		return err
	}
	if err := p.pause(waitCtx, 2*time.Second, 4*time.Second); err != nil {
		return err
	}

	// Some invite dialogs open straight on the note field; the add-note
	// button is optional.
	addNote, err := surf.WaitControl(waitCtx, ControlAddNote, 5*time.Second)
	if err != nil {
		return err
	}
	if addNote != nil {
		if err := surf.Click(ctx, addNote); err != nil {
			return p.abandon(ctx, err)
		}
		if err := p.pause(waitCtx, time.Second, 2*time.Second); err != nil {
			return err
		}
	}

	field, err := surf.WaitControl(waitCtx, ControlNoteField, 3*time.Second)
	if err != nil {
		return err
	}
	if field == nil {
		return p.abandon(ctx, errNoteFieldMissing)
	}
	if err := surf.Type(ctx, field, message); err != nil {
		return p.abandon(ctx, err)
	}
	// Review pause before committing.
	if err := p.pause(waitCtx, 2*time.Second, 5*time.Second); err != nil {
		return err
	}

	if dryRun {
		// Rehearse everything except the final click, then dismiss.
		if cancel, cerr := surf.Control(ctx, ControlCancel); cerr == nil && cancel != nil {
			_ = surf.Click(ctx, cancel)
		}
		return nil
	}

	send, err := surf.Control(ctx, ControlSend)
	if err != nil {
		return err
	}
	if send == nil {
		return p.abandon(ctx, errSendMissing)
	}
	if err := surf.Click(ctx, send); err != nil {
		return err
	}
	// The invite is committed at this point; a stop during the settle
	// pause must not turn it into an error.
	_ = p.pause(waitCtx, time.Second, 2*time.Second)
	return nil
}

// abandon dismisses a half-open invite dialog before reporting err, so the
// next candidate starts from a clean page.
func (p *Processor) abandon(ctx context.Context, err error) error {
	if cancel, cerr := p.cfg.Surface.Control(ctx, ControlCancel); cerr == nil && cancel != nil {
		_ = p.cfg.Surface.Click(ctx, cancel)
	}
	return err
}
