// Package upload tracks the per-slot upload lifecycle of a verification
// session and adapts the external upload transports.
package upload

import (
	"errors"
	"sync"

	dErrors "deeptrack/pkg/domain-errors"
)

const (
	// minUploadingProgress keeps an active upload from reading as not started.
	minUploadingProgress = 1
	// maxUploadingProgress reserves 100 for a completed upload.
	maxUploadingProgress = 99
)

// ErrStaleAttempt is returned for events that belong to an attempt the slot
// has moved past (cancelled, retried, removed, or already terminal).
var ErrStaleAttempt = errors.New("upload: stale attempt")

type entry struct {
	state   SlotState
	current uint64 // active attempt, 0 when none
	abort   func()
}

// Tracker owns the three slots of one session. Slots are independent; each
// slot's transitions are serialized by the tracker's lock.
type Tracker struct {
	mu      sync.Mutex
	slots   map[Slot]*entry
	attempt uint64
}

func NewTracker() *Tracker {
	t := &Tracker{slots: make(map[Slot]*entry, len(Slots))}
	for _, s := range Slots {
		t.slots[s] = &entry{state: idleState(s)}
	}
	return t
}

func idleState(s Slot) SlotState {
	return SlotState{Slot: s, Label: s.Label(), Phase: PhaseIdle}
}

func (t *Tracker) entry(s Slot) (*entry, error) {
	e, ok := t.slots[s]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown slot "+string(s))
	}
	return e, nil
}

// Start moves an idle slot to uploading and returns the attempt number that
// all later events for this upload must carry. abort is invoked best-effort
// if the upload is cancelled.
func (t *Tracker) Start(s Slot, file FileInfo, abort func()) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.entry(s)
	if err != nil {
		return 0, err
	}
	switch e.state.Phase {
	case PhaseIdle:
	case PhaseUploading:
		return 0, dErrors.New(dErrors.CodeInvalidState, s.Label()+" upload already in progress")
	case PhaseUploaded:
		return 0, dErrors.New(dErrors.CodeInvalidState, s.Label()+" is already uploaded; remove it first")
	case PhaseError:
		return 0, dErrors.New(dErrors.CodeInvalidState, s.Label()+" upload failed; cancel or retry first")
	}
	t.attempt++
	e.current = t.attempt
	e.abort = abort
	e.state = SlotState{
		Slot:     s,
		Label:    s.Label(),
		Phase:    PhaseUploading,
		Progress: minUploadingProgress,
		File:     file,
		Attempt:  t.attempt,
	}
	return t.attempt, nil
}

func (t *Tracker) active(s Slot, attempt uint64) (*entry, error) {
	e, err := t.entry(s)
	if err != nil {
		return nil, err
	}
	if attempt == 0 || e.current != attempt || e.state.Phase != PhaseUploading {
		return nil, ErrStaleAttempt
	}
	return e, nil
}

// Progress records a transport progress report. Reports never move progress
// backwards and are held within [1, 99] until completion.
func (t *Tracker) Progress(s Slot, attempt uint64, p int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.active(s, attempt)
	if err != nil {
		return err
	}
	e.state.Progress = min(max(e.state.Progress, p, minUploadingProgress), maxUploadingProgress)
	return nil
}

// Complete marks the attempt uploaded. An empty locator fails the attempt.
func (t *Tracker) Complete(s Slot, attempt uint64, url string, file FileInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.active(s, attempt)
	if err != nil {
		return err
	}
	if url == "" {
		t.fail(e, "upload returned no resource locator")
		return dErrors.New(dErrors.CodeUnavailable, s.Label()+" upload returned no resource locator")
	}
	if file.Name == "" {
		file.Name = e.state.File.Name
	}
	if file.Size == 0 {
		file.Size = e.state.File.Size
	}
	if file.Type == "" {
		file.Type = e.state.File.Type
	}
	e.state.Phase = PhaseUploaded
	e.state.Progress = 100
	e.state.ResourceURL = url
	e.state.File = file
	e.state.Error = ""
	e.current = 0
	e.abort = nil
	return nil
}

// Fail marks the attempt failed. Progress is kept so the UI can report where
// the upload stopped.
func (t *Tracker) Fail(s Slot, attempt uint64, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.active(s, attempt)
	if err != nil {
		return err
	}
	t.fail(e, reason)
	return nil
}

func (t *Tracker) fail(e *entry, reason string) {
	if reason == "" {
		reason = "upload failed"
	}
	e.state.Phase = PhaseError
	e.state.ResourceURL = ""
	e.state.Error = reason
	e.current = 0
	e.abort = nil
}

// Cancel resets an uploading or failed slot to idle and aborts the transport.
// Cancelling an idle slot is a no-op. Uploaded slots must be removed instead.
func (t *Tracker) Cancel(s Slot) error {
	t.mu.Lock()
	e, err := t.entry(s)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	switch e.state.Phase {
	case PhaseIdle:
		t.mu.Unlock()
		return nil
	case PhaseUploaded:
		t.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, s.Label()+" is uploaded; remove it instead")
	}
	abort := e.abort
	t.reset(s, e)
	t.mu.Unlock()

	if abort != nil {
		abort()
	}
	return nil
}

// Retry resets a failed slot to idle. The caller must obtain a fresh file
// from the user; the tracker never restarts the transport itself.
func (t *Tracker) Retry(s Slot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.entry(s)
	if err != nil {
		return err
	}
	if e.state.Phase != PhaseError {
		return dErrors.New(dErrors.CodeInvalidState, "only a failed upload can be retried")
	}
	t.reset(s, e)
	return nil
}

// Remove clears an uploaded slot. It is destructive and requires confirmed.
func (t *Tracker) Remove(s Slot, confirmed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.entry(s)
	if err != nil {
		return err
	}
	if e.state.Phase != PhaseUploaded {
		return dErrors.New(dErrors.CodeInvalidState, "only an uploaded image can be removed")
	}
	if !confirmed {
		return dErrors.New(dErrors.CodeConfirmationRequired, "Removing "+s.Label()+" requires confirmation")
	}
	t.reset(s, e)
	return nil
}

func (t *Tracker) reset(s Slot, e *entry) {
	e.state = idleState(s)
	e.current = 0
	e.abort = nil
}

// State returns a snapshot of one slot.
func (t *Tracker) State(s Slot) SlotState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.slots[s]; ok {
		return e.state
	}
	return SlotState{}
}

// Snapshot returns every slot in display order.
func (t *Tracker) Snapshot() []SlotState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SlotState, 0, len(Slots))
	for _, s := range Slots {
		out = append(out, t.slots[s].state)
	}
	return out
}

// AllUploaded reports whether every slot holds a resource locator.
func (t *Tracker) AllUploaded() bool {
	return len(t.Missing()) == 0
}

// Missing lists the slots that are not uploaded.
func (t *Tracker) Missing() []Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Slot
	for _, s := range Slots {
		if t.slots[s].state.Phase != PhaseUploaded {
			out = append(out, s)
		}
	}
	return out
}

// Locators returns the resource URL of each uploaded slot.
func (t *Tracker) Locators() map[Slot]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Slot]string, len(Slots))
	for _, s := range Slots {
		if url := t.slots[s].state.ResourceURL; url != "" {
			out[s] = url
		}
	}
	return out
}

// AbortAll aborts every in-flight upload; used when the session is discarded.
func (t *Tracker) AbortAll() {
	t.mu.Lock()
	var aborts []func()
	for _, s := range Slots {
		e := t.slots[s]
		if e.abort != nil {
			aborts = append(aborts, e.abort)
		}
		t.reset(s, e)
	}
	t.mu.Unlock()
	for _, abort := range aborts {
		abort()
	}
}
