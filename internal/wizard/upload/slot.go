package upload

import (
	dErrors "deeptrack/pkg/domain-errors"
)

// Slot names one of the three required images.
type Slot string

const (
	SlotFace    Slot = "face"
	SlotFrontID Slot = "frontId"
	SlotBackID  Slot = "backId"
)

// Slots lists every slot in display order.
var Slots = []Slot{SlotFace, SlotFrontID, SlotBackID}

func ParseSlot(s string) (Slot, error) {
	for _, slot := range Slots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "slot must be one of face, frontId, backId")
}

// Label is the user-facing slot name.
func (s Slot) Label() string {
	switch s {
	case SlotFace:
		return "Face Image"
	case SlotFrontID:
		return "Front ID"
	case SlotBackID:
		return "Back ID"
	}
	return string(s)
}

// PayloadField is the verification request field carrying this slot's locator.
func (s Slot) PayloadField() string {
	switch s {
	case SlotFace:
		return "face_Image"
	case SlotFrontID:
		return "front_id_Image"
	case SlotBackID:
		return "back_id_Image"
	}
	return ""
}

// Phase is a slot's upload lifecycle position.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
	PhaseUploaded  Phase = "uploaded"
	PhaseError     Phase = "error"
)

// FileInfo describes the file bound to a slot.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// SlotState is a read-only snapshot of one slot.
//
// Invariants:
//   - Phase == PhaseUploaded iff ResourceURL != ""
//   - Progress == 100 only when Phase == PhaseUploaded
//   - Phase == PhaseError is only entered from PhaseUploading
type SlotState struct {
	Slot        Slot     `json:"slot"`
	Label       string   `json:"label"`
	Phase       Phase    `json:"phase"`
	Progress    int      `json:"progress"`
	ResourceURL string   `json:"resource_url,omitempty"`
	File        FileInfo `json:"file"`
	Error       string   `json:"error,omitempty"`
	Attempt     uint64   `json:"attempt"`
}
