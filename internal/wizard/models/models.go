// Package models holds the identity-verification wizard session and its step
// controller.
package models

import (
	"strings"

	dErrors "deeptrack/pkg/domain-errors"
)

// DocumentType is the identification document the user verifies with.
type DocumentType string

const (
	DocumentIDCard                DocumentType = "id-card"
	DocumentDriversLicense        DocumentType = "drivers-license"
	DocumentPassport              DocumentType = "passport"
	DocumentDisabilityCertificate DocumentType = "disability-certificate"
	DocumentKRAPinCertificate     DocumentType = "kra-pin-certificate"
)

// DocumentTypes lists the supported documents in display order.
var DocumentTypes = []DocumentType{
	DocumentIDCard,
	DocumentDriversLicense,
	DocumentPassport,
	DocumentDisabilityCertificate,
	DocumentKRAPinCertificate,
}

func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t, nil
	}
	return "", ErrUnsupportedDocument
}

func (t DocumentType) IsValid() bool {
	for _, v := range DocumentTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (t DocumentType) Label() string {
	switch t {
	case DocumentIDCard:
		return "ID Card"
	case DocumentDriversLicense:
		return "Driver's License"
	case DocumentPassport:
		return "Passport"
	case DocumentDisabilityCertificate:
		return "Disability Certificate"
	case DocumentKRAPinCertificate:
		return "KRA PIN Certificate"
	}
	return "Identification Document"
}

// Step is the wizard position. Verification results are not a step.
type Step int

const (
	StepSelectDocument Step = iota
	StepUploadDocuments
	StepVerify
)

// Steps lists the wizard steps in order.
var Steps = []Step{StepSelectDocument, StepUploadDocuments, StepVerify}

func (s Step) Title() string {
	switch s {
	case StepSelectDocument:
		return "Select Document"
	case StepUploadDocuments:
		return "Upload Documents"
	case StepVerify:
		return "Verify"
	}
	return ""
}

func (s Step) Description() string {
	switch s {
	case StepSelectDocument:
		return "Choose your identification document type"
	case StepUploadDocuments:
		return "Upload the required document images"
	case StepVerify:
		return "Final verification step"
	}
	return ""
}

// Submission tracks the verification call for a session.
type Submission string

const (
	SubmissionIdle                Submission = "idle"
	SubmissionResolvingCredential Submission = "resolving_credential"
	SubmissionInFlight            Submission = "in_flight"
)

// Busy reports whether a submission has started and not yet resolved.
func (s Submission) Busy() bool {
	return s == SubmissionResolvingCredential || s == SubmissionInFlight
}

var (
	ErrUnsupportedDocument = dErrors.New(dErrors.CodeValidation, "unsupported document type")
	ErrNoDocumentSelected  = dErrors.New(dErrors.CodePreconditionFailed, "Please select a document type")
	ErrUploadsIncomplete   = dErrors.New(dErrors.CodePreconditionFailed, "Please upload all required images")
	ErrSessionComplete     = dErrors.New(dErrors.CodeInvalidState, "verification already completed for this session")
	ErrSubmissionBusy      = dErrors.New(dErrors.CodeConflict, "Verification already in progress")
	ErrNotAtVerifyStep     = dErrors.New(dErrors.CodeInvalidState, "verification can only be submitted from the verify step")
	ErrSubmitToAdvance     = dErrors.New(dErrors.CodeInvalidState, "the verify step is completed by submitting the verification")
	ErrUploadsLocked       = dErrors.New(dErrors.CodeInvalidState, "images cannot be changed at the verify step")
)
