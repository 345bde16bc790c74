package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestJobState_CanTransition(t *testing.T) {
	cases := []struct {
		from    JobState
		to      JobState
		allowed bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateFailed, true},
		{StatePending, StateCompleted, false},
		{StatePending, StatePending, false},
		{StateRunning, StatePending, true},
		{StateRunning, StateCompleted, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateRunning, false},
		{StateCompleted, StatePending, false},
		{StateCompleted, StateRunning, false},
		{StateCompleted, StateFailed, false},
		{StateFailed, StatePending, false},
		{StateFailed, StateRunning, false},
		{StateFailed, StateCompleted, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestJobState_IsTerminal(t *testing.T) {
	if StatePending.IsTerminal() || StateRunning.IsTerminal() {
		t.Error("PENDING and RUNNING must not be terminal")
	}
	if !StateCompleted.IsTerminal() || !StateFailed.IsTerminal() {
		t.Error("COMPLETED and FAILED must be terminal")
	}
}

func TestCaller_CanAccess(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	if !(Caller{ID: owner, Role: RoleUser}).CanAccess(owner) {
		t.Error("owner must access their own job")
	}
	if (Caller{ID: stranger, Role: RoleUser}).CanAccess(owner) {
		t.Error("non-owner user must not access another owner's job")
	}
	if !(Caller{ID: stranger, Role: RoleAdmin}).CanAccess(owner) {
		t.Error("admin must access any job")
	}
}

func TestFormat_Helpers(t *testing.T) {
	cases := []struct {
		format      Format
		contentType string
		extension   string
	}{
		{FormatPNG, "image/png", ".png"},
		{FormatJPEG, "image/jpeg", ".jpg"},
		{FormatWebP, "image/webp", ".webp"},
	}

	for _, tc := range cases {
		if got := tc.format.ContentType(); got != tc.contentType {
			t.Errorf("%s: expected content type %s, got %s", tc.format, tc.contentType, got)
		}
		if got := tc.format.Extension(); got != tc.extension {
			t.Errorf("%s: expected extension %s, got %s", tc.format, tc.extension, got)
		}
	}

	if Format("gif").IsValid() {
		t.Error("gif must not be a valid format")
	}
	if Style("vaporwave").IsValid() {
		t.Error("vaporwave must not be a valid style")
	}
}
