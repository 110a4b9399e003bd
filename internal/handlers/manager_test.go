package handlers

import (
	"testing"
)

// A superseded confirmation must drop the token and payload, not just the
// state, so a stale confirm button can no longer execute the old action.
func TestUserSession_ClearPending(t *testing.T) {
	session := &UserSession{
		State: StateAwaitingConfirm,
		Data: map[string]interface{}{
			SessionPendingToken:  "token",
			SessionPendingPrompt: "stare pytanie",
			SessionPendingData:   []byte{1, 2, 3},
			SessionPendingName:   "plik.pdf",
			SessionPendingMime:   "application/pdf",
			"selected_model":     "gpt-4o",
		},
	}

	session.ClearPending()

	if session.State != StateNone {
		t.Errorf("State = %q, want %q", session.State, StateNone)
	}
	for _, key := range []string{
		SessionPendingToken,
		SessionPendingPrompt,
		SessionPendingData,
		SessionPendingName,
		SessionPendingMime,
	} {
		if _, ok := session.Data[key]; ok {
			t.Errorf("Data[%q] still set after ClearPending()", key)
		}
	}

	// Unrelated session data survives
	if _, ok := session.Data["selected_model"]; !ok {
		t.Error("ClearPending() should not touch unrelated session data")
	}
}
