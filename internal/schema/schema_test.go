package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lankyjo/coast/internal/apperr"
)

func details(t *testing.T, err error) map[string][]string {
	t.Helper()
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok, "want apperr, got %v", err)
	require.Equal(t, apperr.KindValidation, e.Kind)
	return e.Details
}

func TestValidate_TaskInput(t *testing.T) {
	v := Default()

	ok := map[string]any{
		"title":       "Ship landing page",
		"projectId":   "p1",
		"assigneeIds": []string{"u1", "u2"},
		"priority":    "high",
	}
	assert.NoError(t, v.Validate(TaskInput, ok))

	tests := []struct {
		name  string
		input map[string]any
		field string
	}{
		{"missing title", map[string]any{"projectId": "p1"}, "title"},
		{"blank title", map[string]any{"title": "   ", "projectId": "p1"}, "title"},
		{"missing project", map[string]any{"title": "x"}, "projectId"},
		{"bad priority", map[string]any{"title": "x", "projectId": "p1", "priority": "asap"}, "priority"},
		{"unknown field", map[string]any{"title": "x", "projectId": "p1", "owner": "me"}, "owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := details(t, v.Validate(TaskInput, tt.input))
			assert.Contains(t, d, tt.field)
		})
	}
}

type taskUpdate struct {
	Status   *string `json:"status,omitempty"`
	Priority *string `json:"priority,omitempty"`
}

func TestValidate_StructWithOmittedPointers(t *testing.T) {
	done := "done"
	assert.NoError(t, Default().Validate(TaskUpdate, taskUpdate{Status: &done}))

	bad := "finished"
	d := details(t, Default().Validate(TaskUpdate, taskUpdate{Status: &bad}))
	assert.Contains(t, d, "status")
}

func TestValidate_AutomationConditionalFields(t *testing.T) {
	v := Default()

	d := details(t, v.Validate(AutomationInput, map[string]any{
		"name": "Welcome", "stageId": "s1", "action": "send_email",
	}))
	assert.Contains(t, d, "templateId")

	assert.NoError(t, v.Validate(AutomationInput, map[string]any{
		"name": "Welcome", "stageId": "s1", "action": "send_email", "templateId": "t1",
	}))
	assert.NoError(t, v.Validate(AutomationInput, map[string]any{
		"name": "Ping owner", "stageId": "s1", "action": "notify_owner",
	}))
}

func TestValidate_ManualTime(t *testing.T) {
	v := Default()
	base := func() map[string]any {
		return map[string]any{"taskId": "t1", "projectId": "p1", "durationSeconds": 1800, "date": "2026-03-02"}
	}
	assert.NoError(t, v.Validate(ManualTimeInput, base()))

	in := base()
	in["durationSeconds"] = 0
	assert.Contains(t, details(t, v.Validate(ManualTimeInput, in)), "durationSeconds")

	in = base()
	in["date"] = "03/02/2026"
	assert.Contains(t, details(t, v.Validate(ManualTimeInput, in)), "date")
}

func TestValidate_Email(t *testing.T) {
	v := Default()
	assert.NoError(t, v.Validate(InvitationInput, map[string]any{"email": "ann@example.com", "role": "member"}))

	d := details(t, v.Validate(InvitationInput, map[string]any{"email": "not-an-email", "role": "owner"}))
	assert.Contains(t, d, "email")
	assert.Contains(t, d, "role")
}

func TestDecodeJSON_AssigneeSuggestion(t *testing.T) {
	var out struct {
		AssigneeID string `json:"assigneeId"`
		Reason     string `json:"reason"`
	}
	raw := []byte(`{"assigneeId": "u2", "reason": "Lightest load", "confidence": 0.8}`)
	require.NoError(t, Default().DecodeJSON(AssigneeSuggestion, raw, &out))
	assert.Equal(t, "u2", out.AssigneeID)
	assert.Equal(t, "Lightest load", out.Reason)

	d := details(t, Default().DecodeJSON(AssigneeSuggestion, []byte(`{"reason": "none"}`), &out))
	assert.Contains(t, d, "assigneeId")
}

func TestDecodeJSON_SubtaskListNeedsOne(t *testing.T) {
	var out struct {
		Subtasks []string `json:"subtasks"`
	}
	require.NoError(t, Default().DecodeJSON(SubtaskList, []byte(`{"subtasks": ["a", "b"]}`), &out))
	assert.Equal(t, []string{"a", "b"}, out.Subtasks)

	assert.Error(t, Default().DecodeJSON(SubtaskList, []byte(`{"subtasks": []}`), &out))
}

func TestDecodeJSON_Malformed(t *testing.T) {
	var out map[string]any
	err := Default().DecodeJSON(DailySummary, []byte(`{"summary": `), &out)
	require.Error(t, err)
	_, isValidation := apperr.As(err)
	assert.False(t, isValidation)
}

func TestUnknownDefinition(t *testing.T) {
	err := Default().Validate("#Nope", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema definition")
}
