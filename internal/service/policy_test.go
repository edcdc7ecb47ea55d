package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
)

func TestCheckTaskUpdate(t *testing.T) {
	task := &db.Task{ID: "t1", AssigneeIDs: []string{"u1"}, AssignerID: "admin"}

	admin := &auth.Session{UserID: "admin", Role: db.RoleAdmin}
	assignee := &auth.Session{UserID: "u1", Role: db.RoleMember}
	stranger := &auth.Session{UserID: "u9", Role: db.RoleMember}

	tests := []struct {
		name   string
		sess   *auth.Session
		fields []string
		want   string
	}{
		{"admin any field", admin, allTaskFields, ""},
		{"assignee status", assignee, []string{FieldStatus}, ""},
		{"assignee title", assignee, []string{FieldTitle}, "Forbidden: Only admins can change title"},
		{"assignee status and priority", assignee, []string{FieldStatus, FieldPriority, FieldAssigneeIDs},
			"Forbidden: Only admins can change assigneeIds, priority"},
		{"stranger status", stranger, []string{FieldStatus}, "Forbidden: You can only update tasks assigned to you"},
		{"stranger nothing", stranger, nil, "Forbidden: You can only update tasks assigned to you"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTaskUpdate(tt.sess, task, tt.fields)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, apperr.KindForbidden))
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestAllowedTaskFields(t *testing.T) {
	task := &db.Task{AssigneeIDs: []string{"admin"}}
	assert.Equal(t, allTaskFields, AllowedTaskFields(&auth.Session{UserID: "admin", Role: db.RoleAdmin}, task))
	assert.Equal(t, []string{FieldStatus}, AllowedTaskFields(&auth.Session{UserID: "admin", Role: db.RoleMember}, task))
	assert.Empty(t, AllowedTaskFields(&auth.Session{UserID: "x", Role: db.RoleMember}, task))
}
