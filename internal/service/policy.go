package service

import (
	"sort"
	"strings"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/auth"
	"github.com/lankyjo/coast/internal/db"
)

// Relation is how the caller stands to the task being changed.
type Relation string

const (
	RelationNone     Relation = "none"
	RelationAssignee Relation = "assignee"
)

// Updatable task fields, by their JSON names.
const (
	FieldTitle         = "title"
	FieldDescription   = "description"
	FieldStatus        = "status"
	FieldPriority      = "priority"
	FieldProjectID     = "projectId"
	FieldAssigneeIDs   = "assigneeIds"
	FieldVisibility    = "visibility"
	FieldDeadline      = "deadline"
	FieldStartDate     = "startDate"
	FieldCustomBoardID = "customBoardId"
	FieldSubtasks      = "subtasks"
)

var allTaskFields = []string{
	FieldTitle, FieldDescription, FieldStatus, FieldPriority, FieldProjectID,
	FieldAssigneeIDs, FieldVisibility, FieldDeadline, FieldStartDate,
	FieldCustomBoardID, FieldSubtasks,
}

type policyKey struct {
	role     db.Role
	relation Relation
}

// taskUpdatePolicy lists the fields each caller may change. Missing
// entries allow nothing.
var taskUpdatePolicy = map[policyKey][]string{
	{db.RoleAdmin, RelationNone}:      allTaskFields,
	{db.RoleAdmin, RelationAssignee}:  allTaskFields,
	{db.RoleMember, RelationAssignee}: {FieldStatus},
}

func relationTo(sess *auth.Session, t *db.Task) Relation {
	if t.IsAssignee(sess.UserID) {
		return RelationAssignee
	}
	return RelationNone
}

// AllowedTaskFields returns the fields the caller may change on t.
func AllowedTaskFields(sess *auth.Session, t *db.Task) []string {
	return taskUpdatePolicy[policyKey{sess.Role, relationTo(sess, t)}]
}

// CheckTaskUpdate fails unless every field in fields is allowed for the
// caller on t.
func CheckTaskUpdate(sess *auth.Session, t *db.Task, fields []string) error {
	allowed := AllowedTaskFields(sess, t)
	if len(allowed) == 0 {
		return apperr.Forbidden("You can only update tasks assigned to you")
	}
	var denied []string
	for _, f := range fields {
		if !contains(allowed, f) {
			denied = append(denied, f)
		}
	}
	if len(denied) > 0 {
		sort.Strings(denied)
		return apperr.Forbidden("Only admins can change " + strings.Join(denied, ", "))
	}
	return nil
}
