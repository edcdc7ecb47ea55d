package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// TeamMember is a user with the number of open tasks assigned to them.
type TeamMember struct {
	User
	OpenTasks int `json:"openTasks"`
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	Color       string        `json:"color"`
	MemberIDs   []string      `json:"memberIds"`
	CreatedBy   string        `json:"createdBy"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusInReview   TaskStatus = "in_review"
	StatusDone       TaskStatus = "done"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Visibility string

const (
	VisibilityGeneral Visibility = "general"
	VisibilityPrivate Visibility = "private"
)

type Subtask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	ProjectID      string     `json:"projectId"`
	AssigneeIDs    []string   `json:"assigneeIds"`
	AssignerID     string     `json:"assignerId"`
	Visibility     Visibility `json:"visibility"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	Subtasks       []Subtask  `json:"subtasks"`
	TotalTimeSpent int64      `json:"totalTimeSpent"`
	DailyBoardID   *string    `json:"dailyBoardId,omitempty"`
	CustomBoardID  *string    `json:"customBoardId,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// IsAssignee reports whether userID is currently assigned to the task.
func (t *Task) IsAssignee(userID string) bool {
	for _, id := range t.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type DailyBoard struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type CustomBoard struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	OwnerID     string    `json:"ownerId"`
	MemberIDs   []string  `json:"memberIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type StickyNote struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	ZIndex    int       `json:"zIndex"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type NotificationType string

const (
	NotifyTaskAssigned  NotificationType = "task_assigned"
	NotifyTaskCompleted NotificationType = "task_completed"
	NotifyTaskStatus    NotificationType = "task_status"
	NotifyTimeLogged    NotificationType = "time_logged"
	NotifyProspectStage NotificationType = "prospect_stage"
	NotifyAutomation    NotificationType = "automation"
	NotifyInvitation    NotificationType = "invitation"
	NotifyMention       NotificationType = "mention"
)

type NotificationMeta struct {
	TaskID     string `json:"taskId,omitempty"`
	ProjectID  string `json:"projectId,omitempty"`
	UserID     string `json:"userId,omitempty"`
	ProspectID string `json:"prospectId,omitempty"`
}

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipientId"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Metadata    NotificationMeta `json:"metadata"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type ActivityAction string

const (
	ActionTaskCreated          ActivityAction = "task_created"
	ActionTaskUpdated          ActivityAction = "task_updated"
	ActionTaskAssigned         ActivityAction = "task_assigned"
	ActionTaskCompleted        ActivityAction = "task_completed"
	ActionStatusChanged        ActivityAction = "status_changed"
	ActionTaskDeleted          ActivityAction = "task_deleted"
	ActionTimeLogged           ActivityAction = "time_logged"
	ActionProjectCreated       ActivityAction = "project_created"
	ActionProjectUpdated       ActivityAction = "project_updated"
	ActionProjectDeleted       ActivityAction = "project_deleted"
	ActionProspectCreated      ActivityAction = "prospect_created"
	ActionProspectStageChanged ActivityAction = "prospect_stage_changed"
	ActionEmailSent            ActivityAction = "email_sent"
	ActionBoardTaskAdded       ActivityAction = "board_task_added"
	ActionAutomationRan        ActivityAction = "automation_ran"
)

type ActivityMeta struct {
	TaskID        string `json:"taskId,omitempty"`
	ProspectID    string `json:"prospectId,omitempty"`
	PreviousValue string `json:"previousValue,omitempty"`
	NewValue      string `json:"newValue,omitempty"`
	Count         int    `json:"count,omitempty"`
}

type Activity struct {
	ID          string         `json:"id"`
	ActorID     string         `json:"actorId"`
	ProjectID   string         `json:"projectId,omitempty"`
	Action      ActivityAction `json:"action"`
	Description string         `json:"description"`
	Metadata    ActivityMeta   `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type TimeLog struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	TaskID    string     `json:"taskId"`
	ProjectID string     `json:"projectId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	// Duration is whole seconds; zero while the log is open.
	Duration  int64     `json:"duration"`
	Manual    bool      `json:"manual"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// DailyTotal is the seconds a user logged on one calendar day (UTC).
type DailyTotal struct {
	UserID  string `json:"userId"`
	Date    string `json:"date"`
	Seconds int64  `json:"seconds"`
}

type PipelineStage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	Color     string    `json:"color"`
	IsWon     bool      `json:"isWon"`
	IsLost    bool      `json:"isLost"`
	CreatedAt time.Time `json:"createdAt"`
}

type Prospect struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	StageID string `json:"stageId"`
	// Value is the expected deal size in cents.
	Value           int64      `json:"value"`
	Notes           string     `json:"notes"`
	Tags            []string   `json:"tags"`
	OwnerID         string     `json:"ownerId"`
	LastContactedAt *time.Time `json:"lastContactedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type EmailTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AutomationAction string

const (
	AutomationSendEmail   AutomationAction = "send_email"
	AutomationCreateTask  AutomationAction = "create_task"
	AutomationNotifyOwner AutomationAction = "notify_owner"
)

const TriggerStageEntered = "stage_entered"

type Automation struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Trigger    string           `json:"trigger"`
	StageID    string           `json:"stageId"`
	Action     AutomationAction `json:"action"`
	TemplateID string           `json:"templateId,omitempty"`
	TaskTitle  string           `json:"taskTitle,omitempty"`
	Enabled    bool             `json:"enabled"`
	CreatedBy  string           `json:"createdBy"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
)

type Invitation struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	Role      Role             `json:"role"`
	Token     string           `json:"-"`
	InvitedBy string           `json:"invitedBy"`
	Status    InvitationStatus `json:"status"`
	ExpiresAt time.Time        `json:"expiresAt"`
	CreatedAt time.Time        `json:"createdAt"`
}

type OutboxKind string

const (
	OutboxNotification OutboxKind = "notification"
	OutboxActivity     OutboxKind = "activity"
)

type OutboxEvent struct {
	ID          string
	Kind        OutboxKind
	Payload     []byte
	Status      string
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// nonNil keeps JSON columns as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
