package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/db"
)

func seedStages(t *testing.T, f *fixture) map[string]db.PipelineStage {
	t.Helper()
	stages, err := f.svc.SeedStages(f.as(f.admin))
	require.NoError(t, err)
	byName := make(map[string]db.PipelineStage, len(stages))
	for _, st := range stages {
		byName[st.Name] = st
	}
	return byName
}

func TestSeedStages(t *testing.T) {
	f := setup(t)

	_, err := f.svc.SeedStages(f.as(f.alice))
	assertKind(t, err, apperr.KindForbidden)

	stages, err := f.svc.SeedStages(f.as(f.admin))
	require.NoError(t, err)
	require.Len(t, stages, 6)
	assert.Equal(t, "Lead", stages[0].Name)
	assert.True(t, stages[4].IsWon)
	assert.True(t, stages[5].IsLost)

	again, err := f.svc.SeedStages(f.as(f.admin))
	require.NoError(t, err)
	assert.Len(t, again, 6)

	extra, err := f.svc.CreateStage(f.as(f.admin), StageInput{Name: "Nurture"})
	require.NoError(t, err)
	assert.Equal(t, 6, extra.Position)
}

func TestReorderStages(t *testing.T) {
	f := setup(t)
	stages, err := f.svc.SeedStages(f.as(f.admin))
	require.NoError(t, err)

	ids := make([]string, 0, len(stages))
	for i := len(stages) - 1; i >= 0; i-- {
		ids = append(ids, stages[i].ID)
	}
	reordered, err := f.svc.ReorderStages(f.as(f.admin), ids)
	require.NoError(t, err)
	assert.Equal(t, "Lost", reordered[0].Name)
	assert.Equal(t, "Lead", reordered[5].Name)

	_, err = f.svc.ReorderStages(f.as(f.admin), ids[:3])
	assertKind(t, err, apperr.KindValidation)
}

func TestDeleteStage_RefusedWhileOccupied(t *testing.T) {
	f := setup(t)
	stages := seedStages(t, f)
	p, err := f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, stages["Lead"].ID, p.StageID)

	err = f.svc.DeleteStage(f.as(f.admin), stages["Lead"].ID)
	assertKind(t, err, apperr.KindConflict)

	require.NoError(t, f.svc.DeleteStage(f.as(f.admin), stages["Lost"].ID))
}

func TestCreateProspect_NeedsStages(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "Acme"})
	assertKind(t, err, apperr.KindValidation)

	seedStages(t, f)
	_, err = f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "Acme", Email: "not-an-email"})
	assertKind(t, err, apperr.KindValidation)

	p, err := f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "Acme", Email: "ceo@acme.test", Value: 50000})
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, p.OwnerID)
	assert.Len(t, f.activities(t, db.ActionProspectCreated), 1)
}

func TestUpdateProspect_OwnerOrAdmin(t *testing.T) {
	f := setup(t)
	seedStages(t, f)
	p, err := f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "Acme", Company: "Acme Inc"})
	require.NoError(t, err)

	_, err = f.svc.UpdateProspect(f.as(f.bob), p.ID, ProspectUpdate{Notes: ptr("mine")})
	assertKind(t, err, apperr.KindForbidden)

	got, err := f.svc.UpdateProspect(f.as(f.admin), p.ID, ProspectUpdate{Notes: ptr("warm lead"), Tags: &[]string{"inbound"}})
	require.NoError(t, err)
	assert.Equal(t, "warm lead", got.Notes)
	assert.Equal(t, "Acme Inc", got.Company)
	assert.Equal(t, []string{"inbound"}, got.Tags)

	_, err = f.svc.UpdateProspect(f.as(f.alice), p.ID, ProspectUpdate{Email: ptr("nope")})
	assertKind(t, err, apperr.KindValidation)

	assert.Error(t, f.svc.DeleteProspect(f.as(f.bob), p.ID))
	require.NoError(t, f.svc.DeleteProspect(f.as(f.alice), p.ID))
	_, err = f.svc.GetProspect(f.as(f.alice), p.ID)
	assert.EqualError(t, err, "Prospect not found")
}

func TestMoveProspect(t *testing.T) {
	f := setup(t)
	stages := seedStages(t, f)
	p, err := f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "Acme"})
	require.NoError(t, err)

	moved, err := f.svc.MoveProspect(f.as(f.admin), p.ID, stages["Contacted"].ID)
	require.NoError(t, err)
	assert.Equal(t, stages["Contacted"].ID, moved.StageID)

	notes := f.notifications(t, f.alice, db.NotifyProspectStage)
	require.Len(t, notes, 1)
	assert.Equal(t, p.ID, notes[0].Metadata.ProspectID)

	acts := f.activities(t, db.ActionProspectStageChanged)
	require.Len(t, acts, 1)
	assert.Equal(t, "Lead", acts[0].Metadata.PreviousValue)
	assert.Equal(t, "Contacted", acts[0].Metadata.NewValue)

	// Same stage is a no-op.
	_, err = f.svc.MoveProspect(f.as(f.admin), p.ID, stages["Contacted"].ID)
	require.NoError(t, err)
	assert.Len(t, f.activities(t, db.ActionProspectStageChanged), 1)

	// Owners moving their own prospect are not notified.
	_, err = f.svc.MoveProspect(f.as(f.alice), p.ID, stages["Qualified"].ID)
	require.NoError(t, err)
	assert.Len(t, f.notifications(t, f.alice, db.NotifyProspectStage), 1)

	_, err = f.svc.MoveProspect(f.as(f.bob), p.ID, stages["Won"].ID)
	assertKind(t, err, apperr.KindForbidden)

	_, err = f.svc.MoveProspect(f.as(f.alice), p.ID, "missing")
	assert.EqualError(t, err, "Stage not found")
}

func TestMoveProspect_RunsStageAutomations(t *testing.T) {
	f := setup(t)
	f.svc.cfg.AutomationProjectID = f.project.ID
	stages := seedStages(t, f)
	qualified := stages["Qualified"].ID
	admin := f.as(f.admin)

	tmpl, err := f.svc.CreateTemplate(admin, TemplateInput{
		Name:    "Intro",
		Subject: "Hello {{company}}",
		Body:    "Hi {{first_name}},\n\nThanks for your time. {{sender_name}}",
	})
	require.NoError(t, err)
	for _, in := range []AutomationInput{
		{Name: "Send intro", StageID: qualified, Action: db.AutomationSendEmail, TemplateID: tmpl.ID},
		{Name: "Book call", StageID: qualified, Action: db.AutomationCreateTask, TaskTitle: "Call {{name}}"},
		{Name: "Heads up", StageID: qualified, Action: db.AutomationNotifyOwner},
		{Name: "Disabled", StageID: qualified, Action: db.AutomationNotifyOwner, Enabled: ptr(false)},
	} {
		_, err := f.svc.CreateAutomation(admin, in)
		require.NoError(t, err)
	}

	p, err := f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "Grace Hopper", Company: "Navy", Email: "grace@navy.test"})
	require.NoError(t, err)

	_, err = f.svc.MoveProspect(f.as(f.alice), p.ID, qualified)
	require.NoError(t, err)

	sent := f.mail.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "grace@navy.test", sent[0].To)
	assert.Equal(t, "Hello Navy", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "<p>Hi Grace,</p>")
	assert.Contains(t, sent[0].HTML, "Alice")

	tasks, err := f.db.ListTasks(context.Background(), db.TaskFilter{ProjectID: f.project.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call Grace Hopper", tasks[0].Title)
	assert.Equal(t, []string{f.alice.ID}, tasks[0].AssigneeIDs)

	assert.Len(t, f.notifications(t, f.alice, db.NotifyAutomation), 1)
	assert.Len(t, f.activities(t, db.ActionAutomationRan), 3)
	assert.Len(t, f.activities(t, db.ActionEmailSent), 1)

	got, err := f.db.GetProspect(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastContactedAt)
}

func TestMoveProspect_FailedAutomationIsSkipped(t *testing.T) {
	f := setup(t)
	stages := seedStages(t, f)
	admin := f.as(f.admin)

	// No automation project is configured, so create_task fails.
	_, err := f.svc.CreateAutomation(admin, AutomationInput{
		Name: "Book call", StageID: stages["Proposal"].ID, Action: db.AutomationCreateTask, TaskTitle: "Call",
	})
	require.NoError(t, err)
	_, err = f.svc.CreateAutomation(admin, AutomationInput{
		Name: "Heads up", StageID: stages["Proposal"].ID, Action: db.AutomationNotifyOwner,
	})
	require.NoError(t, err)

	p, err := f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "Acme"})
	require.NoError(t, err)
	moved, err := f.svc.MoveProspect(f.as(f.alice), p.ID, stages["Proposal"].ID)
	require.NoError(t, err)
	assert.Equal(t, stages["Proposal"].ID, moved.StageID)

	assert.Len(t, f.activities(t, db.ActionAutomationRan), 1)
	assert.Len(t, f.notifications(t, f.alice, db.NotifyAutomation), 1)
}

func TestAutomations_Validation(t *testing.T) {
	f := setup(t)
	stages := seedStages(t, f)
	admin := f.as(f.admin)

	_, err := f.svc.CreateAutomation(admin, AutomationInput{Name: "x", StageID: stages["Lead"].ID, Action: db.AutomationSendEmail})
	assertKind(t, err, apperr.KindValidation)

	_, err = f.svc.CreateAutomation(admin, AutomationInput{Name: "x", StageID: stages["Lead"].ID, Action: db.AutomationSendEmail, TemplateID: "missing"})
	assert.EqualError(t, err, "Template not found")

	_, err = f.svc.CreateAutomation(f.as(f.alice), AutomationInput{Name: "x", StageID: stages["Lead"].ID, Action: db.AutomationNotifyOwner})
	assertKind(t, err, apperr.KindForbidden)

	a, err := f.svc.CreateAutomation(admin, AutomationInput{Name: "x", StageID: stages["Lead"].ID, Action: db.AutomationNotifyOwner})
	require.NoError(t, err)
	assert.True(t, a.Enabled)

	a, err = f.svc.UpdateAutomation(admin, a.ID, AutomationInput{Name: "y", StageID: stages["Won"].ID, Action: db.AutomationNotifyOwner, Enabled: ptr(false)})
	require.NoError(t, err)
	assert.False(t, a.Enabled)
	assert.Equal(t, stages["Won"].ID, a.StageID)

	require.NoError(t, f.svc.DeleteAutomation(admin, a.ID))
	assert.EqualError(t, f.svc.DeleteAutomation(admin, a.ID), "Automation not found")
}

func TestSendTemplate(t *testing.T) {
	f := setup(t)
	seedStages(t, f)
	tmpl, err := f.svc.CreateTemplate(f.as(f.admin), TemplateInput{
		Name:    "Follow up",
		Subject: "About {{company}}",
		Body:    "Hello <b>{{name}}</b>",
	})
	require.NoError(t, err)
	p, err := f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "Tom <script>", Company: "Acme", Email: "tom@acme.test"})
	require.NoError(t, err)

	preview, err := f.svc.PreviewTemplate(f.as(f.alice), tmpl.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "About Acme", preview.Subject)
	assert.Contains(t, preview.HTML, "<b>Tom &lt;script&gt;</b>")
	assert.Empty(t, f.mail.messages())

	msg, err := f.svc.SendTemplate(f.as(f.alice), tmpl.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, preview, msg)
	assert.Len(t, f.mail.messages(), 1)
	assert.Len(t, f.activities(t, db.ActionEmailSent), 1)

	f.mail.err = errors.New("smtp down")
	_, err = f.svc.SendTemplate(f.as(f.alice), tmpl.ID, p.ID)
	require.Error(t, err)
	_, isApp := apperr.As(err)
	assert.False(t, isApp, "a provider failure is a downstream error")
	assert.Len(t, f.activities(t, db.ActionEmailSent), 1)

	silent, err := f.svc.CreateProspect(f.as(f.alice), ProspectInput{Name: "No Email"})
	require.NoError(t, err)
	_, err = f.svc.SendTemplate(f.as(f.alice), tmpl.ID, silent.ID)
	assertKind(t, err, apperr.KindValidation)
}

func TestTemplates_AdminManaged(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateTemplate(f.as(f.alice), TemplateInput{Name: "x", Subject: "x", Body: "x"})
	assertKind(t, err, apperr.KindForbidden)

	tmpl, err := f.svc.CreateTemplate(f.as(f.admin), TemplateInput{Name: "Intro", Subject: "Hi", Body: "Hello", Category: "outreach"})
	require.NoError(t, err)

	list, err := f.svc.ListTemplates(f.as(f.alice), "outreach")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.ListTemplates(f.as(f.alice), "billing")
	require.NoError(t, err)
	assert.Empty(t, list)

	tmpl, err = f.svc.UpdateTemplate(f.as(f.admin), tmpl.ID, TemplateInput{Name: "Intro v2", Subject: "Hi", Body: "Hello again"})
	require.NoError(t, err)
	assert.Equal(t, "Intro v2", tmpl.Name)

	require.NoError(t, f.svc.DeleteTemplate(f.as(f.admin), tmpl.ID))
	_, err = f.svc.GetTemplate(f.as(f.alice), tmpl.ID)
	assert.EqualError(t, err, "Template not found")
}
