package engine

import (
	"context"
	"io"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"caseflow/internal/db"
	"caseflow/internal/domain"
	"caseflow/internal/graph"
	"caseflow/internal/migrate"
	"caseflow/internal/repo"
)

const testToken = "test-access-token"

func newTestEngine(t *testing.T) (Engine, *fakeProvider) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	provider := newFakeProvider()
	e := New(conn, provider, charmlog.New(io.Discard))
	e.Now = func() time.Time {
		return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	}
	return e, provider
}

func seedClient(t *testing.T, e Engine) domain.Client {
	t.Helper()
	c, err := e.CreateClient(context.Background(), ClientCreateOptions{
		FirstName:       "Alice",
		LastName:        "Nguyen",
		Email:           "alice@example.org",
		Region:          "WINDSOR",
		ReferenceNumber: 1001,
		DOB:             "1990-03-15",
		ReferralDate:    "2024-01-01",
		ActorID:         "tester",
	})
	require.NoError(t, err)
	return c
}

func seedService(t *testing.T, e Engine, initial, intake, eapWeeks int) domain.Service {
	t.Helper()
	s, err := e.CreateService(context.Background(), ServiceCreateOptions{
		Name:                "Employment Support",
		InitialContactDays:  initial,
		IntakeInterviewDays: intake,
		ActionPlanWeeks:     eapWeeks,
		ActorID:             "tester",
	})
	require.NoError(t, err)
	return s
}

func seedStaff(t *testing.T, e Engine) domain.User {
	t.Helper()
	u := domain.User{
		ID:        "staff-1",
		Name:      "Sam Lee",
		Email:     "sam@example.org",
		Role:      domain.RoleStaff,
		CreatedAt: e.nowString(),
		UpdatedAt: e.nowString(),
	}
	require.NoError(t, e.Repo.UpsertUser(context.Background(), u))
	return u
}

func createCase(t *testing.T, e Engine, clientID, serviceID, startAt string) domain.Case {
	t.Helper()
	c, err := e.CreateCase(context.Background(), CaseCreateOptions{
		ClientID:      clientID,
		CaseManagerID: "staff-1",
		StaffID:       "staff-1",
		ServiceID:     serviceID,
		Region:        "WINDSOR",
		StartAt:       startAt,
		ActorID:       "tester",
	}, testToken)
	require.NoError(t, err)
	return c
}

func TestCreateCaseDerivesAndMirrorsTasks(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 5, 2)
	seedStaff(t, e)

	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")

	require.Len(t, c.Tasks, 3)
	require.Equal(t, "Initial contact", c.Tasks[0].Description)
	require.Equal(t, "2024-01-02T00:00:00Z", c.Tasks[0].DueDate)
	require.Equal(t, "Intake Interview", c.Tasks[1].Description)
	require.Equal(t, "2024-01-06T00:00:00Z", c.Tasks[1].DueDate)
	require.Equal(t, "Employment Action Plan (EAP)", c.Tasks[2].Description)
	require.Equal(t, "2024-01-15T00:00:00Z", c.Tasks[2].DueDate)

	require.Equal(t, 1, provider.callCount("CreateList"))
	require.Equal(t, 3, provider.callCount("AddTodo"))
	require.Equal(t, 3, provider.callCount("AddEvent"))
	for _, task := range c.Tasks {
		require.NotNil(t, task.ListID)
		require.NotNil(t, task.TodoID)
		require.NotNil(t, task.EventID)
		require.Equal(t, *c.Tasks[0].ListID, *task.ListID)
	}

	// one-hour event window, client as sole required attendee
	ev := provider.events[0]
	start, err := time.Parse(timeFormat, ev.Start)
	require.NoError(t, err)
	end, err := time.Parse(timeFormat, ev.End)
	require.NoError(t, err)
	require.Equal(t, time.Hour, end.Sub(start))
	require.Len(t, ev.Attendees, 1)
	require.Equal(t, "alice@example.org", ev.Attendees[0].Email)
}

func TestCreateCaseSingleTaskService(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 0, 0, 2)
	seedStaff(t, e)

	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")

	require.Len(t, c.Tasks, 1)
	require.Equal(t, "Employment Action Plan (EAP)", c.Tasks[0].Description)
	require.Equal(t, 1, provider.callCount("CreateList"))
	require.Equal(t, 1, provider.callCount("AddTodo"))
}

func TestCreateCaseNoTokenFails(t *testing.T) {
	e, _ := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)

	_, err := e.CreateCase(context.Background(), CaseCreateOptions{
		ClientID:  client.ID,
		ServiceID: svc.ID,
		StaffID:   "staff-1",
		Region:    "WINDSOR",
		StartAt:   "2024-01-01",
	}, "")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateCaseMirrorFailureCompensates(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 5, 2)
	seedStaff(t, e)
	provider.failAt["AddTodo"] = 2

	_, err := e.CreateCase(context.Background(), CaseCreateOptions{
		ClientID:      client.ID,
		CaseManagerID: "staff-1",
		StaffID:       "staff-1",
		ServiceID:     svc.ID,
		Region:        "WINDSOR",
		StartAt:       "2024-01-01",
		ActorID:       "tester",
	}, testToken)
	require.Error(t, err)

	// case and tasks survive locally, readable as mirror-pending
	cases, err := e.Repo.ListCases(context.Background(), repo.CaseFilters{ClientID: client.ID})
	require.NoError(t, err)
	require.Len(t, cases, 1)
	tasks, err := e.Repo.ListTasks(context.Background(), repo.TaskFilters{CaseID: cases[0].ID})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		require.Nil(t, task.ListID)
		require.Nil(t, task.TodoID)
		require.Nil(t, task.EventID)
	}

	// compensation deleted the created event and the list
	require.Equal(t, 1, provider.callCount("DeleteEvent"))
	require.Equal(t, 1, provider.callCount("DeleteList"))
}

func TestUpdateCaseClosedAtStampedOnceAndCleared(t *testing.T) {
	e, _ := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	require.Nil(t, c.ClosedAt)

	closed, err := e.UpdateCase(context.Background(), c.ID, CaseUpdateOptions{Status: domain.StatusClosed}, testToken)
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	stamped := *closed.ClosedAt

	again, err := e.UpdateCase(context.Background(), c.ID, CaseUpdateOptions{Status: domain.StatusClosed}, testToken)
	require.NoError(t, err)
	require.NotNil(t, again.ClosedAt)
	require.Equal(t, stamped, *again.ClosedAt)

	reopened, err := e.UpdateCase(context.Background(), c.ID, CaseUpdateOptions{Status: domain.StatusOngoing}, testToken)
	require.NoError(t, err)
	require.Nil(t, reopened.ClosedAt)
}

func TestUpdateCaseTaskCompletionSyncsMirrors(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	require.Len(t, c.Tasks, 1)

	updated, err := e.UpdateCase(context.Background(), c.ID, CaseUpdateOptions{
		Tasks: []TaskCompletionPatch{{ID: c.Tasks[0].ID, IsComplete: true}},
	}, testToken)
	require.NoError(t, err)
	require.True(t, updated.Tasks[0].IsComplete)
	require.NotNil(t, updated.Tasks[0].CompletedAt)
	require.Equal(t, 1, provider.callCount("PatchTodo"))
	require.Equal(t, 1, provider.callCount("PatchEvent"))
}

func TestUpdateCaseUncompleteRestoresEvent(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")

	_, err := e.UpdateCase(context.Background(), c.ID, CaseUpdateOptions{
		Tasks: []TaskCompletionPatch{{ID: c.Tasks[0].ID, IsComplete: true}},
	}, testToken)
	require.NoError(t, err)

	updated, err := e.UpdateCase(context.Background(), c.ID, CaseUpdateOptions{
		Tasks: []TaskCompletionPatch{{ID: c.Tasks[0].ID, IsComplete: false}},
	}, testToken)
	require.NoError(t, err)
	require.False(t, updated.Tasks[0].IsComplete)
	require.Nil(t, updated.Tasks[0].CompletedAt)

	// the event is cancelled on completion and un-cancelled on reversal
	require.Len(t, provider.eventPatches, 2)
	require.True(t, *provider.eventPatches[0].IsCancelled)
	require.False(t, *provider.eventPatches[1].IsCancelled)
}

func TestUpdateCaseSyncFailureDoesNotAbort(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 5, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	require.Len(t, c.Tasks, 2)
	provider.failAt["PatchTodo"] = 1

	updated, err := e.UpdateCase(context.Background(), c.ID, CaseUpdateOptions{
		Tasks: []TaskCompletionPatch{
			{ID: c.Tasks[0].ID, IsComplete: true},
			{ID: c.Tasks[1].ID, IsComplete: true},
		},
	}, testToken)
	require.NoError(t, err)
	for _, task := range updated.Tasks {
		require.True(t, task.IsComplete)
		require.NotNil(t, task.CompletedAt)
	}
	// both patches were attempted despite the first failing
	require.Equal(t, 2, provider.callCount("PatchTodo"))
}

func TestUpdateCaseUnknownTaskRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")

	_, err := e.UpdateCase(context.Background(), c.ID, CaseUpdateOptions{
		Tasks: []TaskCompletionPatch{{ID: "nope", IsComplete: true}},
	}, testToken)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestDeleteCaseResilientToProviderFailures(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 5, 2)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	provider.failAt["DeleteEvent"] = 1
	provider.failAt["DeleteList"] = 1

	require.NoError(t, e.DeleteCase(context.Background(), c.ID, testToken, "tester"))

	_, err := e.Repo.GetCase(context.Background(), c.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
	tasks, err := e.Repo.ListTasks(context.Background(), repo.TaskFilters{CaseID: c.ID})
	require.NoError(t, err)
	require.Empty(t, tasks)
	// every mirror deletion was attempted
	require.Equal(t, 3, provider.callCount("DeleteEvent"))
	require.Equal(t, 1, provider.callCount("DeleteList"))
}

func TestCreateTaskReusesSiblingList(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	require.Equal(t, 1, provider.callCount("CreateList"))

	task, err := e.CreateTask(context.Background(), TaskCreateOptions{
		CaseID:      c.ID,
		Description: "Follow-up call",
		DueDate:     "2024-02-01",
		ActorID:     "tester",
	}, testToken)
	require.NoError(t, err)
	require.Equal(t, 1, provider.callCount("CreateList"), "sibling list must be reused")
	require.Equal(t, *c.Tasks[0].ListID, *task.ListID)
}

func TestCreateTaskFirstMirrorCreatesList(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 0, 0, 0) // no derived tasks, so no list yet
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	require.Empty(t, c.Tasks)
	require.Equal(t, 0, provider.callCount("CreateList"))

	task, err := e.CreateTask(context.Background(), TaskCreateOptions{
		CaseID:      c.ID,
		Description: "Initial outreach",
		DueDate:     "2024-02-01",
		ActorID:     "tester",
	}, testToken)
	require.NoError(t, err)
	require.Equal(t, 1, provider.callCount("CreateList"))
	require.NotNil(t, task.ListID)
	require.NotNil(t, task.TodoID)
	require.NotNil(t, task.EventID)
}

func TestCreateTaskProviderFailureLeavesNoRow(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	provider.failAt["AddEvent"] = 2 // case creation used the first

	_, err := e.CreateTask(context.Background(), TaskCreateOptions{
		CaseID:      c.ID,
		Description: "Doomed task",
		DueDate:     "2024-02-01",
	}, testToken)
	require.Error(t, err)
	tasks, err := e.Repo.ListTasks(context.Background(), repo.TaskFilters{CaseID: c.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 1) // only the derived task
}

func TestUpdateTaskCompleteCancelsEvent(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	done := true

	task, err := e.UpdateTask(context.Background(), c.Tasks[0].ID, TaskUpdateOptions{IsComplete: &done}, testToken)
	require.NoError(t, err)
	require.True(t, task.IsComplete)
	require.NotNil(t, task.CompletedAt)
	require.Nil(t, task.EventID)
	require.Equal(t, 1, provider.callCount("CancelEvent"))
}

func TestUpdateTaskUncompleteRecreatesEvent(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	done := true
	task, err := e.UpdateTask(context.Background(), c.Tasks[0].ID, TaskUpdateOptions{IsComplete: &done}, testToken)
	require.NoError(t, err)
	require.Nil(t, task.EventID)

	undone := false
	desc := "Re-opened contact"
	task, err = e.UpdateTask(context.Background(), task.ID, TaskUpdateOptions{IsComplete: &undone, Description: &desc}, testToken)
	require.NoError(t, err)
	require.False(t, task.IsComplete)
	require.Nil(t, task.CompletedAt)
	require.NotNil(t, task.EventID)
	require.Equal(t, 2, provider.callCount("AddEvent"))
}

func TestDeleteTaskRemovesMirrors(t *testing.T) {
	e, provider := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")

	require.NoError(t, e.DeleteTask(context.Background(), c.Tasks[0].ID, testToken, "tester"))
	require.Equal(t, 1, provider.callCount("DeleteTodo"))
	require.Equal(t, 1, provider.callCount("DeleteEvent"))
	_, err := e.Repo.GetTask(context.Background(), c.Tasks[0].ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestDeleteClientForbiddenWithActiveCase(t *testing.T) {
	e, _ := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")

	err := e.DeleteClient(context.Background(), client.ID, "tester")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = e.UpdateCase(context.Background(), c.ID, CaseUpdateOptions{Status: domain.StatusClosed}, testToken)
	require.NoError(t, err)
	require.NoError(t, e.DeleteClient(context.Background(), client.ID, "tester"))
}

func TestCreateClientDuplicateEmail(t *testing.T) {
	e, _ := newTestEngine(t)
	seedClient(t, e)

	_, err := e.CreateClient(context.Background(), ClientCreateOptions{
		FirstName:    "Bob",
		LastName:     "Marsh",
		Email:        "alice@example.org",
		Region:       "WINDSOR",
		DOB:          "1985-01-01",
		ReferralDate: "2024-01-01",
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestServiceEditDoesNotRewriteExistingTasks(t *testing.T) {
	e, _ := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	c := createCase(t, e, client.ID, svc.ID, "2024-01-01")
	before := c.Tasks[0].DueDate

	ten := 10
	_, err := e.UpdateService(context.Background(), svc.ID, ServiceUpdateOptions{InitialContactDays: &ten})
	require.NoError(t, err)

	task, err := e.Repo.GetTask(context.Background(), c.Tasks[0].ID)
	require.NoError(t, err)
	require.Equal(t, before, task.DueDate)
}

func TestCalendarEventsProjection(t *testing.T) {
	e, _ := newTestEngine(t)
	client := seedClient(t, e)
	svc := seedService(t, e, 1, 0, 0)
	seedStaff(t, e)
	createCase(t, e, client.ID, svc.ID, "2024-01-01")

	events, err := e.CalendarEvents(context.Background(), testToken)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "Initial contact", events[0].Title)
	require.Equal(t, "No location", events[0].Location)
	require.Equal(t, "Unknown organizer", events[0].Organizer)
}

func TestEnsureUserKeepsLocalRole(t *testing.T) {
	e, _ := newTestEngine(t)
	profile := graph.UserProfile{ID: "u-9", Name: "Dana", Email: "dana@example.org"}

	u, err := e.EnsureUser(context.Background(), profile)
	require.NoError(t, err)
	require.Equal(t, domain.RoleStaff, u.Role)

	// role is locally managed; promote directly
	_, err = e.Repo.DB.Exec(`UPDATE users SET role=? WHERE id=?`, domain.RoleManager, u.ID)
	require.NoError(t, err)

	profile.Name = "Dana Q"
	again, err := e.EnsureUser(context.Background(), profile)
	require.NoError(t, err)
	require.Equal(t, "Dana Q", again.Name)
	require.Equal(t, domain.RoleManager, again.Role)
}
