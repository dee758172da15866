package domain

const (
	StatusOpen    = "OPEN"
	StatusOngoing = "ONGOING"
	StatusClosed  = "CLOSED"
)

const (
	RoleAdmin   = "ADMIN"
	RoleStaff   = "STAFF"
	RoleManager = "MANAGER"
)

// ValidStatus reports whether s is one of the case statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusOngoing, StatusClosed:
		return true
	}
	return false
}

type Client struct {
	ID              string `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email" format:"email"`
	Phone           string `json:"phone,omitempty"`
	Address         string `json:"address,omitempty"`
	Region          string `json:"region" enum:"WINDSOR,LEAMINGTON,CHATHAM,SARNIA"`
	ReferenceNumber int    `json:"reference_number"`
	DOB             string `json:"dob" format:"date-time"`
	ReferralDate    string `json:"referral_date" format:"date-time"`
	CaseCount       int    `json:"case_count,omitempty"`
	CreatedAt       string `json:"created_at" format:"date-time"`
	UpdatedAt       string `json:"updated_at" format:"date-time"`
}

// Service is a case-type template. Its offsets are consumed once, at case
// creation, to derive the initial task list; editing a service never touches
// tasks of existing cases.
type Service struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	InitialContactDays  int    `json:"initial_contact_days"`
	IntakeInterviewDays int    `json:"intake_interview_days"`
	ActionPlanWeeks     int    `json:"action_plan_weeks"`
	MonthlyContact      bool   `json:"monthly_contact"`
	MonthlyReports      bool   `json:"monthly_reports"`
	CaseCount           int    `json:"case_count,omitempty"`
	CreatedAt           string `json:"created_at" format:"date-time"`
	UpdatedAt           string `json:"updated_at" format:"date-time"`
}

type Case struct {
	ID            string  `json:"id"`
	ClientID      string  `json:"client_id"`
	CaseManagerID string  `json:"case_manager_id"`
	StaffID       string  `json:"staff_id"`
	ServiceID     string  `json:"service_id"`
	Region        string  `json:"region" enum:"WINDSOR,LEAMINGTON,CHATHAM,SARNIA"`
	Status        string  `json:"status" enum:"OPEN,ONGOING,CLOSED"`
	StartAt       string  `json:"start_at" format:"date-time"`
	ClosedAt      *string `json:"closed_at,omitempty" format:"date-time"`
	TaskCount     int     `json:"task_count,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`

	Client  *Client  `json:"client,omitempty"`
	Service *Service `json:"service,omitempty"`
	Staff   *User    `json:"staff,omitempty"`
	Tasks   []Task   `json:"tasks,omitempty"`
}

// Task mirrors into the provider as a to-do item plus a calendar event.
// ListID/TodoID/EventID hold the provider's opaque identifiers; nil means not
// yet mirrored (or mirror deleted). TodoID is set iff ListID is set, and
// CompletedAt is set iff IsComplete.
type Task struct {
	ID          string  `json:"id"`
	CaseID      string  `json:"case_id"`
	StaffID     string  `json:"staff_id"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date" format:"date-time"`
	IsComplete  bool    `json:"is_complete"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	ListID      *string `json:"list_id,omitempty"`
	TodoID      *string `json:"todo_id,omitempty"`
	EventID     *string `json:"event_id,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email" format:"email"`
	Role      string `json:"role" enum:"ADMIN,STAFF,MANAGER"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
