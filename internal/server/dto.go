package server

import (
	"caseflow/internal/domain"
)

type CreateClientRequest struct {
	FirstName       string `json:"first_name" minLength:"1"`
	LastName        string `json:"last_name" minLength:"1"`
	Email           string `json:"email" format:"email"`
	Phone           string `json:"phone,omitempty"`
	Address         string `json:"address,omitempty"`
	Region          string `json:"region" enum:"WINDSOR,LEAMINGTON,CHATHAM,SARNIA"`
	ReferenceNumber int    `json:"reference_number"`
	DOB             string `json:"dob" format:"date-time"`
	ReferralDate    string `json:"referral_date" format:"date-time"`
}

type UpdateClientRequest struct {
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	Email           *string `json:"email,omitempty" format:"email"`
	Phone           *string `json:"phone,omitempty"`
	Address         *string `json:"address,omitempty"`
	Region          *string `json:"region,omitempty" enum:"WINDSOR,LEAMINGTON,CHATHAM,SARNIA"`
	ReferenceNumber *int    `json:"reference_number,omitempty"`
	DOB             *string `json:"dob,omitempty" format:"date-time"`
	ReferralDate    *string `json:"referral_date,omitempty" format:"date-time"`
}

type CreateServiceRequest struct {
	Name                string `json:"name" minLength:"1"`
	InitialContactDays  int    `json:"initial_contact_days" minimum:"0"`
	IntakeInterviewDays int    `json:"intake_interview_days" minimum:"0"`
	ActionPlanWeeks     int    `json:"action_plan_weeks" minimum:"0"`
	MonthlyContact      bool   `json:"monthly_contact,omitempty"`
	MonthlyReports      bool   `json:"monthly_reports,omitempty"`
}

type UpdateServiceRequest struct {
	Name                *string `json:"name,omitempty"`
	InitialContactDays  *int    `json:"initial_contact_days,omitempty" minimum:"0"`
	IntakeInterviewDays *int    `json:"intake_interview_days,omitempty" minimum:"0"`
	ActionPlanWeeks     *int    `json:"action_plan_weeks,omitempty" minimum:"0"`
	MonthlyContact      *bool   `json:"monthly_contact,omitempty"`
	MonthlyReports      *bool   `json:"monthly_reports,omitempty"`
}

type CreateCaseRequest struct {
	ClientID      string `json:"client_id" minLength:"1"`
	CaseManagerID string `json:"case_manager_id" minLength:"1"`
	StaffID       string `json:"staff_id" minLength:"1"`
	ServiceID     string `json:"service_id" minLength:"1"`
	Region        string `json:"region" enum:"WINDSOR,LEAMINGTON,CHATHAM,SARNIA"`
	Status        string `json:"status,omitempty"`
	StartAt       string `json:"start_at" format:"date-time"`
}

type UpdateCaseRequest struct {
	Status string `json:"status,omitempty"`
	Tasks  []struct {
		ID         string `json:"id"`
		IsComplete bool   `json:"is_complete"`
	} `json:"tasks,omitempty"`
}

type CreateTaskRequest struct {
	CaseID      string `json:"case_id" minLength:"1"`
	StaffID     string `json:"staff_id,omitempty"`
	Description string `json:"description" minLength:"1"`
	DueDate     string `json:"due_date" format:"date-time"`
}

type UpdateTaskRequest struct {
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	IsComplete  *bool   `json:"is_complete,omitempty"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			ActorID:    e.ActorID,
			Payload:    e.Payload,
		})
	}
	return res
}
