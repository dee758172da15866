package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"caseflow/internal/domain"
	"caseflow/internal/engine"
	"caseflow/internal/repo"
)

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/client",
		Summary:     "List clients",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Client `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListClients(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Client `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/client/{id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		c, err := e.GetClient(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/client",
		Summary:       "Create client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateClient(ctx, engine.ClientCreateOptions{
			FirstName:       input.Body.FirstName,
			LastName:        input.Body.LastName,
			Email:           input.Body.Email,
			Phone:           input.Body.Phone,
			Address:         input.Body.Address,
			Region:          input.Body.Region,
			ReferenceNumber: input.Body.ReferenceNumber,
			DOB:             input.Body.DOB,
			ReferralDate:    input.Body.ReferralDate,
			ActorID:         principal.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-client",
		Method:      http.MethodPatch,
		Path:        "/client/{id}",
		Summary:     "Update client",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateClient(ctx, input.ID, engine.ClientUpdateOptions{
			FirstName:       input.Body.FirstName,
			LastName:        input.Body.LastName,
			Email:           input.Body.Email,
			Phone:           input.Body.Phone,
			Address:         input.Body.Address,
			Region:          input.Body.Region,
			ReferenceNumber: input.Body.ReferenceNumber,
			DOB:             input.Body.DOB,
			ReferralDate:    input.Body.ReferralDate,
			ActorID:         principal.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-client",
		Method:      http.MethodDelete,
		Path:        "/client/{id}",
		Summary:     "Delete client",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body messageBody `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteClient(ctx, input.ID, principal.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body messageBody `json:"body"`
		}{Body: messageBody{Message: "client deleted"}}, nil
	})
}

func registerServices(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-services",
		Method:      http.MethodGet,
		Path:        "/service",
		Summary:     "List services",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Service `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListServices(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Service `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-service",
		Method:      http.MethodGet,
		Path:        "/service/{id}",
		Summary:     "Get service",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Service `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		s, err := e.GetService(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Service `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-service",
		Method:        http.MethodPost,
		Path:          "/service",
		Summary:       "Create service",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateServiceRequest `json:"body"`
	}) (*struct {
		Body domain.Service `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateService(ctx, engine.ServiceCreateOptions{
			Name:                input.Body.Name,
			InitialContactDays:  input.Body.InitialContactDays,
			IntakeInterviewDays: input.Body.IntakeInterviewDays,
			ActionPlanWeeks:     input.Body.ActionPlanWeeks,
			MonthlyContact:      input.Body.MonthlyContact,
			MonthlyReports:      input.Body.MonthlyReports,
			ActorID:             principal.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Service `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-service",
		Method:      http.MethodPatch,
		Path:        "/service/{id}",
		Summary:     "Update service",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateServiceRequest `json:"body"`
	}) (*struct {
		Body domain.Service `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateService(ctx, input.ID, engine.ServiceUpdateOptions{
			Name:                input.Body.Name,
			InitialContactDays:  input.Body.InitialContactDays,
			IntakeInterviewDays: input.Body.IntakeInterviewDays,
			ActionPlanWeeks:     input.Body.ActionPlanWeeks,
			MonthlyContact:      input.Body.MonthlyContact,
			MonthlyReports:      input.Body.MonthlyReports,
			ActorID:             principal.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Service `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-service",
		Method:      http.MethodDelete,
		Path:        "/service/{id}",
		Summary:     "Delete service",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body messageBody `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteService(ctx, input.ID, principal.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body messageBody `json:"body"`
		}{Body: messageBody{Message: "service deleted"}}, nil
	})
}

func registerCases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/case",
		Summary:     "List cases",
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		ClientID string `query:"client_id"`
	}) (*struct {
		Body []domain.Case `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListCases(ctx, repo.CaseFilters{Status: input.Status, ClientID: input.ClientID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Case `json:"body"`
		}{Body: items}, nil
	})

	// Registered before /case/{id} so chi does not swallow it as an id.
	huma.Register(api, huma.Operation{
		OperationID: "case-calendar-events",
		Method:      http.MethodGet,
		Path:        "/case/events",
		Summary:     "List the signed-in user's calendar events",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.CalendarEvent `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.CalendarEvents(ctx, principal.ProviderToken)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.CalendarEvent `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case",
		Method:      http.MethodGet,
		Path:        "/case/{id}",
		Summary:     "Get case with client, service and tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		c, err := e.GetCase(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-case",
		Method:        http.MethodPost,
		Path:          "/case",
		Summary:       "Create case and derive its initial tasks",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateCaseRequest `json:"body"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCase(ctx, engine.CaseCreateOptions{
			ClientID:      input.Body.ClientID,
			CaseManagerID: input.Body.CaseManagerID,
			StaffID:       input.Body.StaffID,
			ServiceID:     input.Body.ServiceID,
			Region:        input.Body.Region,
			Status:        input.Body.Status,
			StartAt:       input.Body.StartAt,
			ActorID:       principal.UserID,
		}, principal.ProviderToken)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-case",
		Method:      http.MethodPatch,
		Path:        "/case/{id}",
		Summary:     "Update case status and task completion",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateCaseRequest `json:"body"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CaseUpdateOptions{Status: input.Body.Status, ActorID: principal.UserID}
		for _, t := range input.Body.Tasks {
			opts.Tasks = append(opts.Tasks, engine.TaskCompletionPatch{ID: t.ID, IsComplete: t.IsComplete})
		}
		c, err := e.UpdateCase(ctx, input.ID, opts, principal.ProviderToken)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-case",
		Method:      http.MethodDelete,
		Path:        "/case/{id}",
		Summary:     "Delete case, its tasks and provider mirrors",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body messageBody `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteCase(ctx, input.ID, principal.ProviderToken, principal.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body messageBody `json:"body"`
		}{Body: messageBody{Message: "case deleted"}}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/task",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		CaseID string `query:"case_id"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTasks(ctx, repo.TaskFilters{CaseID: input.CaseID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks-by-user",
		Method:      http.MethodGet,
		Path:        "/task/user/{id}",
		Summary:     "List tasks assigned to a user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTasksByUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/task/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/task",
		Summary:       "Create task and mirror it to the provider",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			CaseID:      input.Body.CaseID,
			StaffID:     input.Body.StaffID,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
			ActorID:     principal.UserID,
		}, principal.ProviderToken)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/task/{id}",
		Summary:     "Update task and its provider mirrors",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTask(ctx, input.ID, engine.TaskUpdateOptions{
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
			IsComplete:  input.Body.IsComplete,
			ActorID:     principal.UserID,
		}, principal.ProviderToken)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/task/{id}",
		Summary:     "Delete task and its provider mirrors",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body messageBody `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, input.ID, principal.ProviderToken, principal.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body messageBody `json:"body"`
		}{Body: messageBody{Message: "task deleted"}}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/user",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		if _, authErr := requirePrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: items}, nil
	})
}
