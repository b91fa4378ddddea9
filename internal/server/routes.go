package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"creetonbiz/internal/domain"
	"creetonbiz/internal/engine"
)

func registerIdeas(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "generate-idea",
		Method:      http.MethodPost,
		Path:        "/ideas/generate",
		Summary:     "Generate business idea",
		Errors:      []int{http.StatusBadRequest, http.StatusPaymentRequired, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body ProfileRequest `json:"body"`
	}) (*struct {
		Body IdeaResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		idea, err := e.GenerateIdea(ctx, userID, input.Body.domain())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IdeaResponse `json:"body"`
		}{Body: ideaResponse(idea)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ideas",
		Method:      http.MethodGet,
		Path:        "/ideas",
		Summary:     "List ideas",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []IdeaResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListIdeas(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []IdeaResponse `json:"body"`
		}{Body: mapIdeas(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-idea",
		Method:      http.MethodDelete,
		Path:        "/ideas/{idea_id}",
		Summary:     "Delete idea",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		IdeaID string `path:"idea_id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteIdea(ctx, userID, input.IdeaID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "deleted"}}, nil
	})
}

func registerProjects(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, userID, engine.ProjectCreateOptions{
			Title:     input.Body.Title,
			Sector:    input.Body.Sector,
			Objective: input.Body.Objective,
			Skills:    input.Body.Skills,
			IdeaID:    input.Body.IdeaID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListProjects(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.GetProject(ctx, userID, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Rename project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      RenameProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.RenameProject(ctx, userID, input.ProjectID, input.Body.Title)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProject(ctx, userID, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "deleted"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-landing",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/publish",
		Summary:     "Publish landing page",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body PublishResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		url, err := e.PublishLanding(ctx, userID, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PublishResponse `json:"body"`
		}{Body: PublishResponse{PublicURL: url}}, nil
	})
}

func registerPremium(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate-premium",
		Method:        http.MethodPost,
		Path:          "/premium/{kind}",
		Summary:       "Generate premium deliverable",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusPaymentRequired, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Kind      string         `path:"kind" enum:"offer,model,brand,landing,marketing,plan"`
		ProjectID string         `query:"project_id" required:"true"`
		Body      ProfileRequest `json:"body"`
	}) (*struct {
		Body DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		kind, err := domain.ParseDeliverableKind(input.Kind)
		if err != nil {
			return nil, handleError(err)
		}
		d, err := e.GeneratePremium(ctx, userID, kind, input.ProjectID, input.Body.domain())
		if err != nil {
			return nil, handleError(err)
		}
		var content map[string]any
		_ = json.Unmarshal([]byte(d.ContentJSON), &content)
		return &struct {
			Body DeliverableResponse `json:"body"`
		}{Body: deliverableResponse(d, content)}, nil
	})
}

func registerDeliverables(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-deliverables",
		Method:      http.MethodGet,
		Path:        "/deliverables",
		Summary:     "List deliverables",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		Kind      string `query:"kind"`
	}) (*struct {
		Body []DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListDeliverables(ctx, userID, input.ProjectID, domain.DeliverableKind(input.Kind))
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]DeliverableResponse, 0, len(items))
		for _, d := range items {
			var content map[string]any
			_ = json.Unmarshal([]byte(d.ContentJSON), &content)
			out = append(out, deliverableResponse(d, content))
		}
		return &struct {
			Body []DeliverableResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-deliverable",
		Method:      http.MethodGet,
		Path:        "/deliverables/{deliverable_id}",
		Summary:     "Get deliverable",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		DeliverableID string `path:"deliverable_id"`
	}) (*struct {
		Body DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.GetDeliverable(ctx, userID, input.DeliverableID)
		if err != nil {
			return nil, handleError(err)
		}
		var content map[string]any
		_ = json.Unmarshal([]byte(d.ContentJSON), &content)
		return &struct {
			Body DeliverableResponse `json:"body"`
		}{Body: deliverableResponse(d, content)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "download-deliverable",
		Method:      http.MethodGet,
		Path:        "/deliverables/{deliverable_id}/download",
		Summary:     "Download deliverable file",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		DeliverableID string `path:"deliverable_id"`
		Format        string `query:"format"`
	}) (*huma.StreamResponse, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		filename, contentType, body, err := e.ExportDeliverable(ctx, userID, input.DeliverableID, input.Format)
		if err != nil {
			return nil, handleError(err)
		}
		return &huma.StreamResponse{
			Body: func(hctx huma.Context) {
				hctx.SetHeader("Content-Type", contentType)
				hctx.SetHeader("Content-Disposition", `attachment; filename="`+filename+`"`)
				hctx.BodyWriter().Write(body)
			},
		}, nil
	})
}

func registerBilling(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-checkout-session",
		Method:        http.MethodPost,
		Path:          "/billing/checkout",
		Summary:       "Start checkout",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CheckoutRequest `json:"body"`
	}) (*struct {
		Body CheckoutResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		base := e.Config.Frontend.BaseURL + "/premium"
		if input.Body.ReturnURL != "" {
			base = input.Body.ReturnURL
		}
		successURL := base + "?success=1&session_id={CHECKOUT_SESSION_ID}"
		cancelURL := base + "?canceled=1"
		res, err := e.StartCheckout(ctx, userID, input.Body.Pack, successURL, cancelURL)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CheckoutResponse `json:"body"`
		}{Body: CheckoutResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-checkout-session",
		Method:      http.MethodPost,
		Path:        "/billing/verify-checkout-session",
		Summary:     "Confirm checkout session",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body VerifyCheckoutRequest `json:"body"`
	}) (*struct {
		Body VerifyCheckoutResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, credited, err := e.VerifyCheckout(ctx, userID, input.Body.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VerifyCheckoutResponse `json:"body"`
		}{Body: VerifyCheckoutResponse{Credited: credited, User: userResponse(u)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "billing-portal",
		Method:      http.MethodPost,
		Path:        "/billing/portal",
		Summary:     "Billing portal URL",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PortalResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		url, err := e.BillingPortalURL(ctx, userID, "")
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PortalResponse `json:"body"`
		}{Body: PortalResponse{URL: url}}, nil
	})
}
