package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"creetonbiz/internal/domain"
	"creetonbiz/internal/engine"
)

func adminUserResponse(e *engine.Engine, u domain.User) AdminUserResponse {
	return AdminUserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Plan:             u.Plan,
		StartnowCredits:  u.StartnowCredits,
		IsAdmin:          u.IsAdmin,
		StripeCustomerID: u.StripeCustomerID,
		StripeLink:       e.StripeDashboardLink(u),
		CreatedAt:        u.CreatedAt,
	}
}

func registerAdmin(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-users",
		Method:      http.MethodGet,
		Path:        "/admin/users",
		Summary:     "List all users",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []AdminUserResponse `json:"body"`
	}, error) {
		if _, authErr := adminFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		users, err := e.AdminListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]AdminUserResponse, 0, len(users))
		for _, u := range users {
			out = append(out, adminUserResponse(e, u))
		}
		return &struct {
			Body []AdminUserResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-update-user",
		Method:      http.MethodPatch,
		Path:        "/admin/users/{user_id}",
		Summary:     "Update a user's plan, credits or admin flag",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string                `path:"user_id"`
		Body   AdminUserPatchRequest `json:"body"`
	}) (*struct {
		Body AdminUserResponse `json:"body"`
	}, error) {
		p, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.AdminUpdateUser(ctx, p.UserID, input.UserID, engine.AdminUserPatch{
			Plan:            input.Body.Plan,
			StartnowCredits: input.Body.StartnowCredits,
			IsAdmin:         input.Body.IsAdmin,
			CancelStripe:    input.Body.CancelStripe,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdminUserResponse `json:"body"`
		}{Body: adminUserResponse(e, u)}, nil
	})
}
