package user

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/httpx"
	"github.com/forgeline/keel/store"
)

// userView is the public shape of a user.
type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func viewOf(u User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func viewsOf(users []User) []userView {
	views := make([]userView, len(users))
	for i, u := range users {
		views[i] = viewOf(u)
	}
	return views
}

type updateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

func (req *updateUserRequest) Validate() []httperr.FieldIssue {
	var issues []httperr.FieldIssue
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
		if trimmed == "" {
			issues = append(issues, httperr.FieldIssue{Field: "name", Message: "cannot be empty"})
		}
	}
	if req.Role != nil && !ValidRole(*req.Role) {
		issues = append(issues, httperr.FieldIssue{Field: "role", Message: "must be one of: user, admin"})
	}
	if req.Name == nil && req.Role == nil {
		issues = append(issues, httperr.FieldIssue{Field: "body", Message: "at least one field is required"})
	}
	return issues
}

func pageFromQuery(r *http.Request) store.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return store.Page{Page: page, Limit: limit}
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) error {
	role := r.URL.Query().Get("role")
	if role != "" && !ValidRole(role) {
		return httperr.Validation("request validation failed", []httperr.FieldIssue{
			{Field: "role", Message: "must be one of: user, admin"}})
	}

	users, pageInfo, err := m.service.List(r.Context(), pageFromQuery(r), role)
	if err != nil {
		return err
	}

	httpx.JSONPage(w, r, http.StatusOK, viewsOf(users), pageInfo)
	return nil
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if err := requireSelfOrAdmin(r, id); err != nil {
		return err
	}

	u, err := m.service.Get(r.Context(), id)
	if err != nil {
		return err
	}

	httpx.JSON(w, r, http.StatusOK, viewOf(u))
	return nil
}

func (m *Module) handleUpdate(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if err := requireSelfOrAdmin(r, id); err != nil {
		return err
	}

	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return err
	}

	changes := map[string]any{}
	if req.Name != nil {
		changes["name"] = *req.Name
	}
	if req.Role != nil {
		// Only admins may change roles, including their own.
		principal := httpx.PrincipalFrom(r.Context())
		if principal == nil || principal.Role != RoleAdmin {
			return httperr.Forbidden("only admins can change roles")
		}
		changes["role"] = *req.Role
	}

	u, err := m.service.Update(r.Context(), id, changes)
	if err != nil {
		return err
	}

	httpx.JSONMessage(w, r, http.StatusOK, "user updated", viewOf(u))
	return nil
}

func (m *Module) handleDelete(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")

	principal := httpx.PrincipalFrom(r.Context())
	if principal != nil && principal.ID == id {
		return httperr.Forbidden("cannot delete your own account")
	}

	if err := m.service.Delete(r.Context(), id); err != nil {
		return err
	}

	m.logger.Info("user deleted", "user_id", id)
	httpx.JSONMessage(w, r, http.StatusOK, "user deleted", nil)
	return nil
}

// requireSelfOrAdmin allows a caller to act on their own record and admins
// to act on any record.
func requireSelfOrAdmin(r *http.Request, id string) error {
	principal := httpx.PrincipalFrom(r.Context())
	if principal == nil {
		return httperr.Unauthorized("")
	}
	if principal.ID != id && principal.Role != RoleAdmin {
		return httperr.Forbidden("")
	}
	return nil
}
