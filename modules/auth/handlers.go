package auth

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/httpx"
)

// RoleUser is the role assigned to self-registered accounts.
const RoleUser = "user"

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (req *registerRequest) Validate() []httperr.FieldIssue {
	var issues []httperr.FieldIssue
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		issues = append(issues, httperr.FieldIssue{Field: "email", Message: "must be a valid email address"})
	}
	if req.Name == "" {
		issues = append(issues, httperr.FieldIssue{Field: "name", Message: "is required"})
	}
	issues = append(issues, PasswordIssues("password", req.Password)...)
	return issues
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *loginRequest) Validate() []httperr.FieldIssue {
	var issues []httperr.FieldIssue
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		issues = append(issues, httperr.FieldIssue{Field: "email", Message: "is required"})
	}
	if req.Password == "" {
		issues = append(issues, httperr.FieldIssue{Field: "password", Message: "is required"})
	}
	return issues
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (req *refreshRequest) Validate() []httperr.FieldIssue {
	if strings.TrimSpace(req.RefreshToken) == "" {
		return []httperr.FieldIssue{{Field: "refreshToken", Message: "is required"}}
	}
	return nil
}

// identityView is the public shape of an identity.
type identityView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func viewOf(id Identity) identityView {
	return identityView{
		ID:        id.ID,
		Email:     id.Email,
		Name:      id.Name,
		Role:      id.Role,
		CreatedAt: id.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: id.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type sessionResponse struct {
	User   identityView `json:"user"`
	Tokens TokenPair    `json:"tokens"`
}

func (m *Module) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return err
	}

	hash, err := HashPassword(req.Password, m.config.BcryptCost)
	if err != nil {
		return err
	}

	identity, err := m.identities.CreateIdentity(r.Context(), Identity{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}

	pair, err := m.tokens.IssuePair(httpx.Principal{ID: identity.ID, Email: identity.Email, Role: identity.Role})
	if err != nil {
		return err
	}

	m.logger.Info("account registered", "user_id", identity.ID)
	httpx.JSONMessage(w, r, http.StatusCreated, "account created",
		sessionResponse{User: viewOf(identity), Tokens: pair})
	return nil
}

func (m *Module) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return err
	}

	identity, err := m.identities.IdentityByEmail(r.Context(), req.Email)
	if err != nil {
		// A missing account and a bad password produce the same answer
		// so login cannot be used to probe for registered emails.
		return httperr.Unauthorized("invalid credentials")
	}
	if !ComparePassword(identity.PasswordHash, req.Password) {
		return httperr.Unauthorized("invalid credentials")
	}

	pair, err := m.tokens.IssuePair(httpx.Principal{ID: identity.ID, Email: identity.Email, Role: identity.Role})
	if err != nil {
		return err
	}

	m.logger.Info("login succeeded", "user_id", identity.ID)
	httpx.JSON(w, r, http.StatusOK, sessionResponse{User: viewOf(identity), Tokens: pair})
	return nil
}

func (m *Module) handleRefresh(w http.ResponseWriter, r *http.Request) error {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return err
	}

	principal, err := m.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		return err
	}

	// Reload the identity so a role change or deletion since issuance
	// takes effect on refresh.
	identity, err := m.identities.IdentityByID(r.Context(), principal.ID)
	if err != nil {
		return httperr.Unauthorized("invalid token")
	}

	pair, err := m.tokens.IssuePair(httpx.Principal{ID: identity.ID, Email: identity.Email, Role: identity.Role})
	if err != nil {
		return err
	}

	httpx.JSON(w, r, http.StatusOK, sessionResponse{User: viewOf(identity), Tokens: pair})
	return nil
}

func (m *Module) handleMe(w http.ResponseWriter, r *http.Request) error {
	principal := httpx.PrincipalFrom(r.Context())
	if principal == nil {
		return httperr.Unauthorized("")
	}

	identity, err := m.identities.IdentityByID(r.Context(), principal.ID)
	if err != nil {
		return err
	}

	httpx.JSON(w, r, http.StatusOK, viewOf(identity))
	return nil
}
