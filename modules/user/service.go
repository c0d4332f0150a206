package user

import (
	"context"
	"time"

	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/modules/auth"
	"github.com/forgeline/keel/store"
)

// Service wraps the user repository with the business rules the handlers
// and sibling modules rely on. It also implements auth.IdentityStore so the
// auth module authenticates against the same rows this module manages.
type Service struct {
	repo *store.Repository[User]
}

// NewService creates the user service.
func NewService(repo *store.Repository[User]) *Service {
	return &Service{repo: repo}
}

var _ auth.IdentityStore = (*Service)(nil)

// List returns a page of users, optionally filtered by role.
func (s *Service) List(ctx context.Context, page store.Page, role string) ([]User, store.PageInfo, error) {
	filters := store.Filters{}
	if role != "" {
		filters["role"] = role
	}
	return s.repo.FindMany(ctx, filters, page, "created_at DESC")
}

// Get returns one user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByEmail returns one live user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindOne(ctx, store.Filters{"email": email})
}

// Create inserts a new user after checking email uniqueness among live
// rows. The unique index backs this up under concurrency; the explicit
// check exists for the friendlier message.
func (s *Service) Create(ctx context.Context, u User) (User, error) {
	taken, err := s.repo.Exists(ctx, store.Filters{"email": u.Email})
	if err != nil {
		return User{}, err
	}
	if taken {
		return User{}, httperr.Conflict("email already registered")
	}
	return s.repo.Create(ctx, &u)
}

// Update applies the given column changes to one user.
func (s *Service) Update(ctx context.Context, id string, changes map[string]any) (User, error) {
	return s.repo.UpdateByID(ctx, id, changes)
}

// Delete tombstones one user.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteByID(ctx, id)
}

// PurgeDeletedBefore permanently removes users tombstoned before the
// cutoff. The scheduler calls this on its retention cadence.
func (s *Service) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.PurgeDeletedBefore(ctx, cutoff)
}

// CreateIdentity implements auth.IdentityStore.
func (s *Service) CreateIdentity(ctx context.Context, identity auth.Identity) (auth.Identity, error) {
	created, err := s.Create(ctx, User{
		ID:           identity.ID,
		Email:        identity.Email,
		Name:         identity.Name,
		Role:         identity.Role,
		PasswordHash: identity.PasswordHash,
	})
	if err != nil {
		return auth.Identity{}, err
	}
	return toIdentity(created), nil
}

// IdentityByEmail implements auth.IdentityStore.
func (s *Service) IdentityByEmail(ctx context.Context, email string) (auth.Identity, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return auth.Identity{}, err
	}
	return toIdentity(u), nil
}

// IdentityByID implements auth.IdentityStore.
func (s *Service) IdentityByID(ctx context.Context, id string) (auth.Identity, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return auth.Identity{}, err
	}
	return toIdentity(u), nil
}

func toIdentity(u User) auth.Identity {
	return auth.Identity{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
