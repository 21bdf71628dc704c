package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

// Service serves account lookups and the driver directory.
type Service interface {
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*UserDTO, error)
	ListDrivers(ctx context.Context, params pagination.Params) (*DriverList, error)
}

type service struct {
	repo *Repository
}

// NewService builds the users service.
func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if actor.ID == user.ID {
		return FromModel(user), nil
	}
	return PublicFromModel(user), nil
}

func (s *service) ListDrivers(ctx context.Context, params pagination.Params) (*DriverList, error) {
	page, err := params.Window()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByRole(ctx, enums.RoleDriver, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drivers")
	}

	rows, next := pagination.Trim(page, rows, func(m models.User) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	out := &DriverList{Drivers: make([]DriverDTO, len(rows)), Cursor: next}
	for i, row := range rows {
		out.Drivers[i] = DriverDTO{ID: row.ID, Name: row.Name, Address: row.Address}
	}
	return out, nil
}
