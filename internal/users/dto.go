package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
)

// UserDTO is the transport shape of an account. Phone and wallet balance are
// only populated for the account owner.
type UserDTO struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Role               enums.Role `json:"role"`
	Address            string     `json:"address,omitempty"`
	WalletBalanceCents *int64     `json:"wallet_balance_cents,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// DriverDTO is the public driver directory entry.
type DriverDTO struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address,omitempty"`
}

// DriverList is a page of drivers.
type DriverList struct {
	Drivers []DriverDTO `json:"drivers"`
	Cursor  string      `json:"cursor,omitempty"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Name    string
	Email   string
	Phone   string
	Role    enums.Role
	Address string
}

// ToModel maps the creation payload onto a model.
func (d CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Name:    strings.TrimSpace(d.Name),
		Email:   strings.ToLower(strings.TrimSpace(d.Email)),
		Phone:   strings.TrimSpace(d.Phone),
		Role:    d.Role,
		Address: strings.TrimSpace(d.Address),
	}
}

// FromModel maps a user for its owner.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	balance := u.WalletBalanceCents
	return &UserDTO{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Phone:              u.Phone,
		Role:               u.Role,
		Address:            u.Address,
		WalletBalanceCents: &balance,
		CreatedAt:          u.CreatedAt,
	}
}

// PublicFromModel maps a user for anyone other than its owner.
func PublicFromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
