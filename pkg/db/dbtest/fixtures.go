package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
)

// CreateUser inserts a user with the given role and a unique email.
func CreateUser(t testing.TB, client *db.Client, role enums.Role) *models.User {
	t.Helper()
	id := uuid.New()
	user := &models.User{
		ID:    id,
		Name:  fmt.Sprintf("%s-%s", role, id.String()[:8]),
		Email: fmt.Sprintf("%s@example.test", id),
		Phone: "9876543210",
		Role:  role,
	}
	if err := client.DB().Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateListing inserts a listing with quantity == actual quantity.
func CreateListing(t testing.TB, client *db.Client, farmerID uuid.UUID, quantity int, pricePerKgCents int64) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		FarmerID:        farmerID,
		CropName:        "Tomato",
		Category:        "vegetables",
		Quantity:        quantity,
		ActualQuantity:  quantity,
		PricePerKgCents: pricePerKgCents,
		Location:        "Nashik",
	}
	if err := client.DB().Create(listing).Error; err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return listing
}

// Reload re-reads dest by primary key.
func Reload[T any](t testing.TB, client *db.Client, id uuid.UUID) *T {
	t.Helper()
	var out T
	if err := client.DB().First(&out, "id = ?", id).Error; err != nil {
		t.Fatalf("reload %T: %v", out, err)
	}
	return &out
}
