package models

import (
	"github.com/google/uuid"
)

// ensureID assigns a fresh uuid when the caller did not provide one. Models
// call it from BeforeCreate so inserts behave the same on postgres and sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
