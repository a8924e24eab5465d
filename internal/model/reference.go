package model

import (
	"time"

	"github.com/google/uuid"
)

type Client struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Document  string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

type Property struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	ClientID     *uuid.UUID
	Name         string
	Municipality string
	AreaHa       float64
	Registration string
	CreatedAt    time.Time
}

type Professional struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	CREA      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

type Service struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Name        string
	Description string
	BasePrice   float64
	CreatedAt   time.Time
}

// Registry is a land registry office (CRI). Jurisdiction is the code the
// documentation checklist lookup matches against.
type Registry struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Name         string
	Jurisdiction string
	Email        string
	Phone        string
	CreatedAt    time.Time
}
