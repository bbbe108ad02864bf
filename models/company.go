package models

import (
	"time"

	"github.com/google/uuid"
)

// CompanyStatus is the lifecycle state of a tenant.
type CompanyStatus string

const (
	CompanyStatusActive    CompanyStatus = "active"
	CompanyStatusSuspended CompanyStatus = "suspended"
)

// Company is a tenant. Every access policy and every actor profile belongs to one.
type Company struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Slug      string        `json:"slug" db:"slug"`
	Status    CompanyStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Company model
func (Company) TableName() string {
	return "companies"
}

// NewCompany creates an active company
func NewCompany(name, slug string) *Company {
	now := time.Now()
	return &Company{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		Status:    CompanyStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
