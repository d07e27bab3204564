package handler

import (
	"strings"

	"deeptrack/internal/organization/models"
	dErrors "deeptrack/pkg/domain-errors"
	"deeptrack/pkg/email"
)

// AddUserRequest is the body for POST /users.
type AddUserRequest struct {
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	CompanyID string `json:"companyId,omitempty"`

	parsed models.NewUser
}

func (r *AddUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	addr, err := models.ValidateEmail(r.Email)
	if err != nil {
		return err
	}
	// Identity-provider accounts created from an email alone carry no name.
	if strings.TrimSpace(r.FullName) == "" {
		r.FullName = email.DisplayName(addr)
	}
	name, err := models.ValidateName("fullName", r.FullName)
	if err != nil {
		return err
	}
	role, err := models.ParseRole(r.Role)
	if err != nil {
		return err
	}
	r.parsed = models.NewUser{
		Email:     addr,
		FullName:  name,
		Role:      role,
		CompanyID: strings.TrimSpace(r.CompanyID),
	}
	return nil
}

// CreateCompanyRequest is the body for POST /companies.
type CreateCompanyRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	CompanyDomain string `json:"companyDomain"`

	parsed models.NewCompany
}

func (r *CreateCompanyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	name, err := models.ValidateName("name", r.Name)
	if err != nil {
		return err
	}
	email, err := models.ValidateEmail(r.Email)
	if err != nil {
		return err
	}
	phone, err := models.NormalizePhone(r.Phone)
	if err != nil {
		return err
	}
	domain, err := models.ParseCompanyDomain(r.CompanyDomain)
	if err != nil {
		return err
	}
	r.parsed = models.NewCompany{
		Name:          name,
		Email:         email,
		Phone:         phone,
		CompanyDomain: domain,
	}
	return nil
}
