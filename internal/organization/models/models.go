package models

import (
	"regexp"
	"strings"
	"time"

	dErrors "deeptrack/pkg/domain-errors"
)

// Role is a console user's role within a company.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "role must be user or admin")
}

// CompanyDomain is the industry a company is registered under.
type CompanyDomain string

const (
	DomainFinance CompanyDomain = "finance"
	DomainMedia   CompanyDomain = "media"
)

func ParseCompanyDomain(s string) (CompanyDomain, error) {
	switch CompanyDomain(strings.ToLower(strings.TrimSpace(s))) {
	case DomainFinance:
		return DomainFinance, nil
	case DomainMedia:
		return DomainMedia, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "company domain must be finance or media")
}

// User is the backend record for an identity-provider subject.
type User struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CompanyID *string   `json:"companyId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Company returns the company id, or "" when the user has none.
func (u *User) Company() string {
	if u == nil || u.CompanyID == nil {
		return ""
	}
	return *u.CompanyID
}

type Company struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	CompanyHeadID string        `json:"companyHeadId"`
	CompanyDomain CompanyDomain `json:"companyDomain"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type Member struct {
	ID        string    `json:"id"`
	CompanyID *string   `json:"companyId"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NextStep routes a signed-in user through onboarding.
type NextStep string

const (
	NextRegisterUser  NextStep = "new-user"
	NextCreateCompany NextStep = "new-org"
	NextDashboard     NextStep = "dashboard"
)

// Onboarding is the user's position in the onboarding flow.
type Onboarding struct {
	User       *User    `json:"user,omitempty"`
	HasCompany bool     `json:"has_company"`
	IsHead     bool     `json:"is_head"`
	Next       NextStep `json:"next"`
}

const maxNameLength = 128

var (
	e164Pattern  = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s.]+$`)
)

// NormalizePhone strips formatting characters and checks E.164.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
	if !e164Pattern.MatchString(cleaned) {
		return "", dErrors.New(dErrors.CodeValidation, "Please enter a valid organization phone number")
	}
	return cleaned, nil
}

func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return "", dErrors.New(dErrors.CodeValidation, "email must be a valid address")
	}
	return email, nil
}

func ValidateName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(name) > maxNameLength {
		return "", dErrors.New(dErrors.CodeValidation, field+" must be at most 128 characters")
	}
	return name, nil
}

// NewCompany is a validated company registration.
type NewCompany struct {
	Name          string
	Email         string
	Phone         string
	CompanyDomain CompanyDomain
}

// NewUser is a validated user registration.
type NewUser struct {
	Email     string
	FullName  string
	Role      Role
	CompanyID string
}
