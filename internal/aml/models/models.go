// Package models holds the AML screening query, the raw screening payload and
// the report shaped from it.
package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	dErrors "deeptrack/pkg/domain-errors"
)

// CheckType selects whether a person or a company is screened.
type CheckType string

const (
	CheckPerson   CheckType = "person"
	CheckBusiness CheckType = "business"
)

func ParseCheckType(s string) (CheckType, error) {
	switch CheckType(strings.ToLower(strings.TrimSpace(s))) {
	case "", CheckPerson:
		return CheckPerson, nil
	case CheckBusiness:
		return CheckBusiness, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "check type must be person or business")
}

// Query is the screening request submitted from the console.
type Query struct {
	CheckType          CheckType `json:"check_type"`
	FullName           string    `json:"full_name"`
	CompanyName        string    `json:"company_name"`
	RegistrationNumber string    `json:"registration_number"`
	Day                string    `json:"day"`
	Month              string    `json:"month"`
	Year               string    `json:"year"`
	Nationality        string    `json:"nationality"`
}

// Validate normalizes the query in place. The birth date is either complete
// or absent, and nationality is an ISO 3166-1 alpha-2 country code.
func (q *Query) Validate() error {
	ct, err := ParseCheckType(string(q.CheckType))
	if err != nil {
		return err
	}
	q.CheckType = ct
	q.FullName = strings.TrimSpace(q.FullName)
	q.CompanyName = strings.TrimSpace(q.CompanyName)
	q.RegistrationNumber = strings.TrimSpace(q.RegistrationNumber)
	q.Day = strings.TrimSpace(q.Day)
	q.Month = strings.TrimSpace(q.Month)
	q.Year = strings.TrimSpace(q.Year)

	if q.Name() == "" {
		if q.CheckType == CheckBusiness {
			return dErrors.New(dErrors.CodeValidation, "company name is required")
		}
		return dErrors.New(dErrors.CodeValidation, "full name is required")
	}

	parts := 0
	for _, p := range []string{q.Day, q.Month, q.Year} {
		if p != "" {
			parts++
		}
	}
	switch parts {
	case 0:
	case 3:
		if _, err := q.birthTime(); err != nil {
			return dErrors.New(dErrors.CodeValidation, "birth date is not a valid date")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "birth date needs day, month and year")
	}

	if n := strings.TrimSpace(q.Nationality); n != "" {
		region, err := language.ParseRegion(n)
		if err != nil || len(n) != 2 || !region.IsCountry() {
			return dErrors.New(dErrors.CodeValidation, "nationality must be an ISO 3166-1 alpha-2 country code")
		}
		q.Nationality = region.String()
	} else {
		q.Nationality = ""
	}
	return nil
}

// Name is the screened name for the check type.
func (q *Query) Name() string {
	if q.CheckType == CheckBusiness {
		return q.CompanyName
	}
	return q.FullName
}

func (q *Query) birthTime() (time.Time, error) {
	day, err1 := strconv.Atoi(q.Day)
	month, err2 := strconv.Atoi(q.Month)
	year, err3 := strconv.Atoi(q.Year)
	if err1 != nil || err2 != nil || err3 != nil || year < 1000 || year > 9999 {
		return time.Time{}, fmt.Errorf("invalid birth date %s/%s/%s", q.Day, q.Month, q.Year)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("invalid birth date %s/%s/%s", q.Day, q.Month, q.Year)
	}
	return t, nil
}

// BirthDate returns the birth date as YYYY-MM-DD, or "" when absent.
func (q *Query) BirthDate() string {
	t, err := q.birthTime()
	if err != nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

// Values encodes the query for the screening endpoint.
func (q *Query) Values() url.Values {
	v := url.Values{}
	v.Set("fullName", q.Name())
	if bd := q.BirthDate(); bd != "" {
		v.Set("birthDate", bd)
	}
	if q.Nationality != "" {
		v.Set("nationality", q.Nationality)
	}
	return v
}

// RiskLevel is the screening verdict.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// NormalizeRiskLevel upper-cases s. Missing or unknown levels read as LOW.
func NormalizeRiskLevel(s string) RiskLevel {
	switch l := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); l {
	case RiskMedium, RiskHigh:
		return l
	}
	return RiskLow
}

// Response is the screening payload returned by the backend.
type Response struct {
	RiskLevel     string   `json:"riskLevel"`
	MatchedEntity *Entity  `json:"matchedEntity"`
	Reasons       []string `json:"reasons"`
}

// Entity is a sanctions or PEP database record.
type Entity struct {
	ID         string     `json:"id"`
	Caption    string     `json:"caption"`
	FirstSeen  string     `json:"first_seen"`
	Datasets   []string   `json:"datasets"`
	Properties Properties `json:"properties"`
}

type Properties struct {
	Position       []string   `json:"position"`
	Country        []string   `json:"country"`
	Education      []string   `json:"education"`
	Notes          []string   `json:"notes"`
	Topics         []string   `json:"topics"`
	BirthDate      []string   `json:"birthDate"`
	Gender         []string   `json:"gender"`
	Religion       []string   `json:"religion"`
	Ethnicity      []string   `json:"ethnicity"`
	FamilyRelative []Relation `json:"familyRelative"`
}

type Relation struct {
	Properties RelationProperties `json:"properties"`
}

type RelationProperties struct {
	Relationship []string `json:"relationship"`
	Relative     []Entity `json:"relative"`
}

// First returns the first element of values, or "".
func First(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
