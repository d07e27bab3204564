package service

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"deeptrack/internal/aml/models"
)

const (
	notAvailable  = "N/A"
	unknown       = "Unknown"
	present       = "Present"
	international = "International"
	followUp      = "Further verification may be required."
)

var topicLabels = map[string]string{
	"poi":      "Person of Interest",
	"sanction": "Sanctioned Entity",
	"role.pep": "Politically Exposed Person",
	"wanted":   "Wanted",
	"role.rca": "Close Associate",
	"mil":      "Military",
}

type authority struct {
	name string
	list string
}

var datasetAuthorities = map[string]authority{
	"us_ofac_sdn":      {name: "United States Treasury", list: "OFAC SDN List"},
	"eu_fsf":           {name: "European Union", list: "Financial Sanctions Files"},
	"gb_hmt_sanctions": {name: "United Kingdom", list: "HMT Sanctions List"},
}

var gauges = map[models.RiskLevel]models.Gauge{
	models.RiskLow:    {Path: "M 10 50 A 40 40 0 0 1 30 15", NeedleX: "30", NeedleY: "15", Color: "#0db94c", Label: "LOW"},
	models.RiskMedium: {Path: "M 10 50 A 40 40 0 0 1 50 10", NeedleX: "50", NeedleY: "10", Color: "#f59e0b", Label: "MED"},
	models.RiskHigh:   {Path: "M 10 50 A 40 40 0 0 1 90 50", NeedleX: "90", NeedleY: "50", Color: "#ec1c24", Label: "HIGH"},
}

// tenure matches a trailing "(2001-2009)" or open-ended "(2015-)" span.
var tenure = regexp.MustCompile(`\s*\((\d{4})-(\d{4}|)\)`)

// FormatTopics maps topic codes to readable labels, keeping unknown codes.
func FormatTopics(codes []string) string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if label, ok := topicLabels[c]; ok {
			out = append(out, label)
			continue
		}
		out = append(out, c)
	}
	return strings.Join(out, ", ")
}

// RegionName returns the English name of an ISO 3166-1 country code, or ""
// when code is not a country.
func RegionName(code string) string {
	region, err := language.ParseRegion(strings.TrimSpace(code))
	if err != nil || !region.IsCountry() {
		return ""
	}
	return display.English.Regions().Name(region)
}

// Assess shapes a screening payload into a report. The submitted query fills
// in person details the matched entity does not carry.
func Assess(resp *models.Response, q *models.Query) *models.Report {
	level := models.NormalizeRiskLevel(resp.RiskLevel)
	report := &models.Report{
		RiskLevel: level,
		Gauge:     gauges[level],
		Person:    personDetails(resp.MatchedEntity, q),
	}
	if level == models.RiskLow {
		report.Assessment = models.Clear{Checks: []models.CheckStatus{
			{Name: "Not found in any Global sanctions lists", Status: "PASSED"},
			{Name: "Not found in any PEP Database", Status: "PASSED"},
		}}
		return report
	}

	exposed := models.Exposed{
		Message:               message(resp.Reasons),
		PoliticalExposure:     []models.ExposureEntry{},
		InternationalExposure: []models.ExposureEntry{},
		Sanctions:             []models.Sanction{},
		PEP:                   []models.PEPEntry{},
	}
	if e := resp.MatchedEntity; e != nil {
		exposed.PoliticalExposure = politicalExposure(e)
		exposed.InternationalExposure = internationalExposure(e)
		exposed.Sanctions = sanctions(e)
		exposed.PEP = pepEntries(e)
	}
	report.Assessment = exposed
	return report
}

func message(reasons []string) string {
	reason := strings.TrimRight(strings.TrimSpace(models.First(reasons)), ".")
	if reason == "" {
		return followUp
	}
	return reason + ". " + followUp
}

func location(e *models.Entity) string {
	if name := RegionName(models.First(e.Properties.Country)); name != "" {
		return name
	}
	return international
}

func politicalExposure(e *models.Entity) []models.ExposureEntry {
	loc := location(e)
	out := make([]models.ExposureEntry, 0, len(e.Properties.Position))
	for _, pos := range e.Properties.Position {
		m := tenure.FindStringSubmatch(pos)
		if m == nil {
			out = append(out, models.ExposureEntry{Position: pos, StartDate: unknown, EndDate: unknown, Location: loc})
			continue
		}
		end := m[2]
		if end == "" {
			end = present
		}
		out = append(out, models.ExposureEntry{
			Position:  strings.TrimSpace(strings.Replace(pos, m[0], "", 1)),
			StartDate: m[1],
			EndDate:   end,
			Location:  loc,
		})
	}
	return out
}

// internationalExposure lists education entries. An institution naming the
// entity's own country is placed there, anything else is international.
func internationalExposure(e *models.Entity) []models.ExposureEntry {
	home := RegionName(models.First(e.Properties.Country))
	out := make([]models.ExposureEntry, 0, len(e.Properties.Education))
	for _, edu := range e.Properties.Education {
		loc := international
		if home != "" && strings.Contains(edu, home) {
			loc = home
		}
		out = append(out, models.ExposureEntry{
			Position:  "Student at " + edu,
			StartDate: unknown,
			EndDate:   unknown,
			Location:  loc,
		})
	}
	return out
}

func sanctions(e *models.Entity) []models.Sanction {
	from := e.FirstSeen
	if from == "" {
		from = unknown
	}
	note := models.First(e.Properties.Notes)
	out := make([]models.Sanction, 0, len(e.Datasets))
	for _, ds := range e.Datasets {
		a, ok := datasetAuthorities[ds]
		if !ok {
			a = authority{name: unknown, list: ds}
		}
		reason := note
		if reason == "" {
			reason = "Listed in " + ds
		}
		out = append(out, models.Sanction{Authority: a.name, List: a.list, From: from, Reason: reason})
	}
	return out
}

func pepEntries(e *models.Entity) []models.PEPEntry {
	out := []models.PEPEntry{{
		Name:        e.Caption,
		Topics:      nonNil(e.Properties.Topics),
		TopicLabels: FormatTopics(e.Properties.Topics),
		Score:       1.0,
		Sources:     strings.Join(e.Datasets, ", "),
	}}
	for _, rel := range e.Properties.FamilyRelative {
		entry := models.PEPEntry{
			RelationType: strings.ToUpper(models.First(rel.Properties.Relationship)),
			Topics:       []string{},
			Score:        0.5,
		}
		if len(rel.Properties.Relative) > 0 {
			r := rel.Properties.Relative[0]
			entry.Name = r.Caption
			entry.Topics = nonNil(r.Properties.Topics)
			entry.TopicLabels = FormatTopics(r.Properties.Topics)
			entry.Sources = strings.Join(r.Datasets, ", ")
		}
		out = append(out, entry)
	}
	return out
}

func personDetails(e *models.Entity, q *models.Query) models.PersonDetails {
	p := models.PersonDetails{
		Country:              q.Nationality,
		IDNumber:             orDefault(q.RegistrationNumber, notAvailable),
		Name:                 strings.ToUpper(q.Name()),
		DateOfBirth:          notAvailable,
		Gender:               notAvailable,
		StateOfExistence:     "ALIVE",
		Role:                 "INDIVIDUAL",
		ReligiousAffiliation: notAvailable,
		Ethnicity:            notAvailable,
	}
	if q.Day != "" && q.Month != "" && q.Year != "" {
		p.DateOfBirth = q.Day + "/" + q.Month + "/" + q.Year
	}
	if q.CheckType == models.CheckBusiness {
		p.Role = "COMPANY"
	}

	if e != nil {
		props := e.Properties
		p.Country = orDefault(strings.ToUpper(models.First(props.Country)), p.Country)
		p.IDNumber = orDefault(e.ID, p.IDNumber)
		p.Name = orDefault(e.Caption, p.Name)
		p.DateOfBirth = orDefault(models.First(props.BirthDate), p.DateOfBirth)
		p.Gender = orDefault(strings.ToUpper(models.First(props.Gender)), p.Gender)
		if len(props.Topics) > 0 {
			p.Role = strings.ToUpper(FormatTopics(props.Topics))
		}
		p.ReligiousAffiliation = orDefault(strings.ToUpper(models.First(props.Religion)), p.ReligiousAffiliation)
		p.Ethnicity = orDefault(strings.ToUpper(models.First(props.Ethnicity)), p.Ethnicity)
	}
	p.CountryName = RegionName(p.Country)
	return p
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
