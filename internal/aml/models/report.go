package models

import "encoding/json"

const (
	KindClear   = "clear"
	KindExposed = "exposed"
)

// Assessment is either Clear or Exposed.
type Assessment interface {
	Kind() string
	isAssessment()
}

// Report is the screening result as presented to the console.
type Report struct {
	RiskLevel  RiskLevel     `json:"risk_level"`
	Gauge      Gauge         `json:"gauge"`
	Person     PersonDetails `json:"person"`
	Assessment Assessment    `json:"assessment"`
}

// Gauge describes the risk meter: the SVG arc path, the needle position and
// the colour for the level.
type Gauge struct {
	Path    string `json:"path"`
	NeedleX string `json:"needle_x"`
	NeedleY string `json:"needle_y"`
	Color   string `json:"color"`
	Label   string `json:"label"`
}

type PersonDetails struct {
	Country              string `json:"country"`
	CountryName          string `json:"country_name,omitempty"`
	IDNumber             string `json:"id_number"`
	Name                 string `json:"name"`
	DateOfBirth          string `json:"date_of_birth"`
	Gender               string `json:"gender"`
	StateOfExistence     string `json:"state_of_existence"`
	Role                 string `json:"role"`
	ReligiousAffiliation string `json:"religious_affiliation"`
	Ethnicity            string `json:"ethnicity"`
}

type CheckStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Clear is a low-risk result: nothing matched.
type Clear struct {
	Checks []CheckStatus `json:"checks"`
}

func (Clear) Kind() string { return KindClear }
func (Clear) isAssessment() {}

func (c Clear) MarshalJSON() ([]byte, error) {
	type alias Clear
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindClear, alias(c)})
}

// Exposed is a medium or high risk result with the supporting evidence.
type Exposed struct {
	Message               string          `json:"message"`
	PoliticalExposure     []ExposureEntry `json:"political_exposure"`
	InternationalExposure []ExposureEntry `json:"international_exposure"`
	Sanctions             []Sanction      `json:"sanctions"`
	PEP                   []PEPEntry      `json:"pep"`
}

func (Exposed) Kind() string { return KindExposed }
func (Exposed) isAssessment() {}

func (e Exposed) MarshalJSON() ([]byte, error) {
	type alias Exposed
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindExposed, alias(e)})
}

type ExposureEntry struct {
	Position  string `json:"position"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Location  string `json:"location"`
}

type Sanction struct {
	Authority string `json:"authority"`
	List      string `json:"list"`
	From      string `json:"from"`
	Reason    string `json:"reason"`
}

// PEPEntry is the matched person (score 1.0) or one of their relatives
// (score 0.5, with a relation type).
type PEPEntry struct {
	Name         string   `json:"name"`
	RelationType string   `json:"relation_type,omitempty"`
	Topics       []string `json:"topics"`
	TopicLabels  string   `json:"topic_labels"`
	Score        float64  `json:"score"`
	Sources      string   `json:"sources"`
}
