package verification

import (
	"math"
	"regexp"
	"strings"

	dstrings "deeptrack/pkg/platform/strings"
)

// Verdict labels.
const (
	VerdictSuccessful = "VERIFICATION SUCCESSFUL"
	VerdictFailed     = "VERIFICATION FAILED"
)

// Check statuses in the summary.
const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
)

// Summary is the display model of a verification result. It is derived from
// the result and never written back to the wizard.
type Summary struct {
	DocumentType string            `json:"document_type"`
	Successful   bool              `json:"successful"`
	Verdict      string            `json:"verdict"`
	PassRate     float64           `json:"pass_rate"`
	Message      string            `json:"message,omitempty"`
	Documents    []DocumentSummary `json:"documents"`
	FaceMatch    FaceMatchSummary  `json:"face_match"`
	Identity     []Field           `json:"identity"`
}

type DocumentSummary struct {
	Name   string        `json:"name"`
	Passed int           `json:"passed"`
	Failed int           `json:"failed"`
	Checks []CheckResult `json:"checks"`
}

type CheckResult struct {
	Label  string `json:"label"`
	Status string `json:"status"`
}

type FaceMatchSummary struct {
	Matched    bool    `json:"matched"`
	Status     string  `json:"status"`
	Similarity float64 `json:"similarity_percent"`
	Confidence float64 `json:"confidence_percent"`
}

// Field is one extracted identity attribute; Value is "-" when absent.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type extractor struct {
	key     string
	label   string
	doc     string
	pattern *regexp.Regexp
}

var extractors = []extractor{
	{"idNumber", "ID Number", "front_id_Image", regexp.MustCompile(`(?i)ID NUMBER:?\s*(\d+)`)},
	{"name", "Name", "front_id_Image", regexp.MustCompile(`(?i)FULL NAMES?\s*([A-Z][A-Z ]*)`)},
	{"sex", "Sex", "front_id_Image", regexp.MustCompile(`(?i)SEX\s*([A-Z]+)`)},
	{"dateOfBirth", "Date Of Birth", "front_id_Image", regexp.MustCompile(`(?i)DATE OF BIRTH\s*([\d.]+)`)},
	{"districtOfBirth", "District Of Birth", "front_id_Image", regexp.MustCompile(`(?i)ICT OF BIRTH\s*([A-Z][A-Z ]*)`)},
	{"placeOfIssue", "Place Of Issue", "front_id_Image", regexp.MustCompile(`(?i)PLACE OF ISSUE\s*([A-Z][A-Z ]*)`)},
	{"dateOfIssue", "Date Of Issue", "front_id_Image", regexp.MustCompile(`(?i)DATE OF ISSUE\s*([\d.]+)`)},
	{"serialNumber", "Serial Number", "front_id_Image", regexp.MustCompile(`(?i)SERIAL NUMBER:?\s*(\d+)`)},
	{"districtOfResidence", "District Of Residence", "back_id_Image", regexp.MustCompile(`(?m)^([A-Z]+)$`)},
	{"location", "Location", "back_id_Image", regexp.MustCompile(`(?i)\bLOCATION\s*([A-Z][A-Z ]*)`)},
	{"subLocation", "Sub Location", "back_id_Image", regexp.MustCompile(`(?i)SUB-LOCATION\s*([A-Z][A-Z ]*)`)},
}

// Summarize builds the display model for result.
func Summarize(result *Result, documentType string) Summary {
	s := Summary{
		DocumentType: documentType,
		Documents:    []DocumentSummary{},
		Identity:     []Field{},
	}
	if result == nil {
		s.Verdict = VerdictFailed
		return s
	}
	s.Message = result.Message
	s.Successful = result.Successful()
	s.Verdict = VerdictFailed
	if s.Successful {
		s.Verdict = VerdictSuccessful
	}

	total, passed := 0, 0
	for _, doc := range result.DocumentVerification {
		ds := DocumentSummary{Name: doc.DocumentName, Checks: []CheckResult{}}
		for _, c := range doc.VerificationData {
			status := StatusFailed
			if c.Passed() {
				status = StatusPassed
				ds.Passed++
			} else {
				ds.Failed++
			}
			ds.Checks = append(ds.Checks, CheckResult{Label: checkLabel(c.Type), Status: status})
		}
		total += len(doc.VerificationData)
		passed += ds.Passed
		s.Documents = append(s.Documents, ds)
	}

	total++
	fm := result.FaceMatch
	s.FaceMatch = FaceMatchSummary{
		Matched:    fm.FaceMatch,
		Status:     StatusFailed,
		Similarity: percent(fm.Details.Similarity),
		Confidence: percent(fm.Details.Confidence),
	}
	if fm.FaceMatch {
		passed++
		s.FaceMatch.Status = StatusPassed
	}
	s.PassRate = math.Round(float64(passed)/float64(total)*1000) / 10

	for _, ex := range extractors {
		value := "-"
		if doc, ok := result.Document(ex.doc); ok {
			if m := ex.pattern.FindStringSubmatch(doc.Text); m != nil {
				if v := strings.TrimSpace(m[1]); v != "" {
					value = v
				}
			}
		}
		s.Identity = append(s.Identity, Field{Key: ex.key, Label: ex.label, Value: value})
	}
	return s
}

// checkLabel turns "fraud_signals_image_manipulation" into "Image Manipulation".
func checkLabel(t string) string {
	return dstrings.Humanize(strings.TrimPrefix(t, "fraud_signals_"))
}

// percent normalizes a 0..1 score to a percentage; values above 1 are taken
// as already being percentages.
func percent(v float64) float64 {
	if v <= 1 {
		v *= 100
	}
	return math.Round(v*10) / 10
}
