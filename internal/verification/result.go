// Package verification calls the identity verification endpoint and shapes
// its result for display.
package verification

// FraudFlagPass is the only fraud flag value that counts as a pass.
const FraudFlagPass = "PASS"

// Images are the three resource locators sent for verification.
type Images struct {
	Face    string `json:"face_Image"`
	FrontID string `json:"front_id_Image"`
	BackID  string `json:"back_id_Image"`
}

// Complete reports whether every locator is present.
func (i Images) Complete() bool {
	return i.Face != "" && i.FrontID != "" && i.BackID != ""
}

// Result is the verification payload. Treat it as immutable once received.
type Result struct {
	Message              string                 `json:"message"`
	DocumentVerification []DocumentVerification `json:"document_verification"`
	FaceMatch            FaceMatch              `json:"face_match"`
}

type DocumentVerification struct {
	DocumentName     string  `json:"documentName"`
	Text             string  `json:"text"`
	VerificationData []Check `json:"verification_data"`
}

type Check struct {
	Type            string `json:"type"`
	FraudFlag       string `json:"fraudFlag"`
	NormalizedValue string `json:"normalizedValue"`
}

func (c Check) Passed() bool {
	return c.FraudFlag == FraudFlagPass
}

type FaceMatch struct {
	FaceMatch bool             `json:"face_match"`
	Details   FaceMatchDetails `json:"details"`
}

type FaceMatchDetails struct {
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence"`
}

// Successful holds when the face matched and every fraud check passed.
func (r *Result) Successful() bool {
	if r == nil || !r.FaceMatch.FaceMatch {
		return false
	}
	for _, doc := range r.DocumentVerification {
		for _, c := range doc.VerificationData {
			if !c.Passed() {
				return false
			}
		}
	}
	return true
}

// Document returns the verification entry for a payload field name such as
// "front_id_Image".
func (r *Result) Document(name string) (DocumentVerification, bool) {
	for _, d := range r.DocumentVerification {
		if d.DocumentName == name {
			return d, true
		}
	}
	return DocumentVerification{}, false
}

// Clone returns a deep copy so callers cannot mutate a stored result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.DocumentVerification = make([]DocumentVerification, len(r.DocumentVerification))
	for i, d := range r.DocumentVerification {
		d.VerificationData = append([]Check(nil), d.VerificationData...)
		out.DocumentVerification[i] = d
	}
	return &out
}
