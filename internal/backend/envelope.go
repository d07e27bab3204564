package backend

import (
	"encoding/json"
	"strconv"
)

// Envelope is the {status, data, message} wrapper used by the users routes.
type Envelope[T any] struct {
	Status  Status `json:"status"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message"`
}

// Status accepts both numeric and string status fields.
type Status int

func (s *Status) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*s = Status(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		switch str {
		case "success", "ok":
			n = 200
		default:
			n = 0
		}
	}
	*s = Status(n)
	return nil
}

// OK reports a 2xx status, or an unset one.
func (s Status) OK() bool {
	return s == 0 || (s >= 200 && s <= 299)
}
