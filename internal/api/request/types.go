package request

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mcoot/estimategame/internal/model"
)

// CreateSessionRequest is the request body for creating a session
type CreateSessionRequest struct {
	Nickname string `json:"nickname"`
}

// JoinSessionRequest is the request body for joining a session by code
type JoinSessionRequest struct {
	Code     string `json:"code"`
	Nickname string `json:"nickname"`
}

// EstimateRequest is the request body for submitting an estimation.
// Value may be a JSON number or a numeric string such as "12,50".
type EstimateRequest struct {
	Value json.RawMessage `json:"value"`
}

// Parse returns the submitted value
func (r EstimateRequest) Parse() (float64, error) {
	raw := bytes.TrimSpace(r.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: value is required", model.ErrInvalidInput)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
		}
		return model.ParseEstimation(s)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %s is not a number", model.ErrInvalidInput, raw)
	}
	if err := model.ValidateEstimation(v); err != nil {
		return 0, err
	}
	return v, nil
}

// AddBotRequest is the request body for adding a bot to a session
type AddBotRequest struct {
	Strategy string `json:"strategy"`
}
