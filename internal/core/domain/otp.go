package domain

import "encoding/json"

// OTPRecord is the delivery collaborator's response, cached until verified.
type OTPRecord struct {
	Code    string
	Payload json.RawMessage
}

// ParseOTPRecord extracts the code from a raw delivery payload.
func ParseOTPRecord(payload []byte) (*OTPRecord, error) {
	var body struct {
		OTP json.RawMessage `json:"otp"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	return &OTPRecord{Code: rawToString(body.OTP), Payload: payload}, nil
}

// rawToString accepts the code as either a JSON string or number.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// SendOTPResult tells the client whether the phone already has an account.
type SendOTPResult struct {
	Registered bool `json:"registered"`
}
