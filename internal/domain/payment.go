package domain

import (
	"encoding/json"
	"strings"
)

// PaymentMethodType is the broad kind of fiat transfer an initiator accepts.
type PaymentMethodType string

const (
	PaymentCash   PaymentMethodType = "cash"
	PaymentBank   PaymentMethodType = "bank"
	PaymentCustom PaymentMethodType = "custom"
)

// PaymentMethod is one accepted fiat transfer method with free-text details.
type PaymentMethod struct {
	Type PaymentMethodType `json:"type"`
	Info string            `json:"info"`
}

// PaymentMethods is the decoded fiatTransferMethods payload of the Opened
// event. When decoding fails Methods is nil and DecodeError is set; Raw always
// holds the original text.
type PaymentMethods struct {
	Raw         string          `json:"raw"`
	Methods     []PaymentMethod `json:"methods,omitempty"`
	DecodeError string          `json:"decode_error,omitempty"`
}

// DecodePaymentMethods parses the JSON array published in the Opened event.
// It never fails: a bad payload is kept as raw text.
func DecodePaymentMethods(raw string) PaymentMethods {
	var methods []PaymentMethod
	if err := json.Unmarshal([]byte(raw), &methods); err != nil {
		return PaymentMethods{Raw: raw, DecodeError: err.Error()}
	}
	if methods == nil {
		methods = []PaymentMethod{}
	}
	return PaymentMethods{Raw: raw, Methods: methods}
}

// Decoded reports whether Methods is usable.
func (pm PaymentMethods) Decoded() bool {
	return pm.DecodeError == ""
}

// Contains reports whether term appears (case-sensitively) in the info text
// of any decoded method, or in the raw text if decoding failed.
func (pm PaymentMethods) Contains(term string) bool {
	if !pm.Decoded() {
		return strings.Contains(pm.Raw, term)
	}
	for _, m := range pm.Methods {
		if strings.Contains(m.Info, term) {
			return true
		}
	}
	return false
}
