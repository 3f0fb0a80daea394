package domain

import "strings"

// ============================================================
// Inbound lead capture (form webhook)
// ============================================================

// FormSourceForminator is the source recorded for leads captured by the
// WordPress Forminator webhook.
const FormSourceForminator = "forminator"

// FormSubmission is the flat payload posted by the form plugin.
type FormSubmission struct {
	FirstName string `json:"name-1"`
	LastName  string `json:"name-2"`
	Email     string `json:"email-1"`
	Phone     string `json:"phone-1"`
	Message   string `json:"textarea-1"`
}

// Draft maps a submission to a new lead. Captured leads always start as New.
func (f FormSubmission) Draft(source string) LeadDraft {
	return LeadDraft{
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(f.Phone),
		Message:   strings.TrimSpace(f.Message),
		Source:    source,
		Status:    LeadNew,
	}
}
