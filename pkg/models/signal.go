package models

import "strings"

// Signal type tags. The tag decides which entity collections are searched.
const (
	SignalTypeCompany        = "company"
	SignalTypeContact        = "contact"
	SignalTypeCompanyContact = "company_contact"
)

// Signal is a CRM record representing an external event of interest. Signals
// are created outside this system and are read-only from the matcher's
// perspective.
type Signal struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"` // 'company', 'contact', or 'company_contact'
	Status      string `json:"status,omitempty"`
	Description string `json:"description"`
	Citation    string `json:"citation"`

	// Existing associations, used to skip candidates the signal is already
	// linked to.
	CompanyIDs []string `json:"company_ids,omitempty"`
	ContactIDs []string `json:"contact_ids,omitempty"`
}

// QueryText builds the text that is embedded to search for matching
// entities. Empty when the signal has neither description nor citation.
func (s *Signal) QueryText() string {
	var parts []string
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	if s.Citation != "" {
		parts = append(parts, "Source: "+s.Citation)
	}
	return strings.Join(parts, " | ")
}

// TargetsCompanies reports whether the company collection should be searched.
func (s *Signal) TargetsCompanies() bool {
	return s.Type == SignalTypeCompany || s.Type == SignalTypeCompanyContact || s.Type == ""
}

// TargetsContacts reports whether the contact collection should be searched.
func (s *Signal) TargetsContacts() bool {
	return s.Type == SignalTypeContact || s.Type == SignalTypeCompanyContact
}

// IsAssociatedWith reports whether the signal already has an association to
// the given entity.
func (s *Signal) IsAssociatedWith(entityType, entityID string) bool {
	var ids []string
	switch entityType {
	case EntityTypeCompany:
		ids = s.CompanyIDs
	case EntityTypeContact:
		ids = s.ContactIDs
	}
	for _, id := range ids {
		if id == entityID {
			return true
		}
	}
	return false
}
