package models

import (
	"strings"
	"time"
)

// Entity type tags used in match decisions and sync cursors.
const (
	EntityTypeCompany = "company"
	EntityTypeContact = "contact"
)

// Company is a CRM company mirrored into the entity store.
type Company struct {
	HubSpotID string    `json:"hubspot_id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	UpdatedAt time.Time `json:"updated_at"` // last modification time in the CRM
}

// EmbeddingText builds the text that is embedded for this company. Returns
// an empty string when the record has no usable display fields.
func (c *Company) EmbeddingText() string {
	var parts []string
	if c.Name != "" {
		parts = append(parts, "Company: "+c.Name)
	}
	if c.Domain != "" {
		parts = append(parts, "Domain: "+c.Domain)
	}
	return strings.Join(parts, " | ")
}

// Contact is a CRM contact mirrored into the entity store.
type Contact struct {
	HubSpotID string    `json:"hubspot_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Company   string    `json:"company"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the contact's full name.
func (c *Contact) DisplayName() string {
	return strings.TrimSpace(strings.Join(nonEmpty(c.FirstName, c.LastName), " "))
}

// EmbeddingText builds the text that is embedded for this contact.
func (c *Contact) EmbeddingText() string {
	var parts []string
	if name := c.DisplayName(); name != "" {
		parts = append(parts, "Person: "+name)
	}
	if c.Company != "" {
		parts = append(parts, "Company: "+c.Company)
	}
	return strings.Join(parts, " | ")
}

// EntityMatch is one candidate returned by a similarity search.
type EntityMatch struct {
	EntityType string  `json:"entity_type"` // 'company' or 'contact'
	EntityID   string  `json:"entity_id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"` // cosine similarity in [0,1]
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
