package probe

import (
	"bytes"
	"encoding/json"
)

// InstanceInfo is the subset of /api/v2/instance and /api/v1/instance the
// report uses. The two API versions disagree on a few shapes (usage vs stats,
// object vs boolean registrations); both are accepted.
type InstanceInfo struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Domain      string `json:"domain,omitempty"` // v2
	URI         string `json:"uri,omitempty"`    // v1

	Usage *InstanceUsage `json:"usage,omitempty"` // v2
	Stats *InstanceStats `json:"stats,omitempty"` // v1

	// RawRegistrations is an object in v2 and a boolean in v1.
	RawRegistrations json.RawMessage `json:"registrations,omitempty"`
	ApprovalRequired bool            `json:"approval_required,omitempty"` // v1

	Configuration *InstanceConfiguration `json:"configuration,omitempty"`
}

// InstanceUsage is the v2 usage block.
type InstanceUsage struct {
	Users struct {
		ActiveMonth int64 `json:"active_month"`
	} `json:"users"`
}

// InstanceStats is the v1 stats block.
type InstanceStats struct {
	UserCount   int64 `json:"user_count"`
	StatusCount int64 `json:"status_count"`
	DomainCount int64 `json:"domain_count"`
}

// InstanceConfiguration holds server limits advertised by the API.
type InstanceConfiguration struct {
	Statuses         *StatusesConfig `json:"statuses,omitempty"`
	MediaAttachments *MediaConfig    `json:"media_attachments,omitempty"`
}

// StatusesConfig holds post limits.
type StatusesConfig struct {
	MaxCharacters int `json:"max_characters"`
}

// MediaConfig holds upload limits.
type MediaConfig struct {
	SupportedMimeTypes []string `json:"supported_mime_types"`
}

// Registrations describes whether sign-ups are open.
type Registrations struct {
	Enabled          bool `json:"enabled"`
	ApprovalRequired bool `json:"approval_required"`
}

// Registrations decodes the registrations field for either API version.
// The second return value is false when the field is absent or unreadable.
func (i *InstanceInfo) Registrations() (Registrations, bool) {
	raw := bytes.TrimSpace(i.RawRegistrations)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Registrations{}, false
	}
	var enabled bool
	if err := json.Unmarshal(raw, &enabled); err == nil {
		return Registrations{Enabled: enabled, ApprovalRequired: i.ApprovalRequired}, true
	}
	var reg Registrations
	if err := json.Unmarshal(raw, &reg); err == nil {
		return reg, true
	}
	return Registrations{}, false
}

// NodeInfo is the subset of a NodeInfo 2.x document the report uses.
type NodeInfo struct {
	Version           string         `json:"version"`
	Software          NodeSoftware   `json:"software"`
	Protocols         []string       `json:"protocols,omitempty"`
	OpenRegistrations bool           `json:"openRegistrations"`
	Usage             NodeUsage      `json:"usage"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// NodeSoftware identifies the server implementation.
type NodeSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NodeUsage holds the usage counters of a NodeInfo document.
type NodeUsage struct {
	Users struct {
		Total       int64 `json:"total"`
		ActiveMonth int64 `json:"activeMonth"`
	} `json:"users"`
	LocalPosts int64 `json:"localPosts"`
}

// NodeName returns metadata.nodeName, or "" when absent.
func (n *NodeInfo) NodeName() string {
	if s, ok := n.Metadata["nodeName"].(string); ok {
		return s
	}
	return ""
}

// SecurityMaxScore is the number of header checks.
const SecurityMaxScore = 5

// SecurityChecks holds the five independent header checks.
type SecurityChecks struct {
	HTTPS               bool `json:"https"`
	HSTS                bool `json:"hsts"`
	CSP                 bool `json:"csp"`
	XFrameOptions       bool `json:"x_frame_options"`
	XContentTypeOptions bool `json:"x_content_type_options"`
}

// Score counts the passing checks (0–5).
func (s SecurityChecks) Score() int {
	n := 0
	for _, ok := range []bool{s.HTTPS, s.HSTS, s.CSP, s.XFrameOptions, s.XContentTypeOptions} {
		if ok {
			n++
		}
	}
	return n
}
