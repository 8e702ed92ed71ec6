package command

import (
	"strings"

	"github.com/goliatone/go-search/core"
)

const (
	TypeIndexShortID  = "search.command.short_id.index"
	TypeIndexResource = "search.command.resource.index"
)

type IndexShortIDMessage struct {
	OrgID    string `json:"org_id"`
	ShortID  string `json:"short_id"`
	LongID   string `json:"long_id"`
	Internal bool   `json:"internal,omitempty"`
}

func (IndexShortIDMessage) Type() string { return TypeIndexShortID }

func (m IndexShortIDMessage) Validate() error {
	violations := commandViolations().Require("org_id", m.OrgID, "org id is required")
	if _, err := core.NormalizeShortID(m.ShortID); err != nil {
		violations.Add("short_id", "short id must contain exactly nine digits")
	}
	return violations.Require("long_id", m.LongID, "long id is required").Err()
}

type IndexResourceMessage struct {
	OrgID      string            `json:"org_id"`
	ResourceID string            `json:"resource_id"`
	Groups     map[string]string `json:"groups"`
	Internal   bool              `json:"internal,omitempty"`
}

func (IndexResourceMessage) Type() string { return TypeIndexResource }

func (m IndexResourceMessage) Validate() error {
	violations := commandViolations().
		Require("org_id", m.OrgID, "org id is required").
		Require("resource_id", m.ResourceID, "resource id is required")
	for name := range m.Groups {
		if strings.TrimSpace(name) == "" {
			violations.Add("groups", "group names must not be empty")
			break
		}
	}
	return violations.Err()
}

// IndexReceipt is stored in the command result collector after a write.
type IndexReceipt struct {
	OrgID      string `json:"org_id"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
}
