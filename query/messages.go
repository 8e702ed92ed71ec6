package query

import "github.com/goliatone/go-search/core"

const (
	TypeSearchByShortID = "search.query.short_id"
	TypeSearchInGroup   = "search.query.group"
)

type SearchByShortIDMessage struct {
	OrgID    string          `json:"org_id"`
	Fragment string          `json:"fragment"`
	Params   core.PageParams `json:"params"`
}

func (SearchByShortIDMessage) Type() string { return TypeSearchByShortID }

func (m SearchByShortIDMessage) Validate() error {
	return queryViolations().
		Require("org_id", m.OrgID, "org id is required").
		Require("fragment", m.Fragment, "fragment is required").
		Err()
}

type SearchInGroupMessage struct {
	OrgID  string          `json:"org_id"`
	Group  string          `json:"group"`
	Query  string          `json:"query"`
	Params core.PageParams `json:"params"`
}

func (SearchInGroupMessage) Type() string { return TypeSearchInGroup }

func (m SearchInGroupMessage) Validate() error {
	violations := queryViolations().
		Require("org_id", m.OrgID, "org id is required").
		Require("group", m.Group, "group is required")
	if m.Query == "" {
		violations.Add("query", "query is required")
	}
	return violations.Err()
}
