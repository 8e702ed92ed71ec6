package sqlstore

import (
	"time"

	"github.com/goliatone/go-search/core"
	"github.com/uptrace/bun"
)

type shortIDRecord struct {
	bun.BaseModel `bun:"table:search_short_ids,alias:ssi"`

	ID        string    `bun:"id,pk"`
	OrgID     string    `bun:"org_id,notnull"`
	ShortKey  string    `bun:"short_key,notnull"`
	LongID    string    `bun:"long_id,notnull"`
	Internal  bool      `bun:"internal,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type resourceRecord struct {
	bun.BaseModel `bun:"table:search_resources,alias:sr"`

	ID         string    `bun:"id,pk"`
	OrgID      string    `bun:"org_id,notnull"`
	ResourceID string    `bun:"resource_id,notnull"`
	Internal   bool      `bun:"internal,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type resourceGroupRecord struct {
	bun.BaseModel `bun:"table:search_resource_groups,alias:srg"`

	ID         string    `bun:"id,pk"`
	OrgID      string    `bun:"org_id,notnull"`
	ResourceID string    `bun:"resource_id,notnull"`
	GroupName  string    `bun:"group_name,notnull"`
	GroupValue string    `bun:"group_value,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *shortIDRecord) toRaw() core.RawRecord {
	record := core.RawRecord{
		core.FieldID:      r.ShortKey,
		core.FieldShortID: r.ShortKey,
		core.FieldLongID:  r.LongID,
	}
	if r.Internal {
		record[core.FieldInternal] = true
	}
	return record
}

func (r *resourceRecord) toRaw(groups map[string]string) core.RawRecord {
	values := make(map[string]any, len(groups))
	for name, value := range groups {
		values[name] = value
	}
	record := core.RawRecord{
		core.FieldID:     r.ResourceID,
		core.FieldGroups: values,
	}
	if r.Internal {
		record[core.FieldInternal] = true
	}
	return record
}
