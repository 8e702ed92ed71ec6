package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-search/core"
)

type IndexShortIDCommand struct {
	writer core.IndexWriter
}

func NewIndexShortIDCommand(writer core.IndexWriter) *IndexShortIDCommand {
	return &IndexShortIDCommand{writer: writer}
}

func (c *IndexShortIDCommand) Execute(ctx context.Context, msg IndexShortIDMessage) error {
	if c == nil || c.writer == nil {
		return commandDependencyError("index writer is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	id, err := core.NormalizeShortID(msg.ShortID)
	if err != nil {
		return err
	}
	if err := c.writer.PutShortID(ctx, msg.OrgID, core.ShortIDEntry{
		ShortID:  id,
		LongID:   strings.TrimSpace(msg.LongID),
		Internal: msg.Internal,
	}); err != nil {
		return err
	}
	storeResult(ctx, IndexReceipt{
		OrgID:      strings.TrimSpace(msg.OrgID),
		Collection: core.CollectionShortIDs,
		ID:         id,
	})
	return nil
}

type IndexResourceCommand struct {
	writer core.IndexWriter
}

func NewIndexResourceCommand(writer core.IndexWriter) *IndexResourceCommand {
	return &IndexResourceCommand{writer: writer}
}

func (c *IndexResourceCommand) Execute(ctx context.Context, msg IndexResourceMessage) error {
	if c == nil || c.writer == nil {
		return commandDependencyError("index writer is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	id := strings.TrimSpace(msg.ResourceID)
	if err := c.writer.PutResource(ctx, msg.OrgID, core.ResourceEntry{
		ID:       id,
		Groups:   msg.Groups,
		Internal: msg.Internal,
	}); err != nil {
		return err
	}
	storeResult(ctx, IndexReceipt{
		OrgID:      strings.TrimSpace(msg.OrgID),
		Collection: core.CollectionResources,
		ID:         id,
	})
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
