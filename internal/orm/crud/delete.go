package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Delete removes a document unless a checked relation still references it
func (o *Operations) Delete(ctx context.Context, id interface{}) error {
	// 1. Load existing document
	record, err := o.FindByID(ctx, id)
	if err != nil {
		return err
	}

	// 2. Execute before delete hooks
	if err := o.runHooks(ctx, schema.BeforeDelete, record); err != nil {
		return err
	}

	// 3. Refuse to orphan checked references
	if o.guard != nil {
		if err := o.guard.Check(ctx, o.entity.Collection, record); err != nil {
			return err
		}
	}

	// 4. Delete from the store
	if err := o.store.Delete(ctx, o.entity.Collection, record[o.entity.IDField]); err != nil {
		return fmt.Errorf("failed to delete %s %v: %w", o.entity.Collection, id, ConvertStoreError(err))
	}

	o.logger.Debug("document deleted",
		zap.String("collection", o.entity.Collection),
		zap.Any("id", id),
	)

	// 5. Execute after delete hooks
	return o.runAfterHooks(ctx, schema.AfterDelete, record)
}
