package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/integrity"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Update merges changes into the stored document and replaces it.
// The merged document is validated as a whole; a nil value removes the field.
func (o *Operations) Update(ctx context.Context, id interface{}, changes docstore.Document) (docstore.Document, error) {
	// 1. Load the existing document
	existing, err := o.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. The identifier is immutable
	if newID, ok := changes[o.entity.IDField]; ok && !docstore.SameValue(newID, existing[o.entity.IDField]) {
		return nil, fmt.Errorf("%w: %s %v", ErrImmutableID, o.entity.Collection, id)
	}

	// 3. Merge changes
	record := mergeChanges(existing, changes)

	// 4. Execute before update hooks
	if err := o.runHooks(ctx, schema.BeforeUpdate, record); err != nil {
		return nil, err
	}

	// 5. Validate relations
	if o.validator != nil {
		if err := o.validator.Validate(ctx, o.entity.Collection, record, integrity.ActionUpdate); err != nil {
			return nil, err
		}
	}

	// 6. Replace in the store
	if err := o.store.Replace(ctx, o.entity.Collection, existing[o.entity.IDField], record); err != nil {
		return nil, fmt.Errorf("failed to update %s %v: %w", o.entity.Collection, id, ConvertStoreError(err))
	}

	o.logger.Debug("document updated",
		zap.String("collection", o.entity.Collection),
		zap.Any("id", id),
	)

	// 7. Execute after update hooks
	if err := o.runAfterHooks(ctx, schema.AfterUpdate, record); err != nil {
		return record, err
	}

	return record, nil
}

// mergeChanges applies changes on a copy of existing
func mergeChanges(existing, changes docstore.Document) docstore.Document {
	merged := existing.Clone()
	for key, value := range changes.Clone() {
		if value == nil {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}
	return merged
}
