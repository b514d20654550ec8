package crud

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/docref/internal/orm/docstore"
	"github.com/conduit-lang/docref/internal/orm/integrity"
	"github.com/conduit-lang/docref/internal/orm/schema"
)

// Create validates the relations of doc and stores it.
// A document without an identifier gets a random UUID.
func (o *Operations) Create(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	// Make a copy to avoid mutating input
	record := doc.Clone()
	if record == nil {
		record = docstore.Document{}
	}

	// 1. Assign the identifier
	if docstore.IsEmpty(record[o.entity.IDField]) {
		record[o.entity.IDField] = uuid.NewString()
	}

	// 2. Execute before create hooks
	if err := o.runHooks(ctx, schema.BeforeCreate, record); err != nil {
		return nil, err
	}

	// 3. Validate relations
	if o.validator != nil {
		if err := o.validator.Validate(ctx, o.entity.Collection, record, integrity.ActionCreate); err != nil {
			return nil, err
		}
	}

	// 4. Insert into the store
	id := record[o.entity.IDField]
	if err := o.store.Insert(ctx, o.entity.Collection, id, record); err != nil {
		return nil, fmt.Errorf("failed to insert %s %v: %w", o.entity.Collection, id, ConvertStoreError(err))
	}

	o.logger.Debug("document created",
		zap.String("collection", o.entity.Collection),
		zap.Any("id", id),
	)

	// 5. Execute after create hooks
	if err := o.runAfterHooks(ctx, schema.AfterCreate, record); err != nil {
		return record, err
	}

	return record, nil
}
