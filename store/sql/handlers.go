package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedHandlers adapts a model keyed by a string column to the uuid based
// repository handlers. prefix is stripped before parsing and restored when
// the repository assigns a new id.
func keyedHandlers[T any](newRecord func() T, prefix string, key func(T) *string) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			id := key(record)
			if id == nil {
				return uuid.Nil
			}
			parsed, err := uuid.Parse(strings.TrimPrefix(strings.TrimSpace(*id), prefix))
			if err != nil {
				return uuid.Nil
			}
			return parsed
		},
		SetID: func(record T, id uuid.UUID) {
			if target := key(record); target != nil {
				*target = prefix + id.String()
			}
		},
		GetIdentifier: func() string { return "id" },
		GetIdentifierValue: func(record T) string {
			if id := key(record); id != nil {
				return strings.TrimSpace(*id)
			}
			return ""
		},
	}
}

func syncOperationHandlers() repository.ModelHandlers[*syncOperationRecord] {
	return keyedHandlers(
		func() *syncOperationRecord { return &syncOperationRecord{} },
		"sync_",
		func(record *syncOperationRecord) *string {
			if record == nil {
				return nil
			}
			return &record.ID
		},
	)
}

func webhookDeliveryHandlers() repository.ModelHandlers[*webhookDeliveryRecord] {
	return keyedHandlers(
		func() *webhookDeliveryRecord { return &webhookDeliveryRecord{} },
		"",
		func(record *webhookDeliveryRecord) *string {
			if record == nil {
				return nil
			}
			return &record.ID
		},
	)
}
