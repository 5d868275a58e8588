package gojob

import (
	"fmt"
	"strings"

	job "github.com/goliatone/go-job"

	"github.com/goliatone/go-integrations/core"
)

// JobIDSyncRun is the job id the registry stamps on enqueued sync operations.
const JobIDSyncRun = core.DefaultSyncJobID

// SyncJob is the decoded payload of a sync run message.
type SyncJob struct {
	OperationID string
	Integration string
	Kind        core.SyncKind
	EntityType  string
}

// ParseSyncJob reads the sync parameters the registry stamps on a job. The
// idempotency key stands in for a missing operation id.
func ParseSyncJob(msg *core.JobExecutionMessage) (SyncJob, error) {
	if msg == nil {
		return SyncJob{}, fmt.Errorf("gojob: execution message is required")
	}
	out := SyncJob{
		OperationID: stringParam(msg.Parameters, "sync_operation_id"),
		Integration: stringParam(msg.Parameters, "integration"),
		Kind:        core.SyncKind(stringParam(msg.Parameters, "kind")),
		EntityType:  stringParam(msg.Parameters, "entity_type"),
	}
	if out.OperationID == "" {
		out.OperationID = strings.TrimSpace(msg.IdempotencyKey)
	}
	if out.Integration == "" {
		out.Integration = strings.TrimSpace(msg.ScriptPath)
	}
	if out.OperationID == "" {
		return out, fmt.Errorf("gojob: job %q carries no sync operation id", msg.JobID)
	}
	return out, nil
}

// SyncOperationID extracts the operation id carried by a sync job message.
func SyncOperationID(msg *core.JobExecutionMessage) string {
	parsed, _ := ParseSyncJob(msg)
	return parsed.OperationID
}

// ToExecutionMessage maps a core job message onto go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	out := &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
	out.Parameters = cloneParams(msg.Parameters)
	return out
}

// FromExecutionMessage maps a go-job message back onto core.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	out := &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
	out.Parameters = cloneParams(msg.Parameters)
	return out
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return strings.TrimSpace(value)
}

func cloneParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
