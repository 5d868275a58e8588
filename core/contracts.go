package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Adapter is the lifecycle contract every third-party integration implements.
type Adapter interface {
	Initialize(ctx context.Context, cfg IntegrationConfig) error
	Authenticate(ctx context.Context, creds IntegrationCredentials) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) (HealthResult, error)
	// WebhookHandler returns nil when the adapter accepts no inbound events.
	WebhookHandler() WebhookHandler
}

type WebhookHandler interface {
	HandleWebhook(ctx context.Context, payload WebhookPayload) (WebhookResult, error)
}

type WebhookHandlerFunc func(ctx context.Context, payload WebhookPayload) (WebhookResult, error)

func (f WebhookHandlerFunc) HandleWebhook(ctx context.Context, payload WebhookPayload) (WebhookResult, error) {
	return f(ctx, payload)
}

// RequestVerifier authenticates an inbound request with the registration
// secret. Adapters implement it when the vendor signature covers more than
// the raw body.
type RequestVerifier interface {
	VerifyWebhook(secret string, body []byte, headers map[string]string) bool
}

type RequestVerifierFunc func(secret string, body []byte, headers map[string]string) bool

func (f RequestVerifierFunc) VerifyWebhook(secret string, body []byte, headers map[string]string) bool {
	return f(secret, body, headers)
}

// WebhookRegistrar is the subset of the dispatcher the registry drives.
type WebhookRegistrar interface {
	Register(name string, cfg WebhookDeliveryConfig, handler WebhookHandler) error
	Replace(name string, cfg WebhookDeliveryConfig, handler WebhookHandler) error
	Unregister(name string) error
	Registered(name string) bool
}

// DeliveryReceipt summarizes an outbound delivery.
type DeliveryReceipt struct {
	DeliveryID string
	Webhook    string
	Event      string
	Attempts   int
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

type WebhookDeliverer interface {
	Deliver(ctx context.Context, name string, event string, data any) (DeliveryReceipt, error)
}

type SyncTracker interface {
	Start(ctx context.Context, op SyncOperation) (SyncOperation, error)
	UpdateProgress(ctx context.Context, id string, progress SyncProgress) (SyncOperation, bool)
	Complete(ctx context.Context, id string, status SyncStatus, errMsg string) (SyncOperation, error)
	Get(id string) (SyncOperation, bool)
	List(integration string) []SyncOperation
}

// SyncReporter is handed to executors so they can report progress.
type SyncReporter interface {
	Progress(ctx context.Context, progress SyncProgress)
}

// SyncExecutor runs the body of a tracked sync operation.
type SyncExecutor interface {
	ExecuteSync(ctx context.Context, op SyncOperation, reporter SyncReporter) error
}

type SyncExecutorFunc func(ctx context.Context, op SyncOperation, reporter SyncReporter) error

func (f SyncExecutorFunc) ExecuteSync(ctx context.Context, op SyncOperation, reporter SyncReporter) error {
	return f(ctx, op, reporter)
}

type SyncSnapshotWriter interface {
	SaveSyncOperations(ctx context.Context, ops []SyncOperation) error
}

type SyncSnapshotReader interface {
	LoadSyncOperations(ctx context.Context) ([]SyncOperation, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	Idempotency          string
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
