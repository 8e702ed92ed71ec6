package gojob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	searchcommand "github.com/goliatone/go-search/command"
	"github.com/goliatone/go-search/core"
)

const (
	JobIDIndexShortID  = "search.index.short_id"
	JobIDIndexResource = "search.index.resource"

	// ParamAttempt carries the delivery attempt for queue backends whose
	// deliveries do not report Attempts().
	ParamAttempt = "attempt"

	// TerminalInvalidJob marks index jobs that can never succeed.
	TerminalInvalidJob job.TerminalErrorCode = "search_invalid_job"
)

// RetryPolicy bounds how failed index jobs are retried. It satisfies
// worker.RetryPolicy so it can also drive a go-job worker.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BaseDelay:       time.Second,
		MaxDelay:        time.Minute,
		DeadLetterOnMax: true,
	}
}

// Decide returns the nack options for a failed attempt. Permanent failures
// are dead-lettered; exhausted attempts are dead-lettered or failed depending
// on DeadLetterOnMax.
func (p RetryPolicy) Decide(attempt int, err error) queue.NackOptions {
	out := queue.NackOptions{Disposition: queue.NackDispositionRetry}
	if err != nil {
		out.Reason = strings.TrimSpace(err.Error())
	}
	if attempt < 1 {
		attempt = 1
	}
	if IsPermanent(err) {
		out.Disposition = queue.NackDispositionDeadLetter
		return out
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
		return out
	}
	out.Delay = p.backoff(attempt)
	return out
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	if delay <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// IsPermanent reports whether retrying err cannot succeed.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var terminal job.NonRetryableError
	if errors.As(err, &terminal) && terminal.NonRetryable() {
		return true
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	switch rich.TextCode {
	case core.SearchErrorBadInput, core.SearchErrorInvalidFragment, core.SearchErrorArithmetic:
		return true
	}
	return rich.Category == goerrors.CategoryValidation || rich.Category == goerrors.CategoryBadInput
}

// ShortIDJob maps an index command to a go-job execution message. The
// idempotency key collapses repeated writes of the same short id.
func ShortIDJob(msg searchcommand.IndexShortIDMessage) *job.ExecutionMessage {
	orgID := strings.TrimSpace(msg.OrgID)
	return &job.ExecutionMessage{
		JobID:      JobIDIndexShortID,
		ScriptPath: searchcommand.TypeIndexShortID,
		Parameters: map[string]any{
			"org_id":   orgID,
			"short_id": strings.TrimSpace(msg.ShortID),
			"long_id":  strings.TrimSpace(msg.LongID),
			"internal": msg.Internal,
		},
		IdempotencyKey: JobIDIndexShortID + ":" + orgID + ":" + strings.TrimSpace(msg.ShortID),
	}
}

func ResourceJob(msg searchcommand.IndexResourceMessage) *job.ExecutionMessage {
	orgID := strings.TrimSpace(msg.OrgID)
	groups := make(map[string]any, len(msg.Groups))
	for name, value := range msg.Groups {
		groups[name] = value
	}
	return &job.ExecutionMessage{
		JobID:      JobIDIndexResource,
		ScriptPath: searchcommand.TypeIndexResource,
		Parameters: map[string]any{
			"org_id":      orgID,
			"resource_id": strings.TrimSpace(msg.ResourceID),
			"groups":      groups,
			"internal":    msg.Internal,
		},
		IdempotencyKey: JobIDIndexResource + ":" + orgID + ":" + strings.TrimSpace(msg.ResourceID),
	}
}

func DecodeShortIDJob(msg *job.ExecutionMessage) (searchcommand.IndexShortIDMessage, error) {
	if msg == nil || msg.JobID != JobIDIndexShortID {
		return searchcommand.IndexShortIDMessage{}, fmt.Errorf("gojob: expected %s job", JobIDIndexShortID)
	}
	return searchcommand.IndexShortIDMessage{
		OrgID:    stringParam(msg.Parameters, "org_id"),
		ShortID:  stringParam(msg.Parameters, "short_id"),
		LongID:   stringParam(msg.Parameters, "long_id"),
		Internal: boolParam(msg.Parameters, "internal"),
	}, nil
}

func DecodeResourceJob(msg *job.ExecutionMessage) (searchcommand.IndexResourceMessage, error) {
	if msg == nil || msg.JobID != JobIDIndexResource {
		return searchcommand.IndexResourceMessage{}, fmt.Errorf("gojob: expected %s job", JobIDIndexResource)
	}
	out := searchcommand.IndexResourceMessage{
		OrgID:      stringParam(msg.Parameters, "org_id"),
		ResourceID: stringParam(msg.Parameters, "resource_id"),
		Internal:   boolParam(msg.Parameters, "internal"),
	}
	switch groups := msg.Parameters["groups"].(type) {
	case map[string]string:
		out.Groups = make(map[string]string, len(groups))
		for name, value := range groups {
			out.Groups[name] = value
		}
	case map[string]any:
		out.Groups = make(map[string]string, len(groups))
		for name, value := range groups {
			out.Groups[name] = fmt.Sprint(value)
		}
	}
	return out, nil
}

type Enqueuer struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuer(enqueuer queue.Enqueuer) *Enqueuer {
	return &Enqueuer{enqueuer: enqueuer}
}

// EnqueueShortID validates before enqueueing so malformed writes never reach the queue.
func (e *Enqueuer) EnqueueShortID(ctx context.Context, msg searchcommand.IndexShortIDMessage) (queue.EnqueueReceipt, error) {
	if e == nil || e.enqueuer == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	if err := msg.Validate(); err != nil {
		return queue.EnqueueReceipt{}, err
	}
	return e.enqueuer.Enqueue(ctx, ShortIDJob(msg))
}

func (e *Enqueuer) EnqueueResource(ctx context.Context, msg searchcommand.IndexResourceMessage) (queue.EnqueueReceipt, error) {
	if e == nil || e.enqueuer == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	if err := msg.Validate(); err != nil {
		return queue.EnqueueReceipt{}, err
	}
	return e.enqueuer.Enqueue(ctx, ResourceJob(msg))
}

// Worker drains index jobs into an IndexWriter through the index commands.
type Worker struct {
	dequeuer  queue.Dequeuer
	shortIDs  *searchcommand.IndexShortIDCommand
	resources *searchcommand.IndexResourceCommand
	policy    worker.RetryPolicy
	hooks     []worker.Hook
	logger    glog.Logger
}

// NewWorker builds a worker. A nil policy uses DefaultRetryPolicy; any
// worker.RetryPolicy, including go-job's DefaultRetryPolicy, is accepted.
func NewWorker(
	dequeuer queue.Dequeuer,
	writer core.IndexWriter,
	policy worker.RetryPolicy,
	logger glog.Logger,
	hooks ...worker.Hook,
) (*Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("gojob: index writer is required")
	}
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	active := make([]worker.Hook, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			active = append(active, hook)
		}
	}
	return &Worker{
		dequeuer:  dequeuer,
		shortIDs:  searchcommand.NewIndexShortIDCommand(writer),
		resources: searchcommand.NewIndexResourceCommand(writer),
		policy:    policy,
		hooks:     active,
		logger:    glog.Ensure(logger),
	}, nil
}

// ProcessNext handles one delivery. It returns ErrNoDelivery when the queue
// is empty; otherwise the returned error is the job failure, if any, after
// the delivery has been acked or nacked.
func (w *Worker) ProcessNext(ctx context.Context) error {
	if w == nil || w.dequeuer == nil {
		return fmt.Errorf("gojob: worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return ErrNoDelivery
	}
	return w.Handle(ctx, delivery)
}

var ErrNoDelivery = errors.New("gojob: no delivery available")

func (w *Worker) Handle(ctx context.Context, delivery queue.Delivery) error {
	msg := delivery.Message()
	event := worker.Event{
		Delivery:  delivery,
		Message:   msg,
		Attempt:   DeliveryAttempt(delivery),
		StartedAt: time.Now(),
	}
	w.emit(func(hook worker.Hook) { hook.OnStart(ctx, event) })

	runErr := w.run(ctx, msg)
	event.Duration = time.Since(event.StartedAt)
	if runErr == nil {
		if err := delivery.Ack(ctx); err != nil {
			return fmt.Errorf("gojob: ack %s: %w", jobID(msg), err)
		}
		w.emit(func(hook worker.Hook) { hook.OnSuccess(ctx, event) })
		return nil
	}

	opts := w.policy.Decide(event.Attempt, runErr)
	event.Err = runErr
	event.Delay = opts.Delay
	w.logger.Warn("search index job failed",
		"job_id", jobID(msg),
		"attempt", event.Attempt,
		"disposition", string(opts.Disposition),
		"error", runErr,
	)
	if err := delivery.Nack(ctx, opts); err != nil {
		return fmt.Errorf("gojob: nack %s: %w (job error: %v)", jobID(msg), err, runErr)
	}
	if opts.Disposition == queue.NackDispositionRetry {
		w.emit(func(hook worker.Hook) { hook.OnRetry(ctx, event) })
	} else {
		w.emit(func(hook worker.Hook) { hook.OnFailure(ctx, event) })
	}
	return runErr
}

func (w *Worker) emit(fn func(worker.Hook)) {
	for _, hook := range w.hooks {
		fn(hook)
	}
}

// DeliveryAttempt reads the attempt from the delivery when the backend
// tracks it, then from the ParamAttempt parameter, defaulting to 1.
func DeliveryAttempt(delivery queue.Delivery) int {
	if delivery == nil {
		return 1
	}
	if reader, ok := delivery.(interface{ Attempts() int }); ok {
		if attempts := reader.Attempts(); attempts > 0 {
			return attempts
		}
	}
	if msg := delivery.Message(); msg != nil {
		if value := intParam(msg.Parameters, ParamAttempt); value > 0 {
			return value
		}
	}
	return 1
}

func (w *Worker) run(ctx context.Context, msg *job.ExecutionMessage) error {
	switch jobID(msg) {
	case JobIDIndexShortID:
		decoded, err := DecodeShortIDJob(msg)
		if err != nil {
			return terminal(err)
		}
		return terminalIfPermanent(w.shortIDs.Execute(ctx, decoded))
	case JobIDIndexResource:
		decoded, err := DecodeResourceJob(msg)
		if err != nil {
			return terminal(err)
		}
		return terminalIfPermanent(w.resources.Execute(ctx, decoded))
	default:
		return terminal(goerrors.New(fmt.Sprintf("gojob: unknown job %q", jobID(msg)), goerrors.CategoryBadInput).
			WithTextCode(core.SearchErrorBadInput))
	}
}

// terminal marks err non-retryable for any worker.RetryPolicy.
func terminal(err error) error {
	return job.NewTerminalError(TerminalInvalidJob, strings.TrimSpace(err.Error()), err)
}

func terminalIfPermanent(err error) error {
	if err != nil && IsPermanent(err) {
		return terminal(err)
	}
	return err
}

// LoggingHook reports go-job worker lifecycle events for index jobs.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.log().Debug("search index job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.log().Info("search index job succeeded", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.log().Error("search index job failed", eventFields(event)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.log().Warn("search index job retrying", eventFields(event)...)
}

func (h *LoggingHook) log() glog.Logger {
	if h == nil {
		return glog.Nop()
	}
	return glog.Ensure(h.logger)
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := []any{
		"job_id", jobID(message),
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

func jobID(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.JobID)
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	if typed, ok := value.(string); ok {
		return typed
	}
	return fmt.Sprint(value)
}

func boolParam(params map[string]any, key string) bool {
	switch typed := params[key].(type) {
	case bool:
		return typed
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(typed))
		return parsed
	default:
		return false
	}
}

func intParam(params map[string]any, key string) int {
	switch typed := params[key].(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case string:
		parsed, _ := strconv.Atoi(strings.TrimSpace(typed))
		return parsed
	default:
		return 0
	}
}

var (
	_ worker.Hook        = (*LoggingHook)(nil)
	_ worker.RetryPolicy = RetryPolicy{}
)
