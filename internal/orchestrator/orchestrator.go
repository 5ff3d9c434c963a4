// Package orchestrator is the single entry point for assistant requests.
//
// Each request gets a fresh run: its own conversation state store and its own
// tool bridge with untouched quotas. The orchestrator validates the request
// shape, delegates planning to the router, retries transient infrastructure
// failures with jittered exponential backoff, and always returns exactly one
// Result — callers never see a raw internal error.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/jaredassist/jared/internal/agent"
	"github.com/jaredassist/jared/internal/bridge"
	"github.com/jaredassist/jared/internal/googleauth"
	"github.com/jaredassist/jared/internal/instrumentation"
	"github.com/jaredassist/jared/internal/llm"
	"github.com/jaredassist/jared/internal/logging"
	"github.com/jaredassist/jared/internal/mailbox"
	"github.com/jaredassist/jared/internal/outbox"
	"github.com/jaredassist/jared/internal/router"
	"github.com/jaredassist/jared/internal/state"
)

// KindSendDraft confirms a previously drafted message for delivery. Unlike
// the agent-driven kinds it goes straight to the provider; no model is
// involved in sending mail.
const KindSendDraft = "SendDraft"

// Terminal statuses of an orchestration run.
const (
	StatusCompleted      = "Completed"
	StatusPartialFailure = "PartialFailure"
	StatusFailed         = "Failed"
)

// Failure kinds reported to callers.
const (
	FailInvalidRequest      = "InvalidRequest"
	FailAuthExpired         = "AuthExpired"
	FailForbiddenTool       = "ForbiddenTool"
	FailAgentExhausted      = "AgentExhausted"
	FailMalformedOutput     = "MalformedOutput"
	FailProviderUnavailable = "ProviderUnavailable"
	FailRateLimited         = "RateLimited"
	FailModelUnavailable    = "ModelUnavailable"
	FailModelTimeout        = "ModelTimeout"
	FailInvalidRecipient    = "InvalidRecipient"
	FailNotFound            = "NotFound"
	FailCancelled           = "Cancelled"
	FailInternal            = "Internal"
)

// Request is one unit of work submitted to the orchestrator.
type Request struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Params    map[string]string `json:"params"`
	Requester string            `json:"requester,omitempty"`
}

// Failure describes why a run failed, with a stable kind callers can branch
// on.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result is the single outcome of a run. Payload is one of ReadResult,
// DraftReceipt, AnalysisReport or SendReceipt depending on the request kind;
// on PartialFailure it holds whatever sub-results succeeded.
type Result struct {
	RequestID string   `json:"requestId"`
	Status    string   `json:"status"`
	Payload   any      `json:"payload,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Failure   *Failure `json:"failure,omitempty"`
	Elapsed   time.Duration `json:"-"`
}

// DraftReceipt is the payload of a completed Draft run. The token is the
// handle a later SendDraft request uses to confirm delivery.
type DraftReceipt struct {
	Draft            mailbox.Draft `json:"draft"`
	Note             string        `json:"note,omitempty"`
	IdempotencyToken string        `json:"idempotencyToken"`
}

// AnalysisReport is the payload of a completed AnalyzeConversation run.
type AnalysisReport struct {
	ThreadID      string            `json:"threadId"`
	Analysis      agent.Analysis    `json:"analysis"`
	ReaderSummary *agent.ReadResult `json:"readerSummary,omitempty"`
}

// SendReceipt is the payload of a completed SendDraft run. Duplicate marks a
// confirmation that found the draft already delivered.
type SendReceipt struct {
	MessageID        string `json:"messageId"`
	IdempotencyToken string `json:"idempotencyToken"`
	Duplicate        bool   `json:"duplicate,omitempty"`
}

// DraftOutbox stores drafts between composition and confirmation.
// *outbox.Store is the production implementation.
type DraftOutbox interface {
	SavePending(ctx context.Context, p outbox.PendingDraft) error
	Get(ctx context.Context, token string) (*outbox.PendingDraft, error)
	MarkSent(ctx context.Context, token, messageID string) error
}

// Options configures an Orchestrator beyond its two hard dependencies.
type Options struct {
	Quotas  bridge.Quotas
	Roles   map[string]agent.Role
	Outbox  DraftOutbox
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics

	// MaxAttempts bounds how often a run is retried on transient model
	// failures. Zero means the default of 3 total attempts.
	MaxAttempts uint

	// RetryInitialInterval seeds the exponential backoff between attempts.
	RetryInitialInterval time.Duration
}

// Orchestrator validates, runs and reports on assistant requests.
type Orchestrator struct {
	provider    mailbox.Provider
	router      *router.Router
	quotas      bridge.Quotas
	outbox      DraftOutbox
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	maxAttempts uint
	retrySeed   time.Duration
}

// New creates an orchestrator over a mail provider and a model backend.
func New(provider mailbox.Provider, backend llm.Backend, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	retrySeed := opts.RetryInitialInterval
	if retrySeed <= 0 {
		retrySeed = 500 * time.Millisecond
	}
	return &Orchestrator{
		provider:    provider,
		router:      router.New(backend, opts.Roles, logger),
		quotas:      opts.Quotas,
		outbox:      opts.Outbox,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		retrySeed:   retrySeed,
	}
}

// Handle runs one request to completion and returns its Result. It never
// panics through to the caller and never returns an error value; failures are
// reported inside the Result.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (res Result) {
	started := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	logger := logging.WithRequest(o.logger, req.ID)

	ctx, span := instrumentation.StartRunSpan(ctx, req.Kind, req.ID)
	defer span.End()

	o.metrics.IncrementActiveRuns(ctx)
	defer o.metrics.DecrementActiveRuns(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("orchestration panicked", logging.Kind(req.Kind), slog.Any("panic", r))
			res = o.failed(req, FailInternal, fmt.Sprintf("internal error: %v", r))
		}
		res.RequestID = req.ID
		res.Elapsed = time.Since(started)
		if res.Failure != nil {
			instrumentation.SetSpanError(span, errors.New(res.Failure.Message))
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		o.metrics.RecordOrchestrationWithRequester(ctx, req.Kind, res.Status, req.Requester, res.Elapsed)
		logger.Info("orchestration finished",
			logging.Kind(req.Kind),
			logging.Status(statusLogValue(res.Status)),
			slog.String("result", res.Status),
			slog.Duration(logging.KeyDuration, res.Elapsed))
	}()

	if err := validate(req); err != nil {
		return o.failed(req, FailInvalidRequest, err.Error())
	}

	if req.Kind == KindSendDraft {
		return o.sendDraft(ctx, req, logger)
	}
	return o.run(ctx, req, logger)
}

func statusLogValue(status string) string {
	switch status {
	case StatusFailed:
		return logging.StatusError
	case StatusPartialFailure:
		return logging.StatusPartial
	default:
		return logging.StatusSuccess
	}
}

func (o *Orchestrator) failed(req Request, kind, msg string) Result {
	return Result{
		RequestID: req.ID,
		Status:    StatusFailed,
		Failure:   &Failure{Kind: kind, Message: msg},
	}
}

func validate(req Request) error {
	switch req.Kind {
	case router.KindReadFilter:
		if req.Params["query"] == "" {
			return fmt.Errorf("ReadFilter requires a query parameter")
		}
	case router.KindDraft:
		if req.Params["instruction"] == "" {
			return fmt.Errorf("Draft requires an instruction parameter")
		}
		if req.Params["to"] == "" && req.Params["threadId"] == "" {
			return fmt.Errorf("Draft requires a recipient or a threadId")
		}
	case router.KindAnalyzeConversation:
		if req.Params["threadId"] == "" {
			return fmt.Errorf("AnalyzeConversation requires a threadId parameter")
		}
	case KindSendDraft:
		if req.Params["idempotencyToken"] == "" {
			return fmt.Errorf("SendDraft requires an idempotencyToken parameter")
		}
	default:
		return fmt.Errorf("unknown request kind %q", req.Kind)
	}
	return nil
}

// run executes an agent-driven request kind with a fresh run scope.
func (o *Orchestrator) run(ctx context.Context, req Request, logger *slog.Logger) Result {
	st := state.NewStore(req.ID)
	defer st.Close()
	br := bridge.New(o.provider, st, o.quotas, logger)

	results, retryErr := o.routeWithRetry(ctx, req, br, st)

	var succeeded, failedRoles []string
	for _, role := range sortedRoles(results) {
		if results[role].Err != nil {
			failedRoles = append(failedRoles, role)
		} else {
			succeeded = append(succeeded, role)
		}
	}

	if len(failedRoles) == 0 && retryErr == nil {
		return o.completed(ctx, req, results)
	}

	var warnings []string
	for _, role := range failedRoles {
		err := results[role].Err
		warnings = append(warnings, fmt.Sprintf("%s: %s: %v", role, classify(err), err))
	}

	if len(succeeded) == 0 {
		primary := primaryFailure(results, retryErr)
		return Result{
			Status:   StatusFailed,
			Warnings: warnings,
			Failure:  &Failure{Kind: classify(primary), Message: primary.Error()},
		}
	}

	// Some roles delivered: surface their output with the failures as
	// warnings instead of discarding completed work.
	res := o.completed(ctx, req, results)
	res.Status = StatusPartialFailure
	res.Warnings = append(res.Warnings, warnings...)
	return res
}

// routeWithRetry reruns the plan on transient model failures, keeping the
// best result per role across attempts. Quotas and hydrated state persist
// across attempts because they are scoped to the run, not the attempt.
func (o *Orchestrator) routeWithRetry(ctx context.Context, req Request, br *bridge.Bridge, st *state.Store) (map[string]router.AgentResult, error) {
	merged := make(map[string]router.AgentResult)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = o.retrySeed

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		results, err := o.router.Route(ctx, req.Kind, req.Params, br, st)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		for role, res := range results {
			if prev, ok := merged[role]; ok && prev.Err == nil && res.Err != nil {
				continue
			}
			merged[role] = res
		}
		if terr := firstTransient(merged); terr != nil {
			return struct{}{}, terr
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(o.maxAttempts),
	)
	return merged, err
}

func firstTransient(results map[string]router.AgentResult) error {
	for _, role := range sortedRoles(results) {
		if err := results[role].Err; err != nil && isTransient(err) {
			return err
		}
	}
	return nil
}

func isTransient(err error) bool {
	return llm.IsTransient(err) || mailbox.IsTransient(err)
}

// primaryFailure picks the failure reported to the caller: the most
// downstream role's error, since that is the work the request actually asked
// for.
func primaryFailure(results map[string]router.AgentResult, retryErr error) error {
	for _, role := range []string{agent.RoleDrafter, agent.RoleAnalyzer, agent.RoleReader} {
		if res, ok := results[role]; ok && res.Err != nil {
			return res.Err
		}
	}
	if retryErr != nil {
		return retryErr
	}
	return errors.New("run produced no results")
}

func sortedRoles(results map[string]router.AgentResult) []string {
	roles := make([]string, 0, len(results))
	for role := range results {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// completed builds the kind-specific payload from successful role outputs.
func (o *Orchestrator) completed(ctx context.Context, req Request, results map[string]router.AgentResult) Result {
	res := Result{Status: StatusCompleted}

	switch req.Kind {
	case router.KindReadFilter:
		if out, warn := decodeReadResult(results[agent.RoleReader]); out != nil {
			res.Payload = out
		} else if warn != "" {
			res.Warnings = append(res.Warnings, warn)
		}

	case router.KindDraft:
		drafter, ok := results[agent.RoleDrafter]
		if !ok || drafter.Err != nil {
			// Reader-only partial: fall back to its summaries.
			if out, _ := decodeReadResult(results[agent.RoleReader]); out != nil {
				res.Payload = out
			}
			break
		}
		var out agent.DraftResult
		if err := json.Unmarshal(drafter.Output, &out); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("drafter output did not decode: %v", err))
			break
		}
		receipt := DraftReceipt{
			Draft:            out.Draft,
			Note:             out.Note,
			IdempotencyToken: uuid.NewString(),
		}
		if o.outbox != nil {
			err := o.outbox.SavePending(ctx, outbox.PendingDraft{
				Token:     receipt.IdempotencyToken,
				RequestID: req.ID,
				Draft:     out.Draft,
			})
			if err != nil {
				// The draft itself is good; only the confirmation handle
				// is lost.
				res.Status = StatusPartialFailure
				res.Warnings = append(res.Warnings, fmt.Sprintf("draft not recorded for confirmation: %v", err))
			}
		}
		res.Payload = receipt

	case router.KindAnalyzeConversation:
		analyzer, ok := results[agent.RoleAnalyzer]
		if !ok || analyzer.Err != nil {
			// Reader-only partial: fall back to its summaries.
			if out, _ := decodeReadResult(results[agent.RoleReader]); out != nil {
				res.Payload = out
			}
			break
		}
		var analysis agent.Analysis
		if err := json.Unmarshal(analyzer.Output, &analysis); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("analyzer output did not decode: %v", err))
			break
		}
		report := AnalysisReport{
			ThreadID: req.Params["threadId"],
			Analysis: analysis,
		}
		report.ReaderSummary, _ = decodeReadResult(results[agent.RoleReader])
		res.Payload = report
	}

	return res
}

func decodeReadResult(res router.AgentResult) (*agent.ReadResult, string) {
	if res.Err != nil || len(res.Output) == 0 {
		return nil, ""
	}
	var out agent.ReadResult
	if err := json.Unmarshal(res.Output, &out); err != nil {
		return nil, fmt.Sprintf("reader output did not decode: %v", err)
	}
	return &out, ""
}

// sendDraft confirms delivery of a previously composed draft. The provider
// send runs detached from the caller's cancellation and is never retried; an
// ambiguous outcome stays ambiguous rather than risking duplicate mail. A
// second confirmation of the same token returns the recorded message id.
func (o *Orchestrator) sendDraft(ctx context.Context, req Request, logger *slog.Logger) Result {
	if o.outbox == nil {
		return o.failed(req, FailInternal, "no draft outbox configured")
	}
	token := req.Params["idempotencyToken"]

	pending, err := o.outbox.Get(ctx, token)
	if errors.Is(err, outbox.ErrNotFound) {
		return o.failed(req, FailInvalidRequest, err.Error())
	}
	if err != nil {
		return o.failed(req, FailInternal, err.Error())
	}

	if pending.Sent() {
		logger.Info("send confirmation deduplicated",
			logging.Thread(pending.Draft.ThreadID),
			slog.String("message_id", pending.SentMessageID))
		return Result{
			Status: StatusCompleted,
			Payload: SendReceipt{
				MessageID:        pending.SentMessageID,
				IdempotencyToken: token,
				Duplicate:        true,
			},
		}
	}

	id, err := o.provider.SendMessage(context.WithoutCancel(ctx), &pending.Draft, token)
	if err != nil {
		return o.failed(req, classify(err), err.Error())
	}

	res := Result{
		Status:  StatusCompleted,
		Payload: SendReceipt{MessageID: id, IdempotencyToken: token},
	}
	if err := o.outbox.MarkSent(ctx, token, id); err != nil {
		// Delivered but not recorded: a repeat confirmation could resend,
		// so the caller has to know.
		res.Status = StatusPartialFailure
		res.Warnings = append(res.Warnings, fmt.Sprintf("sent as %s but not recorded: %v", id, err))
	}
	return res
}

// classify maps an internal error onto the stable failure kind callers see.
func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailCancelled
	case errors.Is(err, agent.ErrForbiddenTool):
		return FailForbiddenTool
	case errors.Is(err, agent.ErrExhausted):
		return FailAgentExhausted
	case errors.Is(err, agent.ErrBadOutput), errors.Is(err, llm.ErrMalformed):
		return FailMalformedOutput
	case errors.Is(err, llm.ErrTimeout):
		return FailModelTimeout
	case errors.Is(err, llm.ErrUnavailable):
		return FailModelUnavailable
	case errors.Is(err, googleauth.ErrAuthExpired):
		return FailAuthExpired
	case errors.Is(err, mailbox.ErrRateLimited):
		return FailRateLimited
	case errors.Is(err, mailbox.ErrInvalidRecipient):
		return FailInvalidRecipient
	case errors.Is(err, mailbox.ErrNotFound):
		return FailNotFound
	case errors.Is(err, mailbox.ErrUnavailable):
		return FailProviderUnavailable
	default:
		return FailInternal
	}
}
