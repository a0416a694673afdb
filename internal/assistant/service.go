// Package assistant sequences a chat turn: apply the requested mutation,
// persist the plan, generate a reply and persist the transcript.
package assistant

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/pmteam/internal/audit"
	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/diff"
	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/intelligence"
	"github.com/felixgeelhaar/pmteam/internal/log"
	"github.com/felixgeelhaar/pmteam/internal/metrics"
	"github.com/felixgeelhaar/pmteam/internal/mutation"
	"github.com/felixgeelhaar/pmteam/internal/plan"
	"github.com/felixgeelhaar/pmteam/internal/store"
	"github.com/felixgeelhaar/pmteam/internal/telemetry"
)

// Turn outcomes recorded in metrics.
const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// SendRequest is one chat turn.
type SendRequest struct {
	Ref     store.RunRef
	Message string
	// Mutation is applied before the reply is generated; nil for none
	Mutation mutation.Mutation
}

// SendResult is what a committed turn returns.
type SendResult struct {
	// Conversation is the transcript tail after the turn
	Conversation    conversation.Conversation `json:"conversation"`
	Reply           conversation.Message      `json:"reply"`
	SystemUpdates   []string                  `json:"system_updates"`
	Provenance      conversation.Provenance   `json:"provenance"`
	PlanFingerprint string                    `json:"plan_fingerprint"`
	Attempts        []intelligence.Attempt    `json:"attempts,omitempty"`
	Truncated       bool                      `json:"truncated,omitempty"`
}

// Options configure a Service.
type Options struct {
	Conversation config.ConversationConfig
	Audit        *audit.Logger
	Logger       *log.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// Service exposes the conversation operations over a store.
type Service struct {
	store   store.Store
	chain   *intelligence.Chain
	audit   *audit.Logger
	logger  *log.Logger
	metrics *metrics.Metrics
	conv    config.ConversationConfig
	now     func() time.Time
}

// New builds a Service. Zero conversation limits take the defaults.
func New(s store.Store, chain *intelligence.Chain, opts Options) *Service {
	defaults := config.DefaultConfig().Conversation
	if opts.Conversation.Retention <= 0 {
		opts.Conversation.Retention = defaults.Retention
	}
	if opts.Conversation.Tail <= 0 {
		opts.Conversation.Tail = defaults.Tail
	}
	if opts.Conversation.MaxMessageChars <= 0 {
		opts.Conversation.MaxMessageChars = defaults.MaxMessageChars
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if chain == nil {
		chain = intelligence.NewChain(nil, intelligence.WithLogger(opts.Logger), intelligence.WithMetrics(opts.Metrics))
	}
	return &Service{
		store:   s,
		chain:   chain,
		audit:   opts.Audit,
		logger:  log.OrDefault(opts.Logger),
		metrics: opts.Metrics,
		conv:    opts.Conversation,
		now:     opts.Now,
	}
}

// Store returns the underlying store.
func (s *Service) Store() store.Store { return s.store }

// GetConversation returns the run's full transcript.
func (s *Service) GetConversation(ctx context.Context, ref store.RunRef) (conversation.Conversation, error) {
	return s.store.LoadConversation(ctx, ref)
}

// Plan returns the run's current plan.
func (s *Service) Plan(ctx context.Context, ref store.RunRef) (*plan.Plan, error) {
	return s.store.LoadPlan(ctx, ref)
}

// Diff compares the plans of two runs.
func (s *Service) Diff(ctx context.Context, from, to store.RunRef) (diff.PlanDiff, error) {
	a, err := s.store.LoadPlan(ctx, from)
	if err != nil {
		return diff.PlanDiff{}, err
	}
	b, err := s.store.LoadPlan(ctx, to)
	if err != nil {
		return diff.PlanDiff{}, err
	}
	s.metrics.RecordDiff()
	return diff.Plans(a, b), nil
}

// ImportRun stores p as a new run of project.
func (s *Service) ImportRun(ctx context.Context, project, initiative string, p *plan.Plan) (store.Run, error) {
	run, err := s.store.CreateRun(ctx, project, initiative, p)
	if err != nil {
		return store.Run{}, err
	}
	s.record(audit.NewEvent(audit.EventRunCreated, run.Project, run.ID).
		WithData("initiative", initiative))
	return run, nil
}

// AuditTrail returns the project's recorded events.
func (s *Service) AuditTrail(project string) ([]audit.Event, error) {
	return s.audit.Events(project)
}

// SendMessage runs one chat turn. Either the whole turn is persisted or, on
// error, nothing is.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	start := time.Now()
	mode := mutation.ModeNone
	if req.Mutation != nil {
		mode = req.Mutation.Mode()
	}

	ctx, span := telemetry.StartTurnSpan(ctx, req.Ref.Project, req.Ref.Run, string(mode))
	defer span.End()
	logger := s.logger.WithContext(ctx).WithRun(req.Ref.Project, req.Ref.Run)

	res, err := s.send(ctx, logger, req)

	outcome := outcomeOK
	switch {
	case err != nil && isCallerError(err):
		outcome = outcomeRejected
	case err != nil:
		outcome = outcomeError
	case res.Provenance.Degraded:
		outcome = outcomeDegraded
	}
	s.metrics.RecordTurn(outcome, time.Since(start))

	if err != nil {
		s.metrics.RecordError(err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RecordSuccess(span,
		attribute.String("tier", res.Provenance.Tier),
		attribute.Bool("degraded", res.Provenance.Degraded),
	)
	return res, nil
}

func (s *Service) send(ctx context.Context, logger *log.Logger, req SendRequest) (*SendResult, error) {
	message := req.Message
	if strings.TrimSpace(message) == "" {
		if req.Mutation == nil {
			return nil, errors.NewEmptyRequestError()
		}
		message = ""
	}

	truncated := false
	if utf8.RuneCountInString(message) > s.conv.MaxMessageChars {
		logger.Warn("message truncated",
			"chars", utf8.RuneCountInString(message), "limit", s.conv.MaxMessageChars)
		message = string([]rune(message)[:s.conv.MaxMessageChars])
		truncated = true
	}

	unlock, err := s.store.LockRun(ctx, req.Ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.store.LoadPlan(ctx, req.Ref)
	if err != nil {
		return nil, err
	}
	transcript, err := s.store.LoadConversation(ctx, req.Ref)
	if err != nil {
		return nil, err
	}

	updates := []string{}
	working := current
	planSaved := false

	if req.Mutation != nil {
		next, err := mutation.Apply(current, req.Mutation)
		if err != nil {
			return nil, err
		}
		next.UpdatedAt = s.now().UTC().Format(time.RFC3339)
		if err := s.store.SavePlan(ctx, req.Ref, next); err != nil {
			return nil, err
		}
		planSaved = true
		working = next

		summary := req.Mutation.Summary()
		updates = append(updates, summary)
		transcript = transcript.Append(conversation.NewMessage(conversation.SenderSystem, summary, s.now()))
		logger.Info("plan mutated", "mode", string(req.Mutation.Mode()), "summary", summary)
	}

	prompt := message
	if message != "" {
		transcript = transcript.Append(conversation.NewMessage(conversation.SenderUser, message, s.now()))
	} else {
		// A mutation-only turn asks about the change it just made.
		prompt = updates[0]
	}

	reply := s.chain.Generate(ctx, intelligence.Prompt{
		Plan:    working,
		Recent:  transcript.Tail(s.conv.Tail),
		Message: prompt,
	})

	provenance := conversation.Provenance{Tier: reply.Tier, Degraded: reply.Degraded}
	agentMsg := conversation.NewMessage(conversation.SenderAgent, reply.Text, s.now())
	agentMsg.Provenance = &provenance
	transcript = transcript.Append(agentMsg).Trim(s.conv.Retention)

	if err := s.store.SaveConversation(ctx, req.Ref, transcript); err != nil {
		if planSaved {
			s.rollback(ctx, logger, req.Ref, current)
		}
		return nil, err
	}

	if req.Mutation != nil {
		s.record(mutationEvent(req.Ref, req.Mutation))
		s.metrics.RecordMutation(string(req.Mutation.Mode()))
	}
	if reply.Degraded {
		logger.Warn("reply degraded", "tier", reply.Tier)
		s.record(audit.NewEvent(audit.EventReplyDegraded, req.Ref.Project, req.Ref.Run).
			WithData("tier", reply.Tier))
	}

	return &SendResult{
		Conversation:    transcript.Tail(s.conv.Tail),
		Reply:           agentMsg,
		SystemUpdates:   updates,
		Provenance:      provenance,
		PlanFingerprint: working.Fingerprint(),
		Attempts:        reply.Attempts,
		Truncated:       truncated,
	}, nil
}

// rollback restores the plan saved before the turn. It runs even when the
// request context is already cancelled.
func (s *Service) rollback(ctx context.Context, logger *log.Logger, ref store.RunRef, previous *plan.Plan) {
	if err := s.store.SavePlan(context.WithoutCancel(ctx), ref, previous); err != nil {
		logger.WithError(err).Error("plan rollback failed")
		return
	}
	logger.Warn("transcript not saved, plan change rolled back")
}

func (s *Service) record(e *audit.Event) {
	if err := s.audit.Log(e); err != nil {
		s.logger.WithError(err).Warn("audit event not recorded", "event", string(e.Type))
	}
}

func mutationEvent(ref store.RunRef, m mutation.Mutation) *audit.Event {
	switch m := m.(type) {
	case mutation.AddBlocker:
		return audit.NewEvent(audit.EventBlockerAdded, ref.Project, ref.Run).
			WithData("blocker", strings.TrimSpace(m.Blocker)).
			WithData("mitigate", m.Mitigate)
	case mutation.Reprioritize:
		return audit.NewEvent(audit.EventTasksReprioritized, ref.Project, ref.Run).
			WithData("order", m.Order)
	case mutation.UpdateStatus:
		return audit.NewEvent(audit.EventStatusUpdated, ref.Project, ref.Run).
			WithData("statuses", m.Statuses)
	default:
		return audit.NewEvent(audit.EventType(strings.ToUpper(string(m.Mode()))), ref.Project, ref.Run)
	}
}

func isCallerError(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrCodeEmptyRequest, errors.ErrCodeInvalidMutation, errors.ErrCodeUnknownMode,
		errors.ErrCodeRunNotFound, errors.ErrCodeRunInvalid, errors.ErrCodeProjectInvalid:
		return true
	}
	return false
}
