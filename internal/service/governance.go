package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fileshare/internal/apperror"
	"fileshare/internal/metrics"
	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// CreateRequestInput is an admin's ask to change another account's limit.
type CreateRequestInput struct {
	TargetID string
	NewLimit int64
	Reason   string
}

// ReviewInput is the reviewer's verdict on a pending request.
type ReviewInput struct {
	Decision model.Decision
	Comment  string
}

// RequestListResult is a page of quota modification requests.
type RequestListResult struct {
	Items []model.QuotaModificationRequest `json:"data"`
	Total int                              `json:"total"`
}

// ChangeLogResult is a page of the quota change log.
type ChangeLogResult struct {
	Items []model.QuotaChangeLogEntry `json:"data"`
	Total int                         `json:"total"`
}

// GovernanceService runs the quota modification workflow:
// pending -> approved | rejected, with no way out of a terminal state.
type GovernanceService interface {
	// Quota returns the caller's own usage summary.
	Quota(ctx context.Context, actor *model.Account) (*model.QuotaSummary, error)

	// CreateRequest files a pending request. Only non-protected admins may ask, and never
	// for the protected account.
	CreateRequest(ctx context.Context, actor *model.Account, in CreateRequestInput) (*model.QuotaModificationRequest, error)

	// ReviewRequest approves or rejects a pending request. Only a quota reviewer may decide.
	ReviewRequest(ctx context.Context, actor *model.Account, id string, in ReviewInput) (*model.QuotaModificationRequest, error)

	// SetOwnLimit is the protected account's direct path to change its own limit.
	SetOwnLimit(ctx context.Context, actor *model.Account, newLimit int64, reason string) (*model.Account, error)

	GetRequest(ctx context.Context, actor *model.Account, id string) (*model.QuotaModificationRequest, error)
	ListRequests(ctx context.Context, actor *model.Account, status model.RequestStatus, limit, offset int) (*RequestListResult, error)
	ChangeLog(ctx context.Context, actor *model.Account, targetID string, limit, offset int) (*ChangeLogResult, error)
}

type governanceService struct {
	accounts repository.AccountRepository
	requests repository.QuotaRequestRepository
	changes  repository.QuotaLogRepository
	ledger   *Ledger
	guard    *Guard
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewGovernanceService constructs a GovernanceService.
func NewGovernanceService(
	accounts repository.AccountRepository,
	requests repository.QuotaRequestRepository,
	changes repository.QuotaLogRepository,
	ledger *Ledger,
	guard *Guard,
	m *metrics.Metrics,
	log zerolog.Logger,
) GovernanceService {
	return &governanceService{
		accounts: accounts,
		requests: requests,
		changes:  changes,
		ledger:   ledger,
		guard:    guard,
		metrics:  m,
		log:      log.With().Str("component", "governance").Logger(),
	}
}

func (s *governanceService) Quota(ctx context.Context, actor *model.Account) (*model.QuotaSummary, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	a, err := s.accounts.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupErr(err, "account", actor.ID)
	}
	sum := a.Summary()
	return &sum, nil
}

func (s *governanceService) CreateRequest(ctx context.Context, actor *model.Account, in CreateRequestInput) (*model.QuotaModificationRequest, error) {
	ctx, span := tracer.Start(ctx, "GovernanceService.CreateRequest")
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if actor.IsProtected() {
		return nil, apperror.New(apperror.KindAuthorization, apperror.ReasonInsufficientRole,
			"the protected account changes limits directly, not through requests")
	}
	in.TargetID = strings.TrimSpace(in.TargetID)
	if in.TargetID == "" {
		return nil, apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput, "target_id is required")
	}
	if in.NewLimit < 0 {
		return nil, apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput, "new_limit must not be negative")
	}

	target, err := s.accounts.FindByID(ctx, in.TargetID)
	if err != nil {
		return nil, lookupErr(err, "account", in.TargetID)
	}
	if target.IsProtected() {
		return nil, apperror.New(apperror.KindProtectedResource, "",
			"the protected account's quota cannot be the subject of a request")
	}
	if in.NewLimit < target.StorageUsed {
		return nil, apperror.New(apperror.KindQuotaExceeded, apperror.ReasonBelowUsed,
			"new limit is below the target's current usage")
	}

	req := &model.QuotaModificationRequest{
		ID:          uuid.NewString(),
		RequesterID: actor.ID,
		TargetID:    target.ID,
		OldLimit:    target.StorageLimit,
		NewLimit:    in.NewLimit,
		Reason:      strings.TrimSpace(in.Reason),
		Status:      model.StatusPending,
		CreatedAt:   now(),
	}
	stored, err := s.requests.Create(ctx, req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindPersistence, "", "failed to save quota request")
	}

	s.log.Info().
		Str("request_id", stored.ID).
		Str("requester_id", actor.ID).
		Str("target_id", target.ID).
		Int64("old_limit", stored.OldLimit).
		Int64("new_limit", stored.NewLimit).
		Msg("quota request created")
	return stored, nil
}

func (s *governanceService) ReviewRequest(ctx context.Context, actor *model.Account, id string, in ReviewInput) (*model.QuotaModificationRequest, error) {
	ctx, span := tracer.Start(ctx, "GovernanceService.ReviewRequest")
	defer span.End()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.CanReviewQuota() {
		return nil, apperror.New(apperror.KindAuthorization, apperror.ReasonInsufficientRole,
			"only the quota reviewer may decide requests")
	}
	if !in.Decision.Valid() {
		return nil, apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput,
			"decision must be %q or %q", model.DecisionApprove, model.DecisionReject)
	}

	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "quota request", id)
	}
	if req.Status != model.StatusPending {
		return nil, apperror.New(apperror.KindConflict, "", "quota request is already %s", req.Status)
	}

	reviewedAt := now()
	reviewer := actor.ID
	resolved := *req
	resolved.Status = model.RequestStatus(in.Decision)
	resolved.ReviewerID = &reviewer
	resolved.ReviewedAt = &reviewedAt
	if c := strings.TrimSpace(in.Comment); c != "" {
		resolved.ReviewComment = &c
	}

	outcome := metrics.OutcomeRejected
	if in.Decision == model.DecisionApprove {
		outcome = metrics.OutcomeApproved
		err = s.approve(ctx, actor, &resolved)
	} else {
		err = s.requests.Resolve(ctx, &resolved)
	}
	if err != nil {
		return nil, reviewErr(err, req)
	}
	s.metrics.GovernanceDecisions.WithLabelValues(outcome).Inc()

	s.log.Info().
		Str("request_id", req.ID).
		Str("reviewer_id", actor.ID).
		Str("target_id", req.TargetID).
		Str("decision", string(in.Decision)).
		Msg("quota request reviewed")
	return &resolved, nil
}

// approve applies an approved request. The request, the new limit and its log entry are
// written together, so a failure leaves the request pending and the limit untouched.
func (s *governanceService) approve(ctx context.Context, actor *model.Account, req *model.QuotaModificationRequest) error {
	target, err := s.ledger.Account(ctx, req.TargetID)
	if err != nil {
		return err
	}
	// the target may have been designated protected after the request was filed
	if err := s.guard.CheckQuotaTarget(actor, target); err != nil {
		return err
	}
	if req.NewLimit < target.StorageUsed {
		return repository.ErrBelowUsed
	}
	return s.requests.Approve(ctx, req, &model.QuotaChangeLogEntry{
		ID:        uuid.NewString(),
		ActorID:   actor.ID,
		TargetID:  req.TargetID,
		Action:    model.ActionRequestApproved,
		OldLimit:  target.StorageLimit,
		NewLimit:  req.NewLimit,
		Reason:    req.Reason,
		CreatedAt: now(),
	})
}

func reviewErr(err error, req *model.QuotaModificationRequest) error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrStale):
		return apperror.New(apperror.KindConflict, "", "quota request was resolved concurrently")
	case errors.Is(err, repository.ErrBelowUsed):
		return apperror.New(apperror.KindQuotaExceeded, apperror.ReasonBelowUsed,
			"new limit %s is below the target's current usage", humanize.IBytes(uint64(req.NewLimit)))
	case errors.Is(err, sql.ErrNoRows):
		return apperror.New(apperror.KindNotFound, "", "account %s not found", req.TargetID)
	default:
		return apperror.Wrap(err, apperror.KindPersistence, "", "failed to save review")
	}
}

func (s *governanceService) SetOwnLimit(ctx context.Context, actor *model.Account, newLimit int64, reason string) (*model.Account, error) {
	ctx, span := tracer.Start(ctx, "GovernanceService.SetOwnLimit")
	defer span.End()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsProtected() {
		return nil, apperror.New(apperror.KindAuthorization, apperror.ReasonInsufficientRole,
			"limits of other accounts change through a quota request")
	}

	current, err := s.accounts.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupErr(err, "account", actor.ID)
	}
	if err := s.ledger.SetLimit(ctx, actor.ID, newLimit); err != nil {
		return nil, err
	}

	s.appendChange(ctx, &model.QuotaChangeLogEntry{
		ActorID:  actor.ID,
		TargetID: actor.ID,
		Action:   model.ActionDirectChange,
		OldLimit: current.StorageLimit,
		NewLimit: newLimit,
		Reason:   strings.TrimSpace(reason),
	})
	s.metrics.GovernanceDecisions.WithLabelValues(metrics.OutcomeDirect).Inc()

	updated := *current
	updated.StorageLimit = newLimit
	updated.UpdatedAt = now()
	return &updated, nil
}

func (s *governanceService) GetRequest(ctx context.Context, actor *model.Account, id string) (*model.QuotaModificationRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "quota request", id)
	}
	if !actor.IsAdmin && !actor.CanReviewQuota() && req.RequesterID != actor.ID && req.TargetID != actor.ID {
		return nil, apperror.New(apperror.KindNotFound, "", "quota request %s not found", id)
	}
	return req, nil
}

func (s *governanceService) ListRequests(ctx context.Context, actor *model.Account, status model.RequestStatus, limit, offset int) (*RequestListResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	switch status {
	case "", model.StatusPending, model.StatusApproved, model.StatusRejected:
	default:
		return nil, apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput, "unknown status %q", status)
	}
	limit, offset = normalizePage(limit, offset)
	res, err := s.requests.List(ctx, status, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindPersistence, "", "failed to list quota requests")
	}
	return &RequestListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *governanceService) ChangeLog(ctx context.Context, actor *model.Account, targetID string, limit, offset int) (*ChangeLogResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	res, err := s.changes.List(ctx, targetID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindPersistence, "", "failed to list quota changes")
	}
	return &ChangeLogResult{Items: res.Items, Total: res.Total}, nil
}

// appendChange writes an audit entry for a limit change that is already applied.
// The change stands even if the entry cannot be written, so the failure is only logged.
func (s *governanceService) appendChange(ctx context.Context, e *model.QuotaChangeLogEntry) {
	e.ID = uuid.NewString()
	e.CreatedAt = now()
	if err := s.changes.Append(ctx, e); err != nil {
		s.log.Error().Err(err).
			Str("actor_id", e.ActorID).
			Str("target_id", e.TargetID).
			Str("action", string(e.Action)).
			Int64("old_limit", e.OldLimit).
			Int64("new_limit", e.NewLimit).
			Msg("failed to append quota change log entry")
	}
}
