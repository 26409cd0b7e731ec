package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"fileshare/internal/apperror"
	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// AccountService resolves identities to accounts and mutates their roles.
type AccountService interface {
	// Resolve returns the account of an authenticated identity, provisioning it on first use.
	Resolve(ctx context.Context, id string) (*model.Account, error)

	// Get returns an account to itself or to an admin, re-checking the protected roles.
	Get(ctx context.Context, actor *model.Account, id string) (*model.Account, error)

	// SetRoles writes both role flags of an account. Admin only.
	SetRoles(ctx context.Context, actor *model.Account, id string, isAdmin, isModerator bool) (*model.Account, error)

	// DesignateProtected makes id the protected account and the quota reviewer.
	DesignateProtected(ctx context.Context, id string) error
}

type accountService struct {
	accounts     repository.AccountRepository
	guard        *Guard
	defaultLimit int64
	log          zerolog.Logger
}

// NewAccountService constructs an AccountService. New accounts get defaultLimit bytes.
func NewAccountService(accounts repository.AccountRepository, guard *Guard, defaultLimit int64, log zerolog.Logger) AccountService {
	return &accountService{
		accounts:     accounts,
		guard:        guard,
		defaultLimit: defaultLimit,
		log:          log.With().Str("component", "accounts").Logger(),
	}
}

func (s *accountService) Resolve(ctx context.Context, id string) (*model.Account, error) {
	if id == "" {
		return nil, apperror.New(apperror.KindAuthorization, apperror.ReasonUnauthenticated, "authentication required")
	}
	a, err := s.accounts.Ensure(ctx, id, s.defaultLimit)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindPersistence, "", "failed to load account")
	}
	return a, nil
}

func (s *accountService) Get(ctx context.Context, actor *model.Account, id string) (*model.Account, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.ID != id && !actor.IsAdmin {
		return nil, apperror.New(apperror.KindAuthorization, apperror.ReasonInsufficientRole, "admin role required")
	}
	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "account", id)
	}
	if a, _, err = s.guard.Heal(ctx, a); err != nil {
		// The read itself succeeded; a failed repair is retried on the next read.
		s.log.Error().Err(err).Str("account_id", id).Msg("self-heal failed")
	}
	return a, nil
}

func (s *accountService) SetRoles(ctx context.Context, actor *model.Account, id string, isAdmin, isModerator bool) (*model.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	target, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "account", id)
	}
	if err := s.guard.CheckRoleChange(target, isAdmin, isModerator); err != nil {
		s.log.Warn().
			Str("actor_id", actor.ID).
			Str("account_id", id).
			Bool("is_admin", isAdmin).
			Bool("is_moderator", isModerator).
			Msg("rejected role change on protected account")
		return nil, err
	}
	if err := s.accounts.SetRoles(ctx, id, isAdmin, isModerator); err != nil {
		return nil, lookupErr(err, "account", id)
	}
	s.log.Info().
		Str("actor_id", actor.ID).
		Str("account_id", id).
		Bool("is_admin", isAdmin).
		Bool("is_moderator", isModerator).
		Msg("roles updated")

	updated := *target
	updated.IsAdmin, updated.IsModerator = isAdmin, isModerator
	return &updated, nil
}

func (s *accountService) DesignateProtected(ctx context.Context, id string) error {
	if id == "" {
		return apperror.New(apperror.KindValidation, apperror.ReasonInvalidInput, "protected account id is empty")
	}
	current, err := s.accounts.FindProtected(ctx)
	switch {
	case err == nil && current.ID != id:
		return apperror.New(apperror.KindConflict, "",
			"account %s is already protected; clear it before designating %s", current.ID, id)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return apperror.Wrap(err, apperror.KindPersistence, "", "failed to load protected account")
	}

	if _, err := s.accounts.Ensure(ctx, id, s.defaultLimit); err != nil {
		return apperror.Wrap(err, apperror.KindPersistence, "", "failed to provision protected account")
	}
	if err := s.accounts.Designate(ctx, id, model.CapProtected|model.CapQuotaReviewer); err != nil {
		return apperror.Wrap(err, apperror.KindPersistence, "", "failed to designate protected account")
	}
	s.log.Info().Str("account_id", id).Msg("protected account designated")
	return nil
}
