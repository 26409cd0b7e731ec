package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"fileshare/internal/apperror"
	"fileshare/internal/metrics"
	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// Guard enforces that the protected account always keeps both roles.
type Guard struct {
	accounts repository.AccountRepository
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(accounts repository.AccountRepository, m *metrics.Metrics, log zerolog.Logger) *Guard {
	return &Guard{
		accounts: accounts,
		metrics:  m,
		log:      log.With().Str("component", "guard").Logger(),
	}
}

// CheckRoleChange rejects clearing a role on the protected account, whoever asks.
func (g *Guard) CheckRoleChange(target *model.Account, isAdmin, isModerator bool) error {
	if target.IsProtected() && (!isAdmin || !isModerator) {
		return apperror.New(apperror.KindProtectedResource, "",
			"the protected account must keep its admin and moderator roles")
	}
	return nil
}

// CheckQuotaTarget rejects changes to the protected account's usage or limit by anyone
// but itself.
func (g *Guard) CheckQuotaTarget(actor, target *model.Account) error {
	return checkQuotaTarget(actor, target)
}

func checkQuotaTarget(actor, target *model.Account) error {
	if target.IsProtected() && actor.ID != target.ID {
		return apperror.New(apperror.KindProtectedResource, "",
			"the protected account's quota can only be changed by itself")
	}
	return nil
}

// Heal restores both roles on a if it is the protected account and one of them is missing.
// It writes nothing when the invariant holds. The returned account reflects the repair.
func (g *Guard) Heal(ctx context.Context, a *model.Account) (*model.Account, bool, error) {
	if !a.IsProtected() || (a.IsAdmin && a.IsModerator) {
		return a, false, nil
	}
	if err := g.accounts.SetRoles(ctx, a.ID, true, true); err != nil {
		return a, false, apperror.Wrap(err, apperror.KindPersistence, "", "failed to restore protected roles")
	}
	g.metrics.SelfHeals.Inc()
	g.log.Warn().
		Str("account_id", a.ID).
		Bool("was_admin", a.IsAdmin).
		Bool("was_moderator", a.IsModerator).
		Msg("protected account roles restored")

	healed := *a
	healed.IsAdmin, healed.IsModerator = true, true
	return &healed, true, nil
}

// HealProtected loads the protected account, if any, and heals it.
func (g *Guard) HealProtected(ctx context.Context) (bool, error) {
	a, err := g.accounts.FindProtected(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, apperror.Wrap(err, apperror.KindPersistence, "", "failed to load protected account")
	}
	_, healed, err := g.Heal(ctx, a)
	return healed, err
}
