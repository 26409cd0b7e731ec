package service

import (
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel"

	"fileshare/internal/apperror"
	"fileshare/internal/model"
)

// now is the service clock. Tests replace it.
var now = func() time.Time { return time.Now().UTC() }

var tracer = otel.Tracer("fileshare/internal/service")

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// lookupErr turns a repository read error into NotFound or PersistenceError.
func lookupErr(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.New(apperror.KindNotFound, "", "%s %s not found", what, id)
	}
	return apperror.Wrap(err, apperror.KindPersistence, "", "failed to load %s", what)
}

func requireActor(actor *model.Account) error {
	if actor == nil || actor.ID == "" {
		return apperror.New(apperror.KindAuthorization, apperror.ReasonUnauthenticated, "authentication required")
	}
	return nil
}

func requireAdmin(actor *model.Account) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin {
		return apperror.New(apperror.KindAuthorization, apperror.ReasonInsufficientRole, "admin role required")
	}
	return nil
}
