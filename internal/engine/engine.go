package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"caseflow/internal/events"
	"caseflow/internal/graph"
	"caseflow/internal/repo"
)

// Engine hosts the case and task orchestrators. Provider calls require an
// explicit access token resolved at the request boundary; the engine never
// reads ambient session state.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Graph  graph.Provider
	Events events.Writer
	Log    *log.Logger
	Now    func() time.Time
}

var (
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

func New(db *sql.DB, provider graph.Provider, logger *log.Logger) Engine {
	if logger == nil {
		logger = log.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Graph:  provider,
		Events: events.Writer{DB: db},
		Log:    logger,
		Now:    time.Now,
	}
}

const timeFormat = time.RFC3339

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(timeFormat)
}

func newID() string {
	return uuid.NewString()
}

// parseDate accepts RFC3339 or a bare date and normalizes to RFC3339 UTC.
func parseDate(v string) (time.Time, error) {
	if ts, err := time.Parse(timeFormat, v); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", v, ErrBadRequest)
	}
	return ts.UTC(), nil
}

func requireToken(token string) error {
	if token == "" {
		return fmt.Errorf("provider access token missing: %w", ErrUnauthorized)
	}
	return nil
}

// mirrorOp is one independent external deletion/cancellation.
type mirrorOp struct {
	kind string
	id   string
	run  func(context.Context) error
}

// bestEffort executes every op regardless of individual failures. Errors are
// logged with resource context and swallowed; deletion flows and saga
// compensation must never abort halfway through a mirror cleanup.
func (e Engine) bestEffort(ctx context.Context, ops []mirrorOp) {
	for _, op := range ops {
		if err := op.run(ctx); err != nil {
			e.Log.Warn("mirror cleanup failed", "resource", op.kind, "id", op.id, "err", err)
		}
	}
}

func (e Engine) appendEvent(ctx context.Context, evtType, entityKind, entityID, actorID string, payload events.EventPayload) {
	if err := e.Events.Append(ctx, evtType, entityKind, entityID, actorID, payload); err != nil {
		e.Log.Warn("append event failed", "type", evtType, "err", err)
	}
}
