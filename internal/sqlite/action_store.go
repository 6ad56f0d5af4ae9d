package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/rpggio/activitylog/internal/keyed"
	"github.com/rpggio/activitylog/internal/profile"
	"github.com/rpggio/activitylog/internal/sequence"
	"github.com/sourcegraph/conc/pool"
)

// StoreFactoryName identifies the action store in the keyed service graph.
const StoreFactoryName = "ActivityLogStore"

const (
	defaultMaxResults = 300
	defaultWorkers    = 4
	deleteChunkSize   = 500
)

// ErrStoreClosed is returned by a store after Shutdown.
var ErrStoreClosed = errors.New("action store is closed")

// ActionStoreOptions tune an ActionStore. Zero values select defaults.
type ActionStoreOptions struct {
	// MaxResults caps the rows a filtered query returns.
	MaxResults int
	// Workers bounds concurrent queries.
	Workers int
	// Now supplies the current time; it also fixes the location DaysAgo
	// filters are measured in.
	Now func() time.Time
}

func (o ActionStoreOptions) withDefaults() ActionStoreOptions {
	if o.MaxResults <= 0 {
		o.MaxResults = defaultMaxResults
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ActionStore implements activity.Store for one profile.
type ActionStore struct {
	db        *DB
	profileID string
	opts      ActionStoreOptions
	logger    *slog.Logger

	obsMu     sync.RWMutex
	observers []activity.Observer

	poolMu sync.RWMutex
	pool   *pool.Pool
	closed bool
}

// NewActionStore creates the store of profileID.
func NewActionStore(db *DB, profileID string, opts ActionStoreOptions, logger *slog.Logger) *ActionStore {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &ActionStore{
		db:        db,
		profileID: profileID,
		opts:      opts,
		logger:    logger.With("component", "action_store", "profile_id", profileID),
		pool:      pool.New().WithMaxGoroutines(opts.Workers),
	}
}

// NewActionStoreFactory returns the keyed factory for per-profile stores.
// Off-the-record profiles write to their original profile's store.
func NewActionStoreFactory(db *DB, opts ActionStoreOptions, logger *slog.Logger) *keyed.Factory {
	return keyed.NewFactory(StoreFactoryName, func(p *profile.Profile) keyed.Service {
		return NewActionStore(db, p.ID(), opts, logger)
	}, keyed.FactoryOptions{
		ContextToUse: keyed.OriginalProfile,
	})
}

func (s *ActionStore) ProfileID() string {
	return s.profileID
}

func (s *ActionStore) AddObserver(obs activity.Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for _, existing := range s.observers {
		if existing == obs {
			return
		}
	}
	s.observers = append(s.observers, obs)
}

func (s *ActionStore) RemoveObserver(obs activity.Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for i, existing := range s.observers {
		if existing == obs {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Append validates and stores action, assigning its ID and, when unset, its
// time. Observers are notified before Append returns.
func (s *ActionStore) Append(ctx context.Context, action *activity.Action) error {
	if err := action.Validate(); err != nil {
		return err
	}
	if action.Time.IsZero() {
		action.Time = s.opts.Now()
	}
	action.PageURL = normalizeIfValid(action.PageURL)
	action.ArgURL = normalizeIfValid(action.ArgURL)

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (
			profile_id, extension_id, action_type, api_name, args,
			page_url, page_title, arg_url, other, time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.profileID,
		action.ExtensionID,
		string(action.Type),
		action.APICall,
		action.Args,
		action.PageURL,
		action.PageTitle,
		action.ArgURL,
		action.Other,
		action.Time.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read action id: %w", err)
	}
	action.ID = id

	s.notify(*action)
	return nil
}

func (s *ActionStore) notify(action activity.Action) {
	s.obsMu.RLock()
	observers := append([]activity.Observer(nil), s.observers...)
	s.obsMu.RUnlock()

	for _, obs := range observers {
		obs.OnActionAppended(action)
	}
}

func normalizeIfValid(raw string) string {
	if raw == "" {
		return ""
	}
	if normalized, ok := activity.NormalizeURL(raw); ok {
		return normalized
	}
	return raw
}

type pendingQuery struct {
	cancel   context.CancelFunc
	canceled atomic.Bool
}

func (p *pendingQuery) Cancel() {
	p.canceled.Store(true)
	p.cancel()
}

// GetFilteredActions runs the query on the worker pool and posts done to
// reply. A canceled query never posts.
func (s *ActionStore) GetFilteredActions(ctx context.Context, filter activity.Filter, reply sequence.Poster, done func([]activity.Action, error)) activity.Pending {
	qctx, cancel := context.WithCancel(ctx)
	pending := &pendingQuery{cancel: cancel}

	deliver := func(actions []activity.Action, err error) {
		if pending.canceled.Load() {
			return
		}
		posted := reply.Post(func() {
			if pending.canceled.Load() {
				return
			}
			done(actions, err)
		})
		if !posted {
			s.logger.Debug("query result dropped, reply sequence closed")
		}
	}

	s.poolMu.RLock()
	defer s.poolMu.RUnlock()
	if s.closed {
		cancel()
		deliver(nil, ErrStoreClosed)
		return pending
	}

	s.pool.Go(func() {
		defer cancel()
		actions, err := s.query(qctx, filter)
		deliver(actions, err)
	})
	return pending
}

func (s *ActionStore) query(ctx context.Context, filter activity.Filter) ([]activity.Action, error) {
	query := `
		SELECT
			id, extension_id, action_type, api_name, args,
			page_url, page_title, arg_url, other, time
		FROM actions
		WHERE profile_id = ?
	`
	args := []interface{}{s.profileID}
	conditions := []string{}

	if filter.Type != "" && filter.Type != activity.TypeAny {
		conditions = append(conditions, "action_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ExtensionID != "" {
		conditions = append(conditions, "extension_id = ?")
		args = append(args, filter.ExtensionID)
	}
	if filter.APICall != "" {
		conditions = append(conditions, "api_name = ?")
		args = append(args, filter.APICall)
	}
	if filter.PageURL != "" {
		conditions = append(conditions, `page_url LIKE ? ESCAPE '\'`)
		args = append(args, likePrefix(filter.PageURL))
	}
	if filter.ArgURL != "" {
		conditions = append(conditions, `arg_url LIKE ? ESCAPE '\'`)
		args = append(args, likePrefix(filter.ArgURL))
	}
	if from, to, ok := filter.TimeBounds(s.opts.Now()); ok {
		conditions = append(conditions, "time >= ?")
		args = append(args, from.UnixMilli())
		if !to.IsZero() {
			conditions = append(conditions, "time < ?")
			args = append(args, to.UnixMilli())
		}
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY time DESC, id DESC LIMIT ?"
	args = append(args, s.opts.MaxResults)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	actions := []activity.Action{}
	for rows.Next() {
		var a activity.Action
		var actionType string
		var millis int64
		if err := rows.Scan(
			&a.ID,
			&a.ExtensionID,
			&actionType,
			&a.APICall,
			&a.Args,
			&a.PageURL,
			&a.PageTitle,
			&a.ArgURL,
			&a.Other,
			&millis,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.Type = activity.ActionType(actionType)
		a.Time = time.UnixMilli(millis)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action rows: %w", err)
	}
	return actions, nil
}

// RemoveActions deletes the actions with the given ids. Unknown ids are
// ignored.
func (s *ActionStore) RemoveActions(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(ids); start += deleteChunkSize {
			end := min(start+deleteChunkSize, len(ids))
			chunk := ids[start:end]

			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
			args := make([]interface{}, 0, len(chunk)+1)
			args = append(args, s.profileID)
			for _, id := range chunk {
				args = append(args, id)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM actions WHERE profile_id = ? AND id IN (`+placeholders+`)`,
				args...,
			); err != nil {
				return fmt.Errorf("failed to delete actions: %w", err)
			}
		}
		return nil
	})
}

// RemoveURLs deletes actions whose page or argument URL equals one of urls.
func (s *ActionStore) RemoveURLs(ctx context.Context, urls []activity.URL) error {
	valid := make([]string, 0, len(urls))
	for _, u := range urls {
		if u.IsValid() {
			valid = append(valid, u.String())
		}
	}
	if len(valid) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, u := range valid {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM actions WHERE profile_id = ? AND (page_url = ? OR arg_url = ?)`,
				s.profileID, u, u,
			); err != nil {
				return fmt.Errorf("failed to delete actions for url: %w", err)
			}
		}
		return nil
	})
}

// DeleteDatabase removes every action of the profile.
func (s *ActionStore) DeleteDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE profile_id = ?`, s.profileID); err != nil {
		return fmt.Errorf("failed to delete actions: %w", err)
	}
	return nil
}

// Count returns the number of stored actions of the profile.
func (s *ActionStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions WHERE profile_id = ?`, s.profileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count actions: %w", err)
	}
	return n, nil
}

// Shutdown stops accepting queries and waits for in-flight ones.
func (s *ActionStore) Shutdown() {
	s.poolMu.Lock()
	if s.closed {
		s.poolMu.Unlock()
		return
	}
	s.closed = true
	s.poolMu.Unlock()

	s.pool.Wait()
	s.logger.Debug("action store shut down")
}

func (s *ActionStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix builds a LIKE pattern matching values that start with prefix.
// SQLite's LIKE ignores ASCII case.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
