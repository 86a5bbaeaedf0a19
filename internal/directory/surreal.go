package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/nfrund/chatline/internal/database"
	"github.com/nfrund/chatline/internal/domain"
)

const (
	userTable    = "chat_user"
	counterTable = "chat_counter"
)

// userRecord is the stored form of a user.
type userRecord struct {
	UID     int64  `json:"uid"`
	Name    string `json:"name"`
	NameKey string `json:"name_key"`
	State   int    `json:"state"`
}

func (r userRecord) identity() domain.UserIdentity {
	return domain.UserIdentity{ID: r.UID, DisplayName: r.Name, State: domain.UserState(r.State)}
}

type counterRecord struct {
	Value int64 `json:"value"`
}

// Surreal is a Directory persisted in SurrealDB. Ids are allocated by
// atomically incrementing a counter record, and a unique index on the folded
// name keeps one user per name.
type Surreal struct {
	conn *database.Connection
}

// NewSurreal wraps an established connection.
func NewSurreal(conn *database.Connection) *Surreal {
	return &Surreal{conn: conn}
}

// Init defines the table indexes. It is safe to call on every start.
func (s *Surreal) Init(ctx context.Context) error {
	return s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		stmts := []string{
			"DEFINE TABLE IF NOT EXISTS " + userTable + " SCHEMALESS",
			"DEFINE INDEX IF NOT EXISTS chat_user_name_key ON " + userTable + " FIELDS name_key UNIQUE",
			"DEFINE INDEX IF NOT EXISTS chat_user_uid ON " + userTable + " FIELDS uid UNIQUE",
		}
		for _, stmt := range stmts {
			if err := database.Execute(ctx, db, stmt, nil); err != nil {
				return fmt.Errorf("failed to initialize user directory: %w", err)
			}
		}
		return nil
	})
}

func (s *Surreal) findByKey(ctx context.Context, key string) (*userRecord, error) {
	var rec *userRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rec, err = database.QueryOne[userRecord](ctx, db,
			"SELECT uid, name, name_key, state FROM "+userTable+" WHERE name_key = $key",
			map[string]any{"key": key})
		return err
	})
	return rec, err
}

func (s *Surreal) FindByName(ctx context.Context, name string) (domain.UserIdentity, error) {
	rec, err := s.findByKey(ctx, domain.FoldName(name))
	if err != nil {
		return domain.UserIdentity{}, domain.Unexpected("directory.FindByName", err)
	}
	if rec == nil {
		return domain.UserIdentity{}, domain.NotFound("directory.FindByName", "user "+name)
	}
	return rec.identity(), nil
}

func (s *Surreal) Exists(ctx context.Context, name string) (bool, error) {
	rec, err := s.findByKey(ctx, domain.FoldName(name))
	if err != nil {
		return false, domain.Unexpected("directory.Exists", err)
	}
	return rec != nil, nil
}

func (s *Surreal) SetState(ctx context.Context, id int64, state domain.UserState) error {
	if !state.Valid() {
		return domain.Errorf(domain.ErrValidation, "directory.SetState", "invalid state %d", int(state))
	}

	var rec *userRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rec, err = database.QueryOne[userRecord](ctx, db,
			"UPDATE "+userTable+" SET state = $state WHERE uid = $uid RETURN AFTER",
			map[string]any{"uid": id, "state": int(state)})
		return err
	})
	if err != nil {
		return domain.Unexpected("directory.SetState", err)
	}
	if rec == nil {
		return domain.Errorf(domain.ErrNotFound, "directory.SetState", "user %d", id)
	}
	return nil
}

func (s *Surreal) AddOrUpdate(ctx context.Context, name string) (domain.UserIdentity, bool, error) {
	name = strings.TrimSpace(name)
	candidate := domain.UserIdentity{DisplayName: name, State: domain.StateNew}
	if err := candidate.Validate(); err != nil {
		return domain.UserIdentity{}, false, err
	}
	key := domain.FoldName(name)

	var (
		rec     *userRecord
		created bool
	)
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rec, err = database.QueryOne[userRecord](ctx, db,
			"UPDATE "+userTable+" SET name = $name WHERE name_key = $key RETURN AFTER",
			map[string]any{"name": name, "key": key})
		if err != nil || rec != nil {
			return err
		}

		counter, err := database.QueryOne[counterRecord](ctx, db,
			"UPSERT type::thing($table, 'users') SET value += 1 RETURN AFTER",
			map[string]any{"table": counterTable})
		if err != nil {
			return err
		}
		if counter == nil {
			return errors.New("id counter returned no row")
		}

		rec, err = database.QueryOne[userRecord](ctx, db,
			"CREATE type::thing($table, $uid) CONTENT { uid: $uid, name: $name, name_key: $key, state: $state } RETURN AFTER",
			map[string]any{"table": userTable, "uid": counter.Value, "name": name, "key": key, "state": int(domain.StateNew)})
		created = err == nil
		return err
	})
	if err != nil {
		// A concurrent registration may have won the unique index.
		if existing, ferr := s.findByKey(ctx, key); ferr == nil && existing != nil {
			return existing.identity(), false, nil
		}
		return domain.UserIdentity{}, false, domain.Unexpected("directory.AddOrUpdate", err)
	}
	return rec.identity(), created, nil
}

func (s *Surreal) Get(ctx context.Context, id int64) (domain.UserIdentity, error) {
	var rec *userRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rec, err = database.QueryOne[userRecord](ctx, db,
			"SELECT uid, name, name_key, state FROM "+userTable+" WHERE uid = $uid",
			map[string]any{"uid": id})
		return err
	})
	if err != nil {
		return domain.UserIdentity{}, domain.Unexpected("directory.Get", err)
	}
	if rec == nil {
		return domain.UserIdentity{}, domain.Errorf(domain.ErrNotFound, "directory.Get", "user %d", id)
	}
	return rec.identity(), nil
}

func (s *Surreal) List(ctx context.Context) ([]domain.UserIdentity, error) {
	var recs []userRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		recs, err = database.Query[userRecord](ctx, db,
			"SELECT uid, name, name_key, state FROM "+userTable+" ORDER BY uid", nil)
		return err
	})
	if err != nil {
		return nil, domain.Unexpected("directory.List", err)
	}
	users := make([]domain.UserIdentity, 0, len(recs))
	for _, r := range recs {
		users = append(users, r.identity())
	}
	return users, nil
}

func (s *Surreal) Delete(ctx context.Context, id int64) error {
	var recs []userRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		recs, err = database.Query[userRecord](ctx, db,
			"DELETE "+userTable+" WHERE uid = $uid RETURN BEFORE",
			map[string]any{"uid": id})
		return err
	})
	if err != nil {
		return domain.Unexpected("directory.Delete", err)
	}
	if len(recs) == 0 {
		return domain.Errorf(domain.ErrNotFound, "directory.Delete", "user %d", id)
	}
	return nil
}
