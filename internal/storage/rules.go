package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"btc-trend-watch/internal/alert"
)

// ruleListKey is the fixed namespace under which the whole rule list
// is persisted. The list is loaded once at startup and overwritten on
// every mutation.
const ruleListKey = "alerts/rules"

// RuleStore persists the alert rule list across sessions.
type RuleStore interface {
	Load(ctx context.Context) ([]alert.Rule, error)
	Save(ctx context.Context, rules []alert.Rule) error
	Close() error
}

// BadgerRuleStore is a Badger-backed RuleStore.
type BadgerRuleStore struct {
	db *badger.DB
}

// OpenRuleStore opens (creating if needed) the rule database at path.
func OpenRuleStore(path string) (*BadgerRuleStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("alert store path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}
	return &BadgerRuleStore{db: db}, nil
}

// Load reads the persisted rule list; a missing key yields an empty
// list, not an error.
func (s *BadgerRuleStore) Load(ctx context.Context) ([]alert.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rules []alert.Rule
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ruleListKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rules)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load alert rules: %w", err)
	}
	return rules, nil
}

// Save overwrites the persisted rule list.
func (s *BadgerRuleStore) Save(ctx context.Context, rules []alert.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if rules == nil {
		rules = []alert.Rule{}
	}
	payload, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal alert rules: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(ruleListKey), payload)
	})
	if err != nil {
		return fmt.Errorf("save alert rules: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *BadgerRuleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ RuleStore = (*BadgerRuleStore)(nil)
