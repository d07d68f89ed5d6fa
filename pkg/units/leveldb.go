package units

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/thepwagner/debmirror/pkg/debian"
)

const keyPrefix = "unit/"

// LevelDB stores units as JSON documents in a LevelDB database.
type LevelDB struct {
	db *leveldb.DB
}

var _ Store = (*LevelDB)(nil)

func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening unit database: %w", err)
	}
	return &LevelDB{db: db}, nil
}

// NewLevelDBMemory opens a database that lives in memory.
func NewLevelDBMemory() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("opening unit database: %w", err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) List(_ context.Context) ([]Unit, error) {
	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer iter.Release()

	var ret []Unit
	for iter.Next() {
		var u Unit
		if err := json.Unmarshal(iter.Value(), &u); err != nil {
			return nil, fmt.Errorf("decoding unit %q: %w", iter.Key(), err)
		}
		ret = append(ret, u)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	return ret, nil
}

func (l *LevelDB) Get(_ context.Context, key debian.UnitKey) (Unit, error) {
	b, err := l.db.Get(dbKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Unit{}, ErrNotFound
	} else if err != nil {
		return Unit{}, fmt.Errorf("reading unit: %w", err)
	}

	var u Unit
	if err := json.Unmarshal(b, &u); err != nil {
		return Unit{}, fmt.Errorf("decoding unit: %w", err)
	}
	return u, nil
}

func (l *LevelDB) Save(_ context.Context, unit Unit) error {
	b, err := json.Marshal(unit)
	if err != nil {
		return fmt.Errorf("encoding unit: %w", err)
	}
	if err := l.db.Put(dbKey(unit.Key), b, nil); err != nil {
		return fmt.Errorf("writing unit: %w", err)
	}
	return nil
}

func (l *LevelDB) Remove(_ context.Context, key debian.UnitKey) error {
	if err := l.db.Delete(dbKey(key), nil); err != nil {
		return fmt.Errorf("deleting unit: %w", err)
	}
	return nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

func dbKey(key debian.UnitKey) []byte {
	return []byte(keyPrefix + key.String())
}
