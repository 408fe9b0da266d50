package badger

import (
	"bytes"
	"fmt"
	"os"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/libdvid-go/dvid"
	"github.com/janelia-flyem/libdvid-go/storage"
)

const (
	// DefaultVersionsToKeep is the number of badger versions kept per key.  Versioning of
	// DVID data is not done through badger timestamps.
	DefaultVersionsToKeep = 1

	// deleteBatchSize is the number of deletions flushed at a time in DeleteAll.
	deleteBatchSize = 10000

	// inMemoryTableSize is the memtable size used for in-memory databases, which are
	// mostly short-lived test stores.
	inMemoryTableSize = 16 << 20
)

var engine = storage.Engine{
	Name:        "badger",
	Description: "BadgerDB",
	SemVer:      semver.MustParse("0.1.0"),
}

// Config specifies how a badger database is opened.
type Config struct {
	// Path is the directory of the database.  It is ignored if InMemory is true.
	Path string

	// InMemory keeps all data in memory so nothing persists after Close.
	InMemory bool

	// ValueThreshold is the size of values in bytes that if exceeded get stored in
	// value log instead of the LSM tree.  Zero lets badger decide.
	ValueThreshold int64
}

func getOptions(config Config) badger.Options {
	opts := badger.DefaultOptions(config.Path).
		WithInMemory(config.InMemory).
		WithNumVersionsToKeep(DefaultVersionsToKeep).
		WithSyncWrites(false).
		WithLogger(badgerLogger{})
	if config.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithMemTableSize(inMemoryTableSize)
	}
	if config.ValueThreshold > 0 {
		opts = opts.WithValueThreshold(config.ValueThreshold)
	}
	return opts
}

// badgerLogger sends badger's own messages through dvid logging.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	dvid.Errorf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	dvid.Warningf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	dvid.Debugf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	dvid.Debugf("badger: "+format, args...)
}

// BadgerDB is an ordered key-value database backed by badger.
type BadgerDB struct {
	config Config
	bdp    *badger.DB
}

// Open returns a badger database, creating the directory if needed.
func Open(config Config) (*BadgerDB, error) {
	if !config.InMemory {
		if config.Path == "" {
			return nil, fmt.Errorf("path must be specified for on-disk BadgerDB")
		}
		if err := os.MkdirAll(config.Path, 0744); err != nil {
			return nil, fmt.Errorf("Can't make directory at %s: %v", config.Path, err)
		}
	}
	bdp, err := badger.Open(getOptions(config))
	if err != nil {
		return nil, err
	}
	db := &BadgerDB{config: config, bdp: bdp}
	dvid.Debugf("Opened %s\n", db)
	return db, nil
}

func (db *BadgerDB) String() string {
	if db.config.InMemory {
		return "badger in memory"
	}
	return fmt.Sprintf("badger @ %s", db.config.Path)
}

func (db *BadgerDB) Engine() storage.Engine {
	return engine
}

// Close closes the BadgerDB
func (db *BadgerDB) Close() error {
	if db == nil || db.bdp == nil {
		return nil
	}
	err := db.bdp.Close()
	db.bdp = nil
	dvid.Debugf("Closed %s\n", db)
	return err
}

func (db *BadgerDB) check(op string, ctx storage.Context) error {
	if db == nil || db.bdp == nil {
		return fmt.Errorf("Can't call %s on closed BadgerDB", op)
	}
	if ctx == nil {
		return fmt.Errorf("Received nil context in %s()", op)
	}
	return nil
}

func (db *BadgerDB) Get(ctx storage.Context, tk storage.TKey) ([]byte, error) {
	if err := db.check("Get", ctx); err != nil {
		return nil, err
	}
	key := []byte(ctx.ConstructKey(tk))
	var v []byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	return v, err
}

func (db *BadgerDB) Exists(ctx storage.Context, tk storage.TKey) (bool, error) {
	if err := db.check("Exists", ctx); err != nil {
		return false, err
	}
	key := []byte(ctx.ConstructKey(tk))
	var found bool
	err := db.bdp.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// rangeQuery calls f for each key-value pair in the inclusive range.  A nil endTKey
// goes to the end of the context's key space.
func (db *BadgerDB) rangeQuery(ctx storage.Context, begTKey, endTKey storage.TKey, keysOnly bool, f func(storage.TKey, []byte) error) error {
	prefix := []byte(ctx.ConstructKey(nil))
	begKey := []byte(ctx.ConstructKey(begTKey))
	var endKey []byte
	if endTKey != nil {
		endKey = []byte(ctx.ConstructKey(endTKey))
	}
	return db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		if keysOnly {
			opts.PrefetchValues = false
		}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(begKey); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if endKey != nil && bytes.Compare(item.Key(), endKey) > 0 {
				break
			}
			tk, err := ctx.TKeyFromKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			var v []byte
			if !keysOnly {
				if v, err = item.ValueCopy(nil); err != nil {
					return err
				}
			}
			if err := f(tk, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// KeysInRange returns a range of present keys spanning (begTKey, endTKey).  Values
// associated with the keys are not read.
func (db *BadgerDB) KeysInRange(ctx storage.Context, begTKey, endTKey storage.TKey) ([]storage.TKey, error) {
	if err := db.check("KeysInRange", ctx); err != nil {
		return nil, err
	}
	keys := []storage.TKey{}
	err := db.rangeQuery(ctx, begTKey, endTKey, true, func(tk storage.TKey, _ []byte) error {
		keys = append(keys, tk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// GetRange returns a range of values spanning (begTKey, endTKey) keys.
func (db *BadgerDB) GetRange(ctx storage.Context, begTKey, endTKey storage.TKey) ([]*storage.TKeyValue, error) {
	if err := db.check("GetRange", ctx); err != nil {
		return nil, err
	}
	values := []*storage.TKeyValue{}
	err := db.rangeQuery(ctx, begTKey, endTKey, false, func(tk storage.TKey, v []byte) error {
		values = append(values, &storage.TKeyValue{K: tk, V: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (db *BadgerDB) Put(ctx storage.Context, tk storage.TKey, v []byte) error {
	if err := db.check("Put", ctx); err != nil {
		return err
	}
	key := []byte(ctx.ConstructKey(tk))
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set(key, v)
	})
}

// PutRange puts type key-value pairs through a write batch, which splits large
// puts into as many transactions as needed.
func (db *BadgerDB) PutRange(ctx storage.Context, kvs []storage.TKeyValue) error {
	if err := db.check("PutRange", ctx); err != nil {
		return err
	}
	wb := db.bdp.NewWriteBatch()
	defer wb.Cancel()
	for _, kv := range kvs {
		if err := wb.Set([]byte(ctx.ConstructKey(kv.K)), kv.V); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Delete removes a value with given key.
func (db *BadgerDB) Delete(ctx storage.Context, tk storage.TKey) error {
	if err := db.check("Delete", ctx); err != nil {
		return err
	}
	key := []byte(ctx.ConstructKey(tk))
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// DeleteAll removes all key-value pairs for the context.
func (db *BadgerDB) DeleteAll(ctx storage.Context) error {
	if err := db.check("DeleteAll", ctx); err != nil {
		return err
	}
	var keys [][]byte
	err := db.rangeQuery(ctx, nil, nil, true, func(tk storage.TKey, _ []byte) error {
		keys = append(keys, []byte(ctx.ConstructKey(tk)))
		return nil
	})
	if err != nil {
		return err
	}

	wb := db.bdp.NewWriteBatch()
	defer wb.Cancel()
	for i, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
		if (i+1)%deleteBatchSize == 0 {
			if err := wb.Flush(); err != nil {
				dvid.Criticalf("Error on flush of DeleteAll at key-value pair %d: %v\n", i, err)
				return fmt.Errorf("Error on flush of DeleteAll at key-value pair %d: %v", i, err)
			}
			wb = db.bdp.NewWriteBatch()
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("Error on last flush of DeleteAll: %v", err)
	}
	dvid.Debugf("Deleted %d key-value pairs via DELETE ALL for %s.\n", len(keys), ctx)
	return nil
}
