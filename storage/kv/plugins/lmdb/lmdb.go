// Package lmdb implements a kv store on LMDB. Each kv
// bucket is a named LMDB database inside one environment.
package lmdb

import (
	"fmt"
	"os"
	"sync"

	"github.com/PowerDNS/lmdb-go/lmdb"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
	"github.com/jrife/sertree/utils/uuid"
	"go.uber.org/zap"
)

const (
	// DriverName is the plugin name
	DriverName = "lmdb"
	// DefaultMapSize is the default size of the memory map (1 GB)
	DefaultMapSize = 1 << 30
	// DefaultMaxBuckets is the default number of named databases
	DefaultMaxBuckets = 128
)

// Plugins returns the plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&LMDBPlugin{},
	}
}

// LMDBPlugin creates LMDB stores
type LMDBPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *LMDBPlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore.
// Options:
//   "path" (string, required): environment directory
//   "map_size" (int): size of the memory map in bytes
//   "max_buckets" (int): maximum number of buckets
//   "logger" (*zap.Logger)
func (plugin *LMDBPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	var config LMDBStoreConfig
	var err error

	if config.Path, err = options.StringOption("path", true); err != nil {
		return nil, err
	}

	if config.MapSize, err = options.IntOption("map_size", DefaultMapSize); err != nil {
		return nil, err
	}

	maxBuckets, err := options.IntOption("max_buckets", DefaultMaxBuckets)

	if err != nil {
		return nil, err
	}

	config.MaxBuckets = int(maxBuckets)
	config.Logger = options.Logger()

	return New(config)
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *LMDBPlugin) NewTempStore() (kv.Store, error) {
	return plugin.NewStore(kv.PluginOptions{
		"path":     uuid.TempPath("lmdb"),
		"map_size": 64 << 20,
	})
}

// LMDBStoreConfig configures an LMDBStore
type LMDBStoreConfig struct {
	Path       string
	MapSize    int64
	MaxBuckets int
	Logger     *zap.Logger
}

var _ kv.Store = (*LMDBStore)(nil)

// LMDBStore is a kv.Store backed by an LMDB environment
type LMDBStore struct {
	env     *lmdb.Env
	path    string
	logger  *zap.Logger
	closeMu sync.RWMutex
	closed  bool
	// dbiMu is held exclusively while database handles
	// are opened or dropped. LMDB forbids doing that
	// concurrently with other transactions using them.
	dbiMu sync.RWMutex
	dbis  map[string]lmdb.DBI
}

// New opens or creates the LMDB environment in config.Path
func New(config LMDBStoreConfig) (*LMDBStore, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	if config.MapSize <= 0 {
		config.MapSize = DefaultMapSize
	}

	if config.MaxBuckets <= 0 {
		config.MaxBuckets = DefaultMaxBuckets
	}

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("could not create directory %s: %w", config.Path, err)
	}

	env, err := lmdb.NewEnv()

	if err != nil {
		return nil, fmt.Errorf("could not create lmdb environment: %w", err)
	}

	if err := env.SetMaxDBs(config.MaxBuckets); err != nil {
		env.Close()

		return nil, fmt.Errorf("could not set max buckets: %w", err)
	}

	if err := env.SetMapSize(config.MapSize); err != nil {
		env.Close()

		return nil, fmt.Errorf("could not set map size: %w", err)
	}

	if err := env.Open(config.Path, lmdb.NoTLS, 0o644); err != nil {
		env.Close()

		return nil, fmt.Errorf("could not open lmdb store at %s: %w", config.Path, err)
	}

	logger := config.Logger.With(zap.String("driver", DriverName))
	logger.Debug("opened lmdb store", zap.String("path", config.Path), zap.Int64("map_size", config.MapSize))

	return &LMDBStore{env: env, path: config.Path, logger: logger, dbis: map[string]lmdb.DBI{}}, nil
}

func (store *LMDBStore) view(fn lmdb.TxnOp) error {
	store.closeMu.RLock()
	defer store.closeMu.RUnlock()

	if store.closed {
		return kv.ErrClosed
	}

	return store.env.View(fn)
}

func (store *LMDBStore) update(fn lmdb.TxnOp) error {
	store.closeMu.RLock()
	defer store.closeMu.RUnlock()

	if store.closed {
		return kv.ErrClosed
	}

	return store.env.Update(fn)
}

// Bucket implements kv.Store.Bucket
func (store *LMDBStore) Bucket(name []byte) (kv.Bucket, error) {
	if err := kv.CheckBucketName(name); err != nil {
		return nil, err
	}

	store.dbiMu.Lock()
	defer store.dbiMu.Unlock()

	if store.isClosed() {
		return nil, kv.ErrClosed
	}

	if _, ok := store.dbis[string(name)]; !ok {
		var dbi lmdb.DBI

		err := store.update(func(txn *lmdb.Txn) error {
			var err error
			dbi, err = txn.OpenDBI(string(name), lmdb.Create)

			return err
		})

		if err != nil {
			return nil, err
		}

		store.dbis[string(name)] = dbi
	}

	return &LMDBBucket{store: store, name: keys.Copy(name)}, nil
}

// Buckets implements kv.Store.Buckets. Named
// databases are the keys of the root database.
func (store *LMDBStore) Buckets() ([][]byte, error) {
	names := [][]byte{}

	store.dbiMu.RLock()
	defer store.dbiMu.RUnlock()

	err := store.view(func(txn *lmdb.Txn) error {
		root, err := txn.OpenRoot(0)

		if err != nil {
			return err
		}

		page, err := scan(txn, root, keys.All(), kv.SortOrderAsc, -1)

		for _, entry := range page {
			names = append(names, entry.Key)
		}

		return err
	})

	return names, err
}

// DeleteBucket implements kv.Store.DeleteBucket
func (store *LMDBStore) DeleteBucket(name []byte) error {
	store.dbiMu.Lock()
	defer store.dbiMu.Unlock()

	err := store.update(func(txn *lmdb.Txn) error {
		dbi, err := txn.OpenDBI(string(name), 0)

		if lmdb.IsNotFound(err) {
			return nil
		} else if err != nil {
			return err
		}

		return txn.Drop(dbi, true)
	})

	if err != nil {
		return err
	}

	delete(store.dbis, string(name))

	return nil
}

func (store *LMDBStore) isClosed() bool {
	store.closeMu.RLock()
	defer store.closeMu.RUnlock()

	return store.closed
}

// dbi returns the handle of an open bucket.
// dbiMu must be held.
func (store *LMDBStore) dbi(name []byte) (lmdb.DBI, error) {
	dbi, ok := store.dbis[string(name)]

	if !ok {
		return 0, kv.ErrNoSuchBucket
	}

	return dbi, nil
}

// Close implements kv.Store.Close
func (store *LMDBStore) Close() error {
	store.closeMu.Lock()
	defer store.closeMu.Unlock()

	if store.closed {
		return nil
	}

	store.closed = true
	store.logger.Debug("closing lmdb store", zap.String("path", store.path))
	store.env.Close()

	return nil
}

// Delete implements kv.Store.Delete
func (store *LMDBStore) Delete() error {
	if err := store.Close(); err != nil {
		return fmt.Errorf("could not close store: %w", err)
	}

	if err := os.RemoveAll(store.path); err != nil {
		return fmt.Errorf("could not remove path %s: %w", store.path, err)
	}

	return nil
}

// scan reads up to limit entries of r with a cursor.
// limit < 0 means no limit.
func scan(txn *lmdb.Txn, dbi lmdb.DBI, r keys.Range, order kv.SortOrder, limit int) ([]kv.KV, error) {
	cursor, err := txn.OpenCursor(dbi)

	if err != nil {
		return nil, err
	}

	defer cursor.Close()

	var k, v []byte
	next := uint(lmdb.Next)

	if order == kv.SortOrderDesc {
		next = lmdb.Prev

		if r.Max == nil {
			k, v, err = cursor.Get(nil, nil, lmdb.Last)
		} else if k, v, err = cursor.Get(r.Max, nil, lmdb.SetRange); lmdb.IsNotFound(err) {
			k, v, err = cursor.Get(nil, nil, lmdb.Last)
		} else if err == nil {
			// Max is exclusive. SetRange lands on the first key >= Max
			k, v, err = cursor.Get(nil, nil, lmdb.Prev)
		}
	} else if r.Min == nil {
		k, v, err = cursor.Get(nil, nil, lmdb.First)
	} else {
		k, v, err = cursor.Get(r.Min, nil, lmdb.SetRange)
	}

	page := []kv.KV{}

	for ; err == nil && (limit < 0 || len(page) < limit); k, v, err = cursor.Get(nil, nil, next) {
		if !r.Contains(k) {
			return page, nil
		}

		page = append(page, kv.KV{Key: keys.Copy(k), Value: append([]byte{}, v...)})
	}

	if err != nil && !lmdb.IsNotFound(err) {
		return nil, err
	}

	return page, nil
}
