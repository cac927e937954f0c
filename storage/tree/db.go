package tree

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/plugins"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Option configures a DB
type Option func(*options)

type options struct {
	logger   *zap.Logger
	typeTags bool
	metrics  *metrics.Set
}

// WithLogger sets the logger used by the DB and its trees
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTypeTags makes OpenStrictTree record the key and value
// types of each tree and reject opens with other types
func WithTypeTags(enabled bool) Option {
	return func(o *options) {
		o.typeTags = enabled
	}
}

// WithMetrics sets the metrics set error counters are
// registered in. By default each DB gets its own set.
func WithMetrics(set *metrics.Set) Option {
	return func(o *options) {
		o.metrics = set
	}
}

// DB is a handle to a kv store whose buckets are
// accessed as trees
type DB struct {
	store    kv.Store
	owned    bool
	logger   *zap.Logger
	typeTags bool
	metrics  treeMetrics
	trees    *xsync.MapOf[string, *RelaxedTree]
	// typesMu serializes type tag updates with DropTree
	typesMu sync.Mutex
}

// New creates a DB on top of an open store. Close
// leaves the store open.
func New(store kv.Store, opts ...Option) (*DB, error) {
	if store == nil {
		return nil, fmt.Errorf("store must not be nil")
	}

	o := options{}

	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	if o.metrics == nil {
		o.metrics = metrics.NewSet()
	}

	return &DB{
		store:    store,
		logger:   o.logger,
		typeTags: o.typeTags,
		metrics:  treeMetrics{set: o.metrics},
		trees:    xsync.NewMapOf[string, *RelaxedTree](),
	}, nil
}

// Open opens a store with the named plugin and creates a DB
// on top of it. The DB owns the store and Close closes it.
func Open(pluginName string, pluginOptions kv.PluginOptions, opts ...Option) (*DB, error) {
	plugin := plugins.Plugin(pluginName)

	if plugin == nil {
		return nil, fmt.Errorf("unknown storage engine %q, available engines: %s", pluginName, strings.Join(plugins.Names(), ", "))
	}

	o := options{}

	for _, opt := range opts {
		opt(&o)
	}

	storeOptions := kv.PluginOptions{}

	for name, value := range pluginOptions {
		storeOptions[name] = value
	}

	if _, ok := storeOptions["logger"]; !ok && o.logger != nil {
		storeOptions["logger"] = o.logger.With(zap.String("engine", pluginName))
	}

	store, err := plugin.NewStore(storeOptions)

	if err != nil {
		return nil, fmt.Errorf("could not open %s store: %w", pluginName, err)
	}

	db, err := New(store, opts...)

	if err != nil {
		store.Close()

		return nil, err
	}

	db.owned = true

	return db, nil
}

// OpenRelaxedTree opens the tree with this name, creating
// it if needed. Opening the same name twice returns the
// same handle.
func (db *DB) OpenRelaxedTree(name string) (*RelaxedTree, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	if t, ok := db.trees.Load(name); ok {
		return t, nil
	}

	bucket, err := db.store.Bucket([]byte(name))

	if err != nil {
		db.metrics.storeError(name)

		return nil, &StoreError{Op: "open", Tree: name, Err: err}
	}

	t, loaded := db.trees.LoadOrStore(name, &RelaxedTree{
		db:     db,
		name:   name,
		bucket: bucket,
		logger: db.logger.With(zap.String("tree", name)),
	})

	if !loaded {
		db.metrics.treeOpened()
		t.logger.Debug("opened tree")
	}

	return t, nil
}

// OpenStrictTree opens the tree with this name as a
// StrictTree[K, V]. With type tags enabled it fails with
// a *TypeMismatchError if the tree was opened before as
// a different StrictTree.
func OpenStrictTree[K, V any](db *DB, name string) (*StrictTree[K, V], error) {
	t, err := db.OpenRelaxedTree(name)

	if err != nil {
		return nil, err
	}

	if db.typeTags {
		if err := db.tagTypes(name, typeTag[K, V]()); err != nil {
			return nil, err
		}
	}

	return Strict[K, V](t), nil
}

// TreeNames lists the names of all trees in ascending order
func (db *DB) TreeNames() ([]string, error) {
	buckets, err := db.store.Buckets()

	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	names := make([]string, 0, len(buckets))

	for _, bucket := range buckets {
		if strings.HasPrefix(string(bucket), reservedPrefix) {
			continue
		}

		names = append(names, string(bucket))
	}

	sort.Strings(names)

	return names, nil
}

// DropTree deletes a tree and everything in it. Handles
// to it return a *StoreError wrapping kv.ErrNoSuchBucket
// afterwards. Opening the name again creates a new tree.
func (db *DB) DropTree(name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	db.typesMu.Lock()
	defer db.typesMu.Unlock()

	if err := db.store.DeleteBucket([]byte(name)); err != nil {
		db.metrics.storeError(name)

		return &StoreError{Op: "drop", Tree: name, Err: err}
	}

	db.trees.Delete(name)

	if db.typeTags {
		if err := db.untagTypes(name); err != nil {
			return err
		}
	}

	db.logger.Debug("dropped tree", zap.String("tree", name))

	return nil
}

// Metrics returns the set holding this DB's counters
func (db *DB) Metrics() *metrics.Set {
	return db.metrics.set
}

// Close forgets all open trees and closes the store
// if the DB was created by Open
func (db *DB) Close() error {
	db.trees.Clear()

	if !db.owned {
		return nil
	}

	return db.store.Close()
}

func checkName(name string) error {
	if name == "" || strings.HasPrefix(name, reservedPrefix) {
		return fmt.Errorf("%q: %w", name, ErrReservedName)
	}

	return nil
}
