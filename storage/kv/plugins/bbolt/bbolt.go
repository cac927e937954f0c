// Package bbolt implements a kv store on bbolt. Each
// kv bucket is a top level bbolt bucket.
package bbolt

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
	"github.com/jrife/sertree/utils/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	// DriverName is the plugin name
	DriverName = "bbolt"
)

// Plugins returns the plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&BBoltPlugin{},
	}
}

// BBoltPlugin creates bbolt stores
type BBoltPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *BBoltPlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore.
// Options:
//   "path" (string, required): database file
//   "timeout" (int, milliseconds): how long to wait for the file lock
//   "logger" (*zap.Logger)
func (plugin *BBoltPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	var config BBoltStoreConfig
	var err error

	if config.Path, err = options.StringOption("path", true); err != nil {
		return nil, err
	}

	timeout, err := options.IntOption("timeout", 0)

	if err != nil {
		return nil, err
	}

	config.Timeout = time.Duration(timeout) * time.Millisecond
	config.Logger = options.Logger()

	return New(config)
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *BBoltPlugin) NewTempStore() (kv.Store, error) {
	return plugin.NewStore(kv.PluginOptions{
		"path": uuid.TempPath("bbolt"),
	})
}

// BBoltStoreConfig configures a BBoltStore
type BBoltStoreConfig struct {
	Path    string
	Timeout time.Duration
	Logger  *zap.Logger
}

var _ kv.Store = (*BBoltStore)(nil)

// BBoltStore is a kv.Store backed by one bbolt file
type BBoltStore struct {
	db     *bolt.DB
	logger *zap.Logger
}

// New opens or creates the bbolt database at config.Path
func New(config BBoltStoreConfig) (*BBoltStore, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	db, err := bolt.Open(config.Path, 0666, &bolt.Options{Timeout: config.Timeout})

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %w", config.Path, err)
	}

	config.Logger.Debug("opened bbolt store", zap.String("path", config.Path))

	return &BBoltStore{db: db, logger: config.Logger.With(zap.String("driver", DriverName))}, nil
}

// Bucket implements kv.Store.Bucket
func (store *BBoltStore) Bucket(name []byte) (kv.Bucket, error) {
	if err := kv.CheckBucketName(name); err != nil {
		return nil, err
	}

	if err := store.update(func(txn *bolt.Tx) error {
		_, err := txn.CreateBucketIfNotExists(name)

		return err
	}); err != nil {
		return nil, err
	}

	return &BBoltBucket{store: store, name: keys.Copy(name)}, nil
}

// Buckets implements kv.Store.Buckets
func (store *BBoltStore) Buckets() ([][]byte, error) {
	var names [][]byte

	err := store.view(func(txn *bolt.Tx) error {
		return txn.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, keys.Copy(name))

			return nil
		})
	})

	return names, err
}

// DeleteBucket implements kv.Store.DeleteBucket
func (store *BBoltStore) DeleteBucket(name []byte) error {
	return store.update(func(txn *bolt.Tx) error {
		if err := txn.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}

		return nil
	})
}

// Close implements kv.Store.Close
func (store *BBoltStore) Close() error {
	store.logger.Debug("closing bbolt store", zap.String("path", store.db.Path()))

	return store.db.Close()
}

// Delete implements kv.Store.Delete
func (store *BBoltStore) Delete() error {
	path := store.db.Path()

	if err := store.Close(); err != nil {
		return fmt.Errorf("could not close store: %w", err)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("could not remove path %s: %w", path, err)
	}

	return nil
}

func (store *BBoltStore) view(fn func(txn *bolt.Tx) error) error {
	return wrapError(store.db.View(fn))
}

func (store *BBoltStore) update(fn func(txn *bolt.Tx) error) error {
	return wrapError(store.db.Update(fn))
}

func wrapError(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return kv.ErrClosed
	}

	return err
}
