package tree

import (
	"github.com/jrife/sertree/storage/codec"
	"go.uber.org/zap"
)

const (
	// reservedPrefix starts the name of every bucket
	// used internally. Trees cannot use it.
	reservedPrefix = "__sertree"
	typesBucket    = reservedPrefix + "_types"
)

func typeTag[K, V any]() string {
	return codec.For[K]().Name() + "|" + codec.For[V]().Name()
}

// TypeTag returns the types recorded for a tree
// by OpenStrictTree when type tags are enabled
func (db *DB) TypeTag(name string) (string, bool, error) {
	bucket, err := db.store.Bucket([]byte(typesBucket))

	if err != nil {
		return "", false, &StoreError{Op: "type tag", Tree: name, Err: err}
	}

	tag, ok, err := bucket.Get([]byte(name))

	if err != nil {
		return "", false, &StoreError{Op: "type tag", Tree: name, Err: err}
	}

	return string(tag), ok, nil
}

func (db *DB) tagTypes(name string, tag string) error {
	db.typesMu.Lock()
	defer db.typesMu.Unlock()

	bucket, err := db.store.Bucket([]byte(typesBucket))

	if err != nil {
		db.metrics.storeError(name)

		return &StoreError{Op: "type tag", Tree: name, Err: err}
	}

	recorded, loaded, err := bucket.PutIfAbsent([]byte(name), []byte(tag))

	if err != nil {
		db.metrics.storeError(name)

		return &StoreError{Op: "type tag", Tree: name, Err: err}
	}

	if loaded && string(recorded) != tag {
		db.logger.Warn("type tag mismatch", zap.String("tree", name), zap.String("recorded", string(recorded)), zap.String("requested", tag))

		return &TypeMismatchError{Tree: name, Recorded: string(recorded), Requested: tag}
	}

	return nil
}

func (db *DB) untagTypes(name string) error {
	bucket, err := db.store.Bucket([]byte(typesBucket))

	if err != nil {
		return &StoreError{Op: "type tag", Tree: name, Err: err}
	}

	if _, _, err := bucket.Delete([]byte(name)); err != nil {
		return &StoreError{Op: "type tag", Tree: name, Err: err}
	}

	return nil
}
