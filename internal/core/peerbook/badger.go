package peerbook

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-chainnet/pkg/types"
)

var keyPrefix = []byte("peer/")

func recordKey(peer types.PeerID) []byte {
	return append(append([]byte(nil), keyPrefix...), peer.Bytes()...)
}

// badgerStore BadgerDB 持久化存储
type badgerStore struct {
	db       *badger.DB
	maxPeers int

	// mu 串行化写入，保持 count 与数据库一致
	mu    sync.Mutex
	count int
}

var _ Store = (*badgerStore)(nil)

// OpenBadgerStore 打开（或创建）path 处的持久化存储
func OpenBadgerStore(path string, maxPeers int) (Store, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("peerbook: create dir: %w", err)
	}
	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(16 << 20).
		WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("peerbook: open badger: %w", err)
	}
	s := &badgerStore{db: db, maxPeers: maxPeers}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: keyPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			s.count++
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("节点簿已打开", "path", path, "peers", s.count)
	return s, nil
}

func (s *badgerStore) Get(peer types.PeerID) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(peer))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = decodeRecord(val)
			found = err == nil
			return err
		})
	})
	return rec, found, err
}

func (s *badgerStore) Put(r Record) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	err = s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(r.Peer)
		_, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			added = 1
			if s.count >= s.maxPeers {
				if err := s.evictLocked(txn, r.Peer); err != nil {
					return err
				}
				added = 0
			}
		case err != nil:
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}
	s.count += added
	return nil
}

// evictLocked 删除最久未活跃的节点，为新记录腾出位置
func (s *badgerStore) evictLocked(txn *badger.Txn, keep types.PeerID) error {
	var (
		oldestKey []byte
		oldest    Record
	)
	it := txn.NewIterator(badger.IteratorOptions{Prefix: keyPrefix, PrefetchValues: true, PrefetchSize: 64})
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err := decodeRecord(val)
		if err != nil || rec.Peer == keep {
			continue
		}
		if oldestKey == nil || rec.LastSeen.Before(oldest.LastSeen) {
			oldestKey = item.KeyCopy(nil)
			oldest = rec
		}
	}
	if oldestKey == nil {
		return nil
	}
	logger.Debug("节点簿已满，淘汰节点", "peer", oldest.Peer.ShortString())
	return txn.Delete(oldestKey)
}

func (s *badgerStore) Delete(peer types.PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(peer)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		removed = true
		return txn.Delete(key)
	})
	if err == nil && removed {
		s.count--
	}
	return err
}

func (s *badgerStore) All() ([]Record, error) {
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: keyPrefix, PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *badgerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger 将 badger 日志转到组件日志器
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
