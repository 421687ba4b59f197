package peerbook

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// Store 节点记录存储
type Store interface {
	Get(peer types.PeerID) (Record, bool, error)
	Put(r Record) error
	Delete(peer types.PeerID) error
	All() ([]Record, error)
	Len() int
	Close() error
}

// memoryStore 基于 LRU 的内存存储，超出容量时淘汰最久未访问的节点
type memoryStore struct {
	cache *lru.Cache[types.PeerID, Record]
}

var _ Store = (*memoryStore)(nil)

// NewMemoryStore 创建容量为 maxPeers 的内存存储
func NewMemoryStore(maxPeers int) (Store, error) {
	cache, err := lru.New[types.PeerID, Record](maxPeers)
	if err != nil {
		return nil, err
	}
	return &memoryStore{cache: cache}, nil
}

func (s *memoryStore) Get(peer types.PeerID) (Record, bool, error) {
	r, ok := s.cache.Get(peer)
	return r, ok, nil
}

func (s *memoryStore) Put(r Record) error {
	s.cache.Add(r.Peer, r)
	return nil
}

func (s *memoryStore) Delete(peer types.PeerID) error {
	s.cache.Remove(peer)
	return nil
}

func (s *memoryStore) All() ([]Record, error) {
	keys := s.cache.Keys()
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		if r, ok := s.cache.Peek(k); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) Len() int {
	return s.cache.Len()
}

func (s *memoryStore) Close() error {
	s.cache.Purge()
	return nil
}
