package peerbook

import (
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dep2p/go-chainnet/pkg/types"
)

// Record 节点记录
type Record struct {
	Peer     types.PeerID
	Addr     string
	LastSeen time.Time
	LastDial time.Time
	Failures uint32

	// NextDial 早于此时间不应再次拨号
	NextDial time.Time
}

// Dialable 报告在 now 时刻是否允许拨号
func (r Record) Dialable(now time.Time) bool {
	return !now.Before(r.NextDial)
}

// storedRecord 持久化格式，时间以 Unix 纳秒保存，零值表示未设置
type storedRecord struct {
	Peer     []byte
	Addr     string
	LastSeen uint64
	LastDial uint64
	NextDial uint64
	Failures uint32
}

func encodeRecord(r Record) ([]byte, error) {
	return rlp.EncodeToBytes(&storedRecord{
		Peer:     r.Peer.Bytes(),
		Addr:     r.Addr,
		LastSeen: toUnix(r.LastSeen),
		LastDial: toUnix(r.LastDial),
		NextDial: toUnix(r.NextDial),
		Failures: r.Failures,
	})
}

func decodeRecord(data []byte) (Record, error) {
	var s storedRecord
	if err := rlp.DecodeBytes(data, &s); err != nil {
		return Record{}, err
	}
	peer, err := types.PeerIDFromBytes(s.Peer)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Peer:     peer,
		Addr:     s.Addr,
		LastSeen: fromUnix(s.LastSeen),
		LastDial: fromUnix(s.LastDial),
		NextDial: fromUnix(s.NextDial),
		Failures: s.Failures,
	}, nil
}

func toUnix(t time.Time) uint64 {
	if t.IsZero() || t.UnixNano() <= 0 {
		return 0
	}
	return uint64(t.UnixNano())
}

func fromUnix(n uint64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(n))
}
