package wire

import (
	"bytes"
	"context"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-chainnet/pkg/types"
)

func testPeer(b byte) types.PeerID {
	var id types.PeerID
	id[0] = b
	id[31] = b
	return id
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Genesis = common.HexToHash("0x01")
	cfg.Capabilities = types.NewCapabilities(
		types.Capability{Name: ProtocolEth, Version: 66},
		types.Capability{Name: ProtocolEth, Version: 67},
	)
	return cfg
}

// ============================================================================
// 消息码与编码
// ============================================================================

func TestProtocolForCode(t *testing.T) {
	tests := []struct {
		code  uint64
		proto string
		ok    bool
	}{
		{PingMsg, "", false},
		{StatusMsg, ProtocolEth, true},
		{ReceiptsMsg, ProtocolEth, true},
		{snapOffset, ProtocolSnap, true},
		{snapOffset + snapLength - 1, ProtocolSnap, true},
		{snapOffset + snapLength, "", false},
	}
	for _, tt := range tests {
		proto, ok := ProtocolForCode(tt.code)
		assert.Equal(t, tt.ok, ok, "code 0x%02x", tt.code)
		assert.Equal(t, tt.proto, proto, "code 0x%02x", tt.code)
	}
	assert.True(t, IsBaseCode(PongMsg))
	assert.False(t, IsBaseCode(StatusMsg))
	assert.Equal(t, "GetBlockHeaders", MessageName(GetBlockHeadersMsg))
	assert.Equal(t, "snap/0x21", MessageName(snapOffset))
}

func TestEncodeDecode_Request(t *testing.T) {
	req := &GetBlockHeaders{ID: 7, Origin: HashOrNumber{Number: 1024}, Amount: 64, Skip: 1}
	msg, err := Encode(req)
	require.NoError(t, err)
	assert.Equal(t, GetBlockHeadersMsg, msg.Code)

	decoded, err := Decode(msg)
	require.NoError(t, err)
	got, ok := decoded.(*GetBlockHeaders)
	require.True(t, ok)
	assert.Equal(t, req, got)
	assert.Equal(t, uint64(7), got.RequestID())
}

func TestHashOrNumber(t *testing.T) {
	hash := common.HexToHash("0xdeadbeef")
	enc, err := rlp.EncodeToBytes(HashOrNumber{Hash: hash})
	require.NoError(t, err)

	var byHash HashOrNumber
	require.NoError(t, rlp.DecodeBytes(enc, &byHash))
	assert.Equal(t, hash, byHash.Hash)

	_, err = rlp.EncodeToBytes(HashOrNumber{Hash: hash, Number: 1})
	assert.Error(t, err)
}

func TestDecode_RawAndUnknown(t *testing.T) {
	m, err := Decode(Msg{Code: snapOffset + 1, Payload: []byte{0xc0}})
	require.NoError(t, err)
	raw, ok := m.(*RawMessage)
	require.True(t, ok)
	assert.Equal(t, snapOffset+1, raw.Code())

	_, err = Decode(Msg{Code: 0x7f, Payload: []byte{0xc0}})
	assert.ErrorIs(t, err, ErrUnknownCode)

	_, err = Decode(Msg{Code: StatusMsg, Payload: []byte{0x01, 0x02}})
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

// ============================================================================
// 成帧
// ============================================================================

func TestFrameRW(t *testing.T) {
	var buf bytes.Buffer
	rw := newFrameRW(&buf, 1024)

	payload := bytes.Repeat([]byte("abc"), 100)
	require.NoError(t, rw.WriteMsg(Msg{Code: TransactionsMsg, Payload: payload}))

	msg, err := rw.ReadMsg()
	require.NoError(t, err)
	assert.Equal(t, TransactionsMsg, msg.Code)
	assert.Equal(t, payload, msg.Payload)

	err = rw.WriteMsg(Msg{Code: TransactionsMsg, Payload: make([]byte, 2048)})
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestFrameRW_DecodedSizeLimit(t *testing.T) {
	var buf bytes.Buffer
	large := newFrameRW(&buf, 1<<20)
	require.NoError(t, large.WriteMsg(Msg{Code: TransactionsMsg, Payload: make([]byte, 4096)}))

	small := newFrameRW(&buf, 1024)
	_, err := small.ReadMsg()
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

// ============================================================================
// 握手
// ============================================================================

type handshakeResult struct {
	stream *Stream
	info   *PeerInfo
	err    error
}

func runHandshake(t *testing.T, cfgA, cfgB Config) (handshakeResult, handshakeResult) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	idA, idB := testPeer(1), testPeer(2)
	ch := make(chan handshakeResult, 1)
	go func() {
		s, info, err := Handshake(ctx, b, idB, idA, cfgB)
		if err != nil {
			b.Close()
		}
		ch <- handshakeResult{s, info, err}
	}()
	s, info, err := Handshake(ctx, a, idA, idB, cfgA)
	if err != nil {
		a.Close()
	}
	return handshakeResult{s, info, err}, <-ch
}

func TestHandshake_Success(t *testing.T) {
	cfgA := testConfig()
	cfgB := testConfig()
	cfgB.Capabilities = types.NewCapabilities(
		types.Capability{Name: ProtocolEth, Version: 66},
		types.Capability{Name: ProtocolEth, Version: 67},
		types.Capability{Name: ProtocolEth, Version: 68},
		types.Capability{Name: ProtocolSnap, Version: 1},
	)
	cfgB.Head = func() (common.Hash, *big.Int) { return common.HexToHash("0xff"), big.NewInt(42) }

	ra, rb := runHandshake(t, cfgA, cfgB)
	require.NoError(t, ra.err)
	require.NoError(t, rb.err)

	assert.Equal(t, testPeer(2), ra.info.ID)
	assert.Equal(t, uint(67), ra.info.EthVersion)
	assert.True(t, ra.info.Capabilities.Contains(types.Capability{Name: ProtocolSnap, Version: 1}))
	assert.Equal(t, int64(42), ra.info.Status.TD.Int64())
	assert.Equal(t, testPeer(1), rb.info.ID)
	assert.False(t, rb.info.Capabilities.Contains(types.Capability{Name: ProtocolSnap, Version: 1}))

	ra.stream.Close()
	rb.stream.Close()
	t.Log("✅ 握手成功")
}

func TestHandshake_NetworkMismatch(t *testing.T) {
	cfgA := testConfig()
	cfgB := testConfig()
	cfgB.NetworkID = 5

	ra, rb := runHandshake(t, cfgA, cfgB)

	var he *HandshakeError
	require.ErrorAs(t, ra.err, &he)
	assert.Equal(t, types.DisconnectSubprotocolError, he.Reason)
	assert.Error(t, rb.err)
}

func TestHandshake_NoSharedCapability(t *testing.T) {
	cfgA := testConfig()
	cfgB := testConfig()
	cfgB.Capabilities = types.NewCapabilities(types.Capability{Name: ProtocolEth, Version: 68})

	ra, rb := runHandshake(t, cfgA, cfgB)

	var he *HandshakeError
	require.ErrorAs(t, ra.err, &he)
	assert.Equal(t, types.DisconnectUselessPeer, he.Reason)
	require.ErrorAs(t, rb.err, &he)
	assert.Equal(t, types.DisconnectUselessPeer, he.Reason)
}

// ============================================================================
// Stream
// ============================================================================

func mustEncode(t *testing.T, m Message) Msg {
	t.Helper()
	msg, err := Encode(m)
	require.NoError(t, err)
	return msg
}

func waitRecv(t *testing.T, s *Stream) Msg {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		msg, ok, err := s.TryRecv()
		require.NoError(t, err)
		if ok {
			return msg
		}
		select {
		case <-s.Wake():
		case <-deadline:
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestStream_SendRecvClose(t *testing.T) {
	ra, rb := runHandshake(t, testConfig(), testConfig())
	require.NoError(t, ra.err)
	require.NoError(t, rb.err)
	a, b := ra.stream, rb.stream

	msg, ok, err := b.TryRecv()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, msg.Code)

	require.True(t, a.SendReady())
	require.NoError(t, a.Send(mustEncode(t, &GetBlockBodies{ID: 3, Hashes: []common.Hash{{1}}})))
	got := waitRecv(t, b)
	assert.Equal(t, GetBlockBodiesMsg, got.Code)

	// 关闭前入队的消息仍会写出
	require.NoError(t, a.Send(mustEncode(t, &Disconnect{Reason: types.DisconnectRequested})))
	require.NoError(t, a.Close())
	got = waitRecv(t, b)
	assert.Equal(t, DisconnectMsg, got.Code)

	assert.False(t, a.SendReady())
	assert.ErrorIs(t, a.Send(mustEncode(t, Ping{})), ErrStreamClosed)

	deadline := time.After(3 * time.Second)
	for {
		_, ok, err := b.TryRecv()
		if err != nil {
			assert.ErrorIs(t, err, ErrStreamClosed)
			break
		}
		require.False(t, ok)
		select {
		case <-b.Wake():
		case <-deadline:
			t.Fatal("timeout waiting for close")
		}
	}
	b.Close()
	<-a.Done()
}
