// Package peerbook 记录已知节点的地址与拨号历史
//
// 节点簿为网络状态的出站维护提供候选节点：
//
//   - 地址：每个节点一个 TCP 地址，来自配置的已知节点或成功建立的会话
//   - 活跃时间：最近一次会话建立的时间
//   - 拨号退避：连续失败次数与下次允许拨号的时间，
//     退避时间按失败次数翻倍，上限为 MaxBackoff
//
// # 存储
//
// Config.Path 为空时使用内存存储（LRU，容量 MaxPeers）；
// 否则使用 BadgerDB 持久化，重启后保留拨号历史。
// 两种存储超出容量时都会淘汰最久未活跃的节点。
//
// # 使用示例
//
//	book, err := peerbook.Open(peerbook.DefaultConfig(), clock.New())
//	if err != nil {
//	    return err
//	}
//	defer book.Close()
//
//	book.AddPeer(peer, "10.0.0.1:30303")
//	for _, rec := range book.Candidates(8, nil) {
//	    dial(rec.Addr, rec.Peer)
//	}
package peerbook
