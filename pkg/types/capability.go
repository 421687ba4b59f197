package types

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================================
//                              Capability - 协议能力
// ============================================================================

// Capability 协议名称与版本对，握手时宣告一次
type Capability struct {
	Name    string
	Version uint
}

// String 返回 "name/version" 格式
func (c Capability) String() string {
	return fmt.Sprintf("%s/%d", c.Name, c.Version)
}

// Capabilities 对端在握手时宣告的能力集合
//
// 创建后不可变，由会话与上层消费者共享同一个指针。
type Capabilities struct {
	caps []Capability
}

// NewCapabilities 创建能力集合
//
// 输入会被复制并按 (Name, Version) 排序，重复项被去除。
func NewCapabilities(caps ...Capability) *Capabilities {
	list := make([]Capability, 0, len(caps))
	seen := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].Version < list[j].Version
	})
	return &Capabilities{caps: list}
}

// Contains 检查是否宣告了指定能力
func (c *Capabilities) Contains(capability Capability) bool {
	if c == nil {
		return false
	}
	for _, have := range c.caps {
		if have == capability {
			return true
		}
	}
	return false
}

// SupportsProtocol 返回指定协议的最高宣告版本
func (c *Capabilities) SupportsProtocol(name string) (Capability, bool) {
	var (
		best  Capability
		found bool
	)
	if c == nil {
		return best, false
	}
	for _, have := range c.caps {
		if have.Name == name && (!found || have.Version > best.Version) {
			best, found = have, true
		}
	}
	return best, found
}

// List 返回能力列表的副本
func (c *Capabilities) List() []Capability {
	if c == nil {
		return nil
	}
	out := make([]Capability, len(c.caps))
	copy(out, c.caps)
	return out
}

// Len 返回能力数量
func (c *Capabilities) Len() int {
	if c == nil {
		return 0
	}
	return len(c.caps)
}

// String 返回逗号分隔的能力列表
func (c *Capabilities) String() string {
	if c == nil {
		return ""
	}
	parts := make([]string, len(c.caps))
	for i, capability := range c.caps {
		parts[i] = capability.String()
	}
	return strings.Join(parts, ",")
}
