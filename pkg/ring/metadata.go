package ring

import (
	"sort"
	"strings"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

type Partition struct {
	Addr string
	Range
}

// Metadata is an immutable snapshot of the ring assignment, ordered by the
// upper bound of each partition.
type Metadata struct {
	HashFunction HashFunctionType
	Partitions   []Partition
}

// Build places every "host:port" address on the ring and derives the
// partitions they own.
func Build(addrs []string, hf HashFunctionType) *Metadata {
	byKey := make(map[Key]string, len(addrs))
	members := make([]Key, 0, len(addrs))
	for _, addr := range addrs {
		k := Digest(addr, hf)
		if _, ok := byKey[k]; ok {
			continue
		}
		byKey[k] = addr
		members = append(members, k)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	m := &Metadata{HashFunction: hf, Partitions: make([]Partition, 0, len(members))}
	for _, k := range members {
		m.Partitions = append(m.Partitions, Partition{
			Addr:  byKey[k],
			Range: RangeFor(k, members),
		})
	}
	return m
}

func (m *Metadata) Empty() bool {
	return m == nil || len(m.Partitions) == 0
}

func (m *Metadata) Members() []Key {
	ret := make([]Key, 0, len(m.Partitions))
	for _, p := range m.Partitions {
		ret = append(ret, p.Upper)
	}
	return ret
}

func (m *Metadata) Addrs() []string {
	ret := make([]string, 0, len(m.Partitions))
	for _, p := range m.Partitions {
		ret = append(ret, p.Addr)
	}
	return ret
}

func (m *Metadata) Lookup(addr string) (Partition, bool) {
	if m == nil {
		return Partition{}, false
	}
	for _, p := range m.Partitions {
		if p.Addr == addr {
			return p, true
		}
	}
	return Partition{}, false
}

// Owner returns the partition responsible for a data key.
func (m *Metadata) Owner(key string) (Partition, bool) {
	return m.OwnerOf(Digest(key, m.HashFunction))
}

func (m *Metadata) OwnerOf(h Key) (Partition, bool) {
	if m.Empty() {
		return Partition{}, false
	}
	for _, p := range m.Partitions {
		if Owns(p.Range, h) {
			return p, true
		}
	}
	return Partition{}, false
}

// Successor returns the partition following addr in ring order.
func (m *Metadata) Successor(addr string) (Partition, bool) {
	p, ok := m.Lookup(addr)
	if !ok {
		return Partition{}, false
	}
	next := Successor(p.Upper, m.Members())
	for _, q := range m.Partitions {
		if q.Upper == next {
			return q, true
		}
	}
	return Partition{}, false
}

// Encode renders the blob exchanged with the metadata directory and sent in
// SERVER_NOT_RESPONSIBLE: "host:port lower-upper" tuples separated by
// single spaces.
func (m *Metadata) Encode() string {
	if m.Empty() {
		return ""
	}
	parts := make([]string, 0, 2*len(m.Partitions))
	for _, p := range m.Partitions {
		parts = append(parts, p.Addr, p.Range.String())
	}
	return strings.Join(parts, " ")
}

// ParseMetadata reads a blob produced by Encode. Any whitespace separates
// tokens, so newline separated blobs are accepted as well.
func ParseMetadata(blob string, hf HashFunctionType) (*Metadata, error) {
	tokens := strings.Fields(blob)
	if len(tokens)%2 != 0 {
		return nil, kverror.Newf(kverror.KV_METADATA_CORRUPTION, "metadata has odd token count %d", len(tokens))
	}

	m := &Metadata{HashFunction: hf, Partitions: make([]Partition, 0, len(tokens)/2)}
	for i := 0; i < len(tokens); i += 2 {
		r, err := ParseRange(tokens[i+1], hf)
		if err != nil {
			return nil, kverror.Newf(kverror.KV_METADATA_CORRUPTION, "metadata entry %q: %s", tokens[i], err)
		}
		m.Partitions = append(m.Partitions, Partition{Addr: tokens[i], Range: r})
	}
	sort.Slice(m.Partitions, func(i, j int) bool {
		return m.Partitions[i].Upper < m.Partitions[j].Upper
	})
	return m, nil
}
