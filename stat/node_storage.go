package stat

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/logger"
)

const (
	// InboundResourceName the synthetic resource aggregating all inbound traffic
	InboundResourceName = "total_inbound_traffic"

	// DefaultMaxResourceAmount soft cap on distinct resources before warnings
	DefaultMaxResourceAmount = 10000
)

// NodeStorage maps resource names to their ResourceNode. It is an explicit
// registry owned by the engine, nodes are created lazily on first entry
// and live until the storage is reset.
type NodeStorage struct {
	mu    sync.RWMutex
	nodes map[string]*ResourceNode

	group   singleflight.Group
	inbound *ResourceNode

	geom      WindowGeometry
	maxAmount int
	log       *logger.CtxZapLogger
}

func NewNodeStorage() *NodeStorage {
	s, err := NewNodeStorageWithGeometry(DefaultWindowGeometry())
	if err != nil {
		// default window constants are valid, this cannot fire
		panic(err)
	}
	return s
}

// NewNodeStorageWithGeometry builds a storage whose nodes all use the given
// window geometry.
func NewNodeStorageWithGeometry(geom WindowGeometry) (*NodeStorage, error) {
	inbound, err := NewResourceNodeWithGeometry(InboundResourceName, base.ResTypeCommon, geom)
	if err != nil {
		return nil, err
	}
	return &NodeStorage{
		nodes:     make(map[string]*ResourceNode),
		inbound:   inbound,
		geom:      geom,
		maxAmount: DefaultMaxResourceAmount,
		log:       logger.GetLogger("aegis"),
	}, nil
}

// GetNode returns the node of the resource, or nil when none exists yet
func (s *NodeStorage) GetNode(resourceName string) *ResourceNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[resourceName]
}

// GetOrCreateNode returns the node of the resource, creating it on first
// use. Concurrent first references collapse into one creation.
func (s *NodeStorage) GetOrCreateNode(resource *base.ResourceWrapper) (*ResourceNode, error) {
	name := resource.Name()

	s.mu.RLock()
	node := s.nodes[name]
	s.mu.RUnlock()
	if node != nil {
		return node, nil
	}

	v, err, _ := s.group.Do(name, func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing := s.nodes[name]; existing != nil {
			return existing, nil
		}
		if len(s.nodes) >= s.maxAmount {
			s.log.Warn("resource amount exceeds the soft cap, check for unbounded resource names",
				zap.Int("amount", len(s.nodes)), zap.String("resource", name))
		}
		created, err := NewResourceNodeWithGeometry(name, resource.Type(), s.geom)
		if err != nil {
			return nil, err
		}
		s.nodes[name] = created
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ResourceNode), nil
}

// InboundNode returns the process-wide node aggregating all inbound traffic
func (s *NodeStorage) InboundNode() *ResourceNode {
	return s.inbound
}

// NodeCount returns the number of tracked resources
func (s *NodeStorage) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// RemoveNode drops the node of the resource, its statistics are lost
func (s *NodeStorage) RemoveNode(resourceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, resourceName)
}

// Range calls fn for every tracked node until fn returns false
func (s *NodeStorage) Range(fn func(name string, node *ResourceNode) bool) {
	s.mu.RLock()
	snapshot := make(map[string]*ResourceNode, len(s.nodes))
	for k, v := range s.nodes {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}
