package surface

import "sync"

type memoryNode struct {
	text    string
	visible bool
}

// MemorySurface keeps node texts in process. The host bridge writes game text into
// it and reads translations back out.
type MemorySurface struct {
	mu        sync.RWMutex
	nodes     map[Target]memoryNode
	clipboard string
}

func NewMemorySurface() *MemorySurface {
	return &MemorySurface{nodes: make(map[Target]memoryNode)}
}

// SetNode creates or replaces a node.
func (s *MemorySurface) SetNode(target Target, text string, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[target] = memoryNode{text: text, visible: visible}
}

func (s *MemorySurface) SetVisible(target Target, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node, ok := s.nodes[target]; ok {
		node.visible = visible
		s.nodes[target] = node
	}
}

// Node returns the node text regardless of visibility.
func (s *MemorySurface) Node(target Target) (text string, visible bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[target]
	return node.text, node.visible, ok
}

func (s *MemorySurface) ReadVisibleText(surfaceID, nodeID string) (string, bool) {
	text, visible, ok := s.Node(Target{SurfaceID: surfaceID, NodeID: nodeID})
	if !ok || !visible {
		return "", false
	}
	return text, true
}

// WriteText is a no-op when the node is unknown or no longer visible.
func (s *MemorySurface) WriteText(surfaceID, nodeID, text string) {
	target := Target{SurfaceID: surfaceID, NodeID: nodeID}
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[target]
	if !ok || !node.visible {
		return
	}
	node.text = text
	s.nodes[target] = node
}

func (s *MemorySurface) CopyToClipboard(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clipboard = text
}

func (s *MemorySurface) Clipboard() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clipboard
}
