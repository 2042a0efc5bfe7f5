package surface

import "horse.fit/glossian/internal/db"

// Surface is the only way the pipeline touches UI widgets. Implementations must be
// safe for concurrent use; writes may come from any dispatcher goroutine.
type Surface interface {
	// ReadVisibleText returns the node's current text; ok is false when the node
	// does not exist or is hidden.
	ReadVisibleText(surfaceID, nodeID string) (string, bool)
	// WriteText replaces the node's text; it does nothing when the node is gone or hidden.
	WriteText(surfaceID, nodeID, text string)
	CopyToClipboard(text string)
}

// Target addresses one text node of one UI surface.
type Target struct {
	SurfaceID string `json:"surface_id"`
	NodeID    string `json:"node_id"`
}

func (t Target) String() string {
	return t.SurfaceID + "/" + t.NodeID
}

// WorkItem is one UI text change waiting to be dispatched. An empty Text means the
// poller reads the current text from the surface.
type WorkItem struct {
	Kind   db.Kind
	Target Target
	Text   string
	Sender string
}

// Sink accepts work items without blocking.
type Sink interface {
	SubmitWork(item WorkItem) bool
}
