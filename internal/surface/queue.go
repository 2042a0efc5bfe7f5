package surface

// Queue buffers work items between UI hooks and the poller. Enqueue never blocks;
// a full queue drops the item and the next UI event retries.
type Queue struct {
	items chan WorkItem
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{items: make(chan WorkItem, capacity)}
}

func (q *Queue) Enqueue(item WorkItem) bool {
	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

func (q *Queue) Len() int {
	return len(q.items)
}

// Drain empties the queue. When one target was queued more than once only its
// newest item is kept, in the position of its first occurrence.
func (q *Queue) Drain() []WorkItem {
	var (
		out   []WorkItem
		index map[Target]int
	)
	for {
		select {
		case item := <-q.items:
			if index == nil {
				index = make(map[Target]int)
			}
			if i, ok := index[item.Target]; ok {
				out[i] = item
				continue
			}
			index[item.Target] = len(out)
			out = append(out, item)
		default:
			return out
		}
	}
}
