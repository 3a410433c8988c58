package chat

// MessageStore is a bounded append-only log of a room's recent messages.
// Once full, every append evicts the oldest entry. It is not safe for
// concurrent use; the owning room's loop is its only caller.
type MessageStore struct {
	buf   []Message
	start int
	size  int
	index map[string]int // message id -> absolute sequence
	seq   int            // absolute sequence of the next append
}

func NewMessageStore(capacity int) *MessageStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &MessageStore{
		buf:   make([]Message, capacity),
		index: make(map[string]int, capacity),
	}
}

// Append stores msg and returns the evicted message, if any.
func (s *MessageStore) Append(msg Message) (evicted Message, ok bool) {
	capacity := len(s.buf)
	if s.size == capacity {
		evicted = s.buf[s.start]
		delete(s.index, evicted.ID)
		s.buf[s.start] = msg
		s.start = (s.start + 1) % capacity
		ok = true
	} else {
		s.buf[(s.start+s.size)%capacity] = msg
		s.size++
	}
	s.index[msg.ID] = s.seq
	s.seq++
	return evicted, ok
}

// Lookup finds a stored message by id. Evicted and unknown ids both report
// false.
func (s *MessageStore) Lookup(id string) (Message, bool) {
	seq, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	oldest := s.seq - s.size
	return s.at(seq - oldest), true
}

func (s *MessageStore) Len() int { return s.size }

func (s *MessageStore) Cap() int { return len(s.buf) }

// Messages returns the stored messages oldest first.
func (s *MessageStore) Messages() []Message {
	out := make([]Message, s.size)
	for i := range out {
		out[i] = s.at(i)
	}
	return out
}

// Recent returns up to limit messages newest first. limit <= 0 means all.
func (s *MessageStore) Recent(limit int) []Message {
	if limit <= 0 || limit > s.size {
		limit = s.size
	}
	out := make([]Message, limit)
	for i := range out {
		out[i] = s.at(s.size - 1 - i)
	}
	return out
}

// at returns the i-th stored message counted from the oldest.
func (s *MessageStore) at(i int) Message {
	return s.buf[(s.start+i)%len(s.buf)]
}
