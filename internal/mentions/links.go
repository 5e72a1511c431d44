package mentions

import (
	"sync"
	"time"
)

// Link ties a source message to the reply the bot posted about it.
type Link struct {
	SourceID  string
	ChannelID string
	ReplyID   string
	AuthorID  string
	Content   string    // reply body as last posted
	UpdatedAt time.Time // creation or last edit of the reply

	buttonTimer *time.Timer
}

func (l *Link) stopButtonTimer() {
	if l.buttonTimer != nil {
		l.buttonTimer.Stop()
		l.buttonTimer = nil
	}
}

// LinkStore holds the live links, at most one per source message, indexed
// from both ends.
type LinkStore struct {
	mu       sync.Mutex
	bySource map[string]*Link
	byReply  map[string]string // reply id -> source id
}

// NewLinkStore creates an empty store.
func NewLinkStore() *LinkStore {
	return &LinkStore{
		bySource: make(map[string]*Link),
		byReply:  make(map[string]string),
	}
}

// Put registers link, replacing any link for the same source.
func (s *LinkStore) Put(link *Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.bySource[link.SourceID]; ok {
		old.stopButtonTimer()
		delete(s.byReply, old.ReplyID)
	}
	s.bySource[link.SourceID] = link
	s.byReply[link.ReplyID] = link.SourceID
}

// Get returns a copy of the link for a source message.
func (s *LinkStore) Get(sourceID string) (Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.bySource[sourceID]
	if !ok {
		return Link{}, false
	}
	return *link, true
}

// Update applies fn to the link for sourceID while holding the store lock.
// It reports false if there is no such link.
func (s *LinkStore) Update(sourceID string, fn func(*Link)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.bySource[sourceID]
	if !ok {
		return false
	}
	fn(link)
	return true
}

// Remove drops the link for a source message and cancels its pending work.
func (s *LinkStore) Remove(sourceID string) (Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.bySource[sourceID]
	if !ok {
		return Link{}, false
	}
	link.stopButtonTimer()
	delete(s.bySource, sourceID)
	delete(s.byReply, link.ReplyID)
	return *link, true
}

// RemoveByReply drops the link whose reply is replyID.
func (s *LinkStore) RemoveByReply(replyID string) (Link, bool) {
	s.mu.Lock()
	sourceID, ok := s.byReply[replyID]
	s.mu.Unlock()
	if !ok {
		return Link{}, false
	}
	return s.Remove(sourceID)
}

// Len returns the number of live links.
func (s *LinkStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bySource)
}
