package app

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// NotificationKind classifies a user-facing message.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// ParseNotificationKind validates a kind name.
func ParseNotificationKind(raw string) (NotificationKind, error) {
	switch NotificationKind(strings.ToLower(strings.TrimSpace(raw))) {
	case NotificationSuccess:
		return NotificationSuccess, nil
	case NotificationError:
		return NotificationError, nil
	default:
		return "", ErrInvalidNotification
	}
}

// Notification is one delivered message.
type Notification struct {
	Seq     uint64
	Kind    NotificationKind
	Message string
	At      time.Time
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind NotificationKind, message string)

// Notify calls f.
func (f NotifierFunc) Notify(kind NotificationKind, message string) {
	if f != nil {
		f(kind, message)
	}
}

// FanOut delivers every message to each wrapped notifier.
type FanOut []Notifier

// Notify forwards the message.
func (f FanOut) Notify(kind NotificationKind, message string) {
	for _, n := range f {
		if n != nil {
			n.Notify(kind, message)
		}
	}
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger  Logger
	BoardID string
}

// Notify logs success at info level and errors at warn level.
func (n LogNotifier) Notify(kind NotificationKind, message string) {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	if kind == NotificationError {
		logger.Warn("notification", "board_id", n.BoardID, "kind", kind, "message", message)
		return
	}
	logger.Info("notification", "board_id", n.BoardID, "kind", kind, "message", message)
}

// Feed keeps the most recent notifications in a fixed-size ring.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	next  int
	full  bool
	seq   uint64
	clock Clock
}

// DefaultFeedSize bounds how many notifications a feed retains.
const DefaultFeedSize = 50

// NewFeed constructs a feed holding up to size messages.
func NewFeed(size int, clock Clock) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	if clock == nil {
		clock = time.Now
	}
	return &Feed{items: make([]Notification, size), clock: clock}
}

// Notify records a message, evicting the oldest once full.
func (f *Feed) Notify(kind NotificationKind, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.items[f.next] = Notification{Seq: f.seq, Kind: kind, Message: message, At: f.clock().UTC()}
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
}

// Since returns messages with Seq greater than after, oldest first.
func (f *Feed) Since(after uint64) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, 0)
	start, count := 0, f.next
	if f.full {
		start, count = f.next, len(f.items)
	}
	for i := 0; i < count; i++ {
		n := f.items[(start+i)%len(f.items)]
		if n.Seq > after {
			out = append(out, n)
		}
	}
	return out
}

// Latest returns the newest message, if any.
func (f *Feed) Latest() (Notification, bool) {
	all := f.Since(0)
	if len(all) == 0 {
		return Notification{}, false
	}
	return all[len(all)-1], true
}

// Feeds hands out one Feed per board.
type Feeds struct {
	mu    sync.Mutex
	size  int
	clock Clock
	feeds map[string]*Feed
}

// NewFeeds constructs an empty set of board feeds.
func NewFeeds(size int, clock Clock) *Feeds {
	return &Feeds{size: size, clock: clock, feeds: map[string]*Feed{}}
}

// For returns the feed for boardID, creating it on first use.
func (f *Feeds) For(boardID string) *Feed {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.feeds[boardID]
	if !ok {
		feed = NewFeed(f.size, f.clock)
		f.feeds[boardID] = feed
	}
	return feed
}
