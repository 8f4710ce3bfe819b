// Package chattest records outbound chat traffic for tests.
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/m3rciful/reviewbot/internal/chat"
)

// Sent is one recorded outbound message.
type Sent struct {
	ChatID    int64
	MessageID int
	Msg       chat.Message
}

// Edited is one recorded edit.
type Edited struct {
	ChatID    int64
	MessageID int
	Msg       chat.Message
}

// Deleted is one recorded deletion.
type Deleted struct {
	ChatID    int64
	MessageID int
}

// Recorder implements chat.Messenger in memory. Fail* maps make the
// matching chat unreachable for that operation.
type Recorder struct {
	mu       sync.Mutex
	nextID   int
	Sent     []Sent
	Edited   []Edited
	Deleted  []Deleted
	Notified []Sent
	// NotifyFailed collects notifications dropped because of FailNotify.
	NotifyFailed []Sent

	FailSend   map[int64]error
	FailDelete map[int64]error
	FailNotify map[int64]error
}

// New returns an empty Recorder. Message ids start at 100.
func New() *Recorder {
	return &Recorder{
		nextID:     100,
		FailSend:   map[int64]error{},
		FailDelete: map[int64]error{},
		FailNotify: map[int64]error{},
	}
}

func (r *Recorder) Send(_ context.Context, chatID int64, msg chat.Message) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailSend[chatID]; err != nil {
		return 0, err
	}
	r.nextID++
	r.Sent = append(r.Sent, Sent{ChatID: chatID, MessageID: r.nextID, Msg: msg})
	return r.nextID, nil
}

func (r *Recorder) Edit(_ context.Context, chatID int64, messageID int, msg chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailSend[chatID]; err != nil {
		return err
	}
	r.Edited = append(r.Edited, Edited{ChatID: chatID, MessageID: messageID, Msg: msg})
	return nil
}

func (r *Recorder) Delete(_ context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailDelete[chatID]; err != nil {
		return err
	}
	r.Deleted = append(r.Deleted, Deleted{ChatID: chatID, MessageID: messageID})
	return nil
}

func (r *Recorder) Notify(_ context.Context, chatID int64, msg chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNotify[chatID] != nil {
		r.NotifyFailed = append(r.NotifyFailed, Sent{ChatID: chatID, Msg: msg})
		return
	}
	r.nextID++
	r.Notified = append(r.Notified, Sent{ChatID: chatID, MessageID: r.nextID, Msg: msg})
}

// Last returns the most recent message sent to chatID.
func (r *Recorder) Last(chatID int64) (Sent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Sent) - 1; i >= 0; i-- {
		if r.Sent[i].ChatID == chatID {
			return r.Sent[i], nil
		}
	}
	return Sent{}, fmt.Errorf("chattest: nothing sent to %d", chatID)
}

// SentTo returns every message sent to chatID in order.
func (r *Recorder) SentTo(chatID int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.Sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Reset forgets all recorded traffic.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent, r.Edited, r.Deleted, r.Notified, r.NotifyFailed = nil, nil, nil, nil, nil
}

var _ chat.Messenger = (*Recorder)(nil)
