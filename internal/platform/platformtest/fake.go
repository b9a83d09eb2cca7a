// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oasis-community/opsbot/internal/platform"
)

// Fake is a concurrency-safe in-memory platform.
type Fake struct {
	mu       sync.Mutex
	seq      int
	channels map[string]bool
	messages map[platform.Ref]*platform.Message
	order    []platform.Ref
	directs  map[string][]platform.Notification
	members  map[string]platform.Member
	calls    int
	edits    int

	// FailPost, when set, is consulted before every Post.
	FailPost func(channelID string) error
	// FailDirect, when set, is consulted before every SendDirect.
	FailDirect func(userID string) error
}

var _ platform.Client = (*Fake)(nil)

// New returns an empty fake with the given channels pre-created.
func New(channelIDs ...string) *Fake {
	f := &Fake{
		channels: make(map[string]bool),
		messages: make(map[platform.Ref]*platform.Message),
		directs:  make(map[string][]platform.Notification),
		members:  make(map[string]platform.Member),
	}
	for _, id := range channelIDs {
		f.channels[id] = true
	}
	return f
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

// AddChannel makes channelID resolvable.
func (f *Fake) AddChannel(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[channelID] = true
}

// RemoveChannel deletes a channel and its records as if done by an operator.
func (f *Fake) RemoveChannel(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, channelID)
	for ref := range f.messages {
		if ref.ChannelID == channelID {
			delete(f.messages, ref)
		}
	}
}

// RemoveMessage deletes one record as if done by an operator.
func (f *Fake) RemoveMessage(ref platform.Ref) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, ref)
}

// SetMember registers a guild member.
func (f *Fake) SetMember(m platform.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[m.ID] = m
}

// HasChannel reports whether channelID currently exists.
func (f *Fake) HasChannel(channelID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[channelID]
}

// Channels returns the existing channel IDs, sorted.
func (f *Fake) Channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.channels))
	for id := range f.channels {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Message returns a copy of the record at ref.
func (f *Fake) Message(ref platform.Ref) (platform.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[ref]
	if !ok {
		return platform.Message{}, false
	}
	return *m, true
}

// Messages returns the live records in channelID in posting order.
func (f *Fake) Messages(channelID string) []platform.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Message
	for _, ref := range f.order {
		if ref.ChannelID != channelID {
			continue
		}
		if m, ok := f.messages[ref]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// Directs returns direct messages sent to userID.
func (f *Fake) Directs(userID string) []platform.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Notification(nil), f.directs[userID]...)
}

// Calls counts every Client method invocation.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Edits counts successful Edit invocations.
func (f *Fake) Edits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edits
}

// PutMessage injects a record authored by authorID, e.g. an inbound upload.
func (f *Fake) PutMessage(channelID, authorID string, n platform.Notification) platform.Ref {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := platform.Ref{ChannelID: channelID, MessageID: f.nextID("msg")}
	f.messages[ref] = &platform.Message{Ref: ref, AuthorID: authorID, Notification: n}
	f.order = append(f.order, ref)
	return ref
}

func (f *Fake) CreatePrivateChannel(_ context.Context, name, ownerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	id := f.nextID("chan")
	f.channels[id] = true
	return id, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.channels[channelID] {
		return platform.ErrNotFound
	}
	delete(f.channels, channelID)
	return nil
}

func (f *Fake) ResolveChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.channels[channelID] {
		return platform.ErrNotFound
	}
	return nil
}

func (f *Fake) Post(_ context.Context, channelID string, n platform.Notification) (platform.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.FailPost != nil {
		if err := f.FailPost(channelID); err != nil {
			return platform.Ref{}, err
		}
	}
	if !f.channels[channelID] {
		return platform.Ref{}, platform.ErrNotFound
	}
	ref := platform.Ref{ChannelID: channelID, MessageID: f.nextID("msg")}
	f.messages[ref] = &platform.Message{Ref: ref, AuthorID: "bot", Notification: n}
	f.order = append(f.order, ref)
	return ref, nil
}

func (f *Fake) Fetch(_ context.Context, ref platform.Ref) (*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, ok := f.messages[ref]
	if !ok {
		return nil, platform.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *Fake) Edit(_ context.Context, ref platform.Ref, n platform.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, ok := f.messages[ref]
	if !ok {
		return platform.ErrNotFound
	}
	m.Notification = n
	f.edits++
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, ref platform.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.messages[ref]; !ok {
		return platform.ErrNotFound
	}
	delete(f.messages, ref)
	return nil
}

func (f *Fake) SendDirect(_ context.Context, userID string, n platform.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.FailDirect != nil {
		if err := f.FailDirect(userID); err != nil {
			return err
		}
	}
	f.directs[userID] = append(f.directs[userID], n)
	return nil
}

func (f *Fake) Member(_ context.Context, userID string) (*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, ok := f.members[userID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return &m, nil
}
