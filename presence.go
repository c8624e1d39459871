package pusher

import "sync"

// presenceState is the membership extension carried by presence channels.
type presenceState struct {
	mu      sync.RWMutex
	members map[string]Member
	myID    string

	onMemberAdded   func(Member)
	onMemberRemoved func(Member)
}

// PresenceChannel is a Channel that additionally tracks a membership
// roster. It is returned by Client.SubscribePresence for channels whose
// name carries the "presence-" prefix.
type PresenceChannel struct {
	*Channel
}

func newPresenceChannel(name string, onAdded, onRemoved func(Member)) *PresenceChannel {
	ch := newChannel(name)
	ch.presence = &presenceState{
		members:         make(map[string]Member),
		onMemberAdded:   onAdded,
		onMemberRemoved: onRemoved,
	}
	return &PresenceChannel{Channel: ch}
}

// Members returns a snapshot of the current roster.
func (p *PresenceChannel) Members() []Member {
	p.presence.mu.RLock()
	defer p.presence.mu.RUnlock()
	out := make([]Member, 0, len(p.presence.members))
	for _, m := range p.presence.members {
		out = append(out, m)
	}
	return out
}

// Me returns the Member record corresponding to this client's own socket,
// and whether it has been established yet (it is only known once the auth
// response for this channel has been parsed).
func (p *PresenceChannel) Me() (Member, bool) {
	p.presence.mu.RLock()
	defer p.presence.mu.RUnlock()
	if p.presence.myID == "" {
		return Member{}, false
	}
	m, ok := p.presence.members[p.presence.myID]
	return m, ok
}

func (p *PresenceChannel) setMyID(id string) {
	p.presence.mu.Lock()
	p.presence.myID = id
	p.presence.mu.Unlock()
}

// seedRoster replaces the roster wholesale from the presence.hash carried
// on subscription_succeeded.
func (p *PresenceChannel) seedRoster(members []Member) {
	p.presence.mu.Lock()
	p.presence.members = make(map[string]Member, len(members))
	for _, m := range members {
		p.presence.members[m.UserID] = m
	}
	p.presence.mu.Unlock()
}

// addMember inserts or replaces a member by userId uniqueness and fires
// onMemberAdded.
func (p *PresenceChannel) addMember(m Member) {
	p.presence.mu.Lock()
	p.presence.members[m.UserID] = m
	cb := p.presence.onMemberAdded
	p.presence.mu.Unlock()
	if cb != nil {
		cb(m)
	}
}

// removeMember deletes a member by userId and fires onMemberRemoved, if the
// member was present.
func (p *PresenceChannel) removeMember(userID string) {
	p.presence.mu.Lock()
	m, ok := p.presence.members[userID]
	if ok {
		delete(p.presence.members, userID)
	}
	cb := p.presence.onMemberRemoved
	p.presence.mu.Unlock()
	if ok && cb != nil {
		cb(m)
	}
}
