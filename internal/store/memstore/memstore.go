// Package memstore is an in-memory implementation of store.Store.
// It backs the engine tests and local development without Postgres.
// A single mutex stands in for the per-channel row lock: stricter
// serialization than the Postgres store, never weaker.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"huddle/internal/domain"
	"huddle/internal/store"
)

type Mem struct {
	mu  sync.Mutex
	seq int64

	users    map[int64]*domain.User
	tokens   map[string]*domain.AccessToken
	channels map[int64]*domain.Channel
	members  map[int64]*domain.ChannelMember
	bans     map[int64]*domain.ChannelBan
	votes    map[int64]*domain.ChannelKickVote
	messages map[int64]*domain.Message
	mentions map[int64]*domain.MessageMention
}

func New() *Mem {
	return &Mem{
		users:    make(map[int64]*domain.User),
		tokens:   make(map[string]*domain.AccessToken),
		channels: make(map[int64]*domain.Channel),
		members:  make(map[int64]*domain.ChannelMember),
		bans:     make(map[int64]*domain.ChannelBan),
		votes:    make(map[int64]*domain.ChannelKickVote),
		messages: make(map[int64]*domain.Message),
		mentions: make(map[int64]*domain.MessageMention),
	}
}

var _ store.Store = (*Mem)(nil)

func (m *Mem) nextID() int64 {
	m.seq++
	return m.seq
}

// ---- Users ----

func (m *Mem) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Nickname == u.Nickname || existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.ID = m.nextID()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Mem) UserByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Mem) UserByNickname(_ context.Context, nickname string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Nickname == nickname {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Mem) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Mem) UsersByNicknames(_ context.Context, nicknames []string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(nicknames))
	for _, n := range nicknames {
		want[n] = true
	}
	var out []domain.User
	for _, u := range m.users {
		if want[u.Nickname] {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Mem) UpdateUserPresence(_ context.Context, id int64, status domain.UserStatus, notifyOnlyMentions *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if status != "" {
		u.Status = status
	}
	if notifyOnlyMentions != nil {
		u.NotifyOnlyMentions = *notifyOnlyMentions
	}
	u.UpdatedAt = time.Now()
	return nil
}

// ---- Tokens ----

func (m *Mem) CreateToken(_ context.Context, t *domain.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	m.tokens[t.Hash] = &cp
	return nil
}

func (m *Mem) TokenByHash(_ context.Context, hash string) (*domain.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// ---- Channels ----

func (m *Mem) ChannelByID(_ context.Context, id int64) (*domain.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *Mem) ChannelByName(_ context.Context, name string) (*domain.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.channels {
		if ch.Name == name {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Mem) CreateChannel(_ context.Context, ch *domain.Channel, owner *domain.ChannelMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.channels {
		if existing.Name == ch.Name {
			return store.ErrDuplicate
		}
	}
	ch.ID = m.nextID()
	now := time.Now()
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = now
	}
	if ch.UpdatedAt.IsZero() {
		ch.UpdatedAt = now
	}
	cp := *ch
	m.channels[ch.ID] = &cp

	owner.ID = m.nextID()
	owner.ChannelID = ch.ID
	owner.CreatedAt = now
	ocp := *owner
	m.members[owner.ID] = &ocp
	return nil
}

func (m *Mem) ChannelDetail(_ context.Context, id int64) (*store.ChannelDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channelDetailLocked(id)
}

func (m *Mem) channelDetailLocked(id int64) (*store.ChannelDetail, error) {
	ch, ok := m.channels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	detail := &store.ChannelDetail{Channel: *ch}
	if owner, ok := m.users[ch.OwnerID]; ok {
		detail.Owner = *owner
	}

	var members []*domain.ChannelMember
	for _, cm := range m.members {
		if cm.ChannelID == id {
			members = append(members, cm)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	for _, cm := range members {
		if u, ok := m.users[cm.UserID]; ok {
			detail.Members = append(detail.Members, store.MemberUser{User: *u, Role: cm.Role})
		}
	}

	var bans []*domain.ChannelBan
	for _, b := range m.bans {
		if b.ChannelID == id {
			bans = append(bans, b)
		}
	}
	sort.Slice(bans, func(i, j int) bool { return bans[i].ID < bans[j].ID })
	for _, b := range bans {
		if u, ok := m.users[b.UserID]; ok {
			detail.Banned = append(detail.Banned, *u)
		}
	}
	return detail, nil
}

func (m *Mem) ChannelsForUser(_ context.Context, userID int64) ([]store.ChannelDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var channelIDs []int64
	for _, cm := range m.members {
		if cm.UserID == userID {
			channelIDs = append(channelIDs, cm.ChannelID)
		}
	}
	sort.Slice(channelIDs, func(i, j int) bool { return channelIDs[i] < channelIDs[j] })
	var out []store.ChannelDetail
	for _, id := range channelIDs {
		detail, err := m.channelDetailLocked(id)
		if err != nil {
			continue
		}
		out = append(out, *detail)
	}
	return out, nil
}

func (m *Mem) StaleChannels(_ context.Context, olderThan time.Time) ([]domain.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Channel
	for _, ch := range m.channels {
		if ch.UpdatedAt.Before(olderThan) {
			out = append(out, *ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Mem) InChannelTx(ctx context.Context, channelID int64, fn func(tx store.ChannelTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return store.ErrNotFound
	}
	cp := *ch
	return fn(&memChannelTx{m: m, ch: &cp})
}

type memChannelTx struct {
	m  *Mem
	ch *domain.Channel
}

func (t *memChannelTx) Channel() *domain.Channel { return t.ch }

func (t *memChannelTx) Member(_ context.Context, userID int64) (*domain.ChannelMember, error) {
	for _, cm := range t.m.members {
		if cm.ChannelID == t.ch.ID && cm.UserID == userID {
			cp := *cm
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memChannelTx) MemberIDs(_ context.Context) ([]int64, error) {
	var members []*domain.ChannelMember
	for _, cm := range t.m.members {
		if cm.ChannelID == t.ch.ID {
			members = append(members, cm)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	ids := make([]int64, 0, len(members))
	for _, cm := range members {
		ids = append(ids, cm.UserID)
	}
	return ids, nil
}

func (t *memChannelTx) AddMember(_ context.Context, userID int64, role domain.MemberRole) error {
	for _, cm := range t.m.members {
		if cm.ChannelID == t.ch.ID && cm.UserID == userID {
			return store.ErrDuplicate
		}
	}
	cm := &domain.ChannelMember{
		ID:        t.m.nextID(),
		ChannelID: t.ch.ID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now(),
	}
	t.m.members[cm.ID] = cm
	return nil
}

func (t *memChannelTx) RemoveMember(_ context.Context, userID int64) error {
	for id, cm := range t.m.members {
		if cm.ChannelID == t.ch.ID && cm.UserID == userID {
			delete(t.m.members, id)
		}
	}
	return nil
}

func (t *memChannelTx) Ban(_ context.Context, userID int64) (*domain.ChannelBan, error) {
	for _, b := range t.m.bans {
		if b.ChannelID == t.ch.ID && b.UserID == userID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memChannelTx) AddBan(_ context.Context, userID, bannedByUserID int64) error {
	for _, b := range t.m.bans {
		if b.ChannelID == t.ch.ID && b.UserID == userID {
			return store.ErrDuplicate
		}
	}
	b := &domain.ChannelBan{
		ID:             t.m.nextID(),
		ChannelID:      t.ch.ID,
		UserID:         userID,
		BannedByUserID: bannedByUserID,
		CreatedAt:      time.Now(),
	}
	t.m.bans[b.ID] = b
	return nil
}

func (t *memChannelTx) RemoveBan(_ context.Context, userID int64) error {
	for id, b := range t.m.bans {
		if b.ChannelID == t.ch.ID && b.UserID == userID {
			delete(t.m.bans, id)
		}
	}
	return nil
}

func (t *memChannelTx) AddKickVote(_ context.Context, voterUserID, targetUserID int64) error {
	for _, v := range t.m.votes {
		if v.ChannelID == t.ch.ID && v.VoterUserID == voterUserID && v.TargetUserID == targetUserID {
			return store.ErrDuplicate
		}
	}
	v := &domain.ChannelKickVote{
		ID:           t.m.nextID(),
		ChannelID:    t.ch.ID,
		VoterUserID:  voterUserID,
		TargetUserID: targetUserID,
		CreatedAt:    time.Now(),
	}
	t.m.votes[v.ID] = v
	return nil
}

func (t *memChannelTx) CountKickVotes(_ context.Context, targetUserID int64) (int, error) {
	count := 0
	for _, v := range t.m.votes {
		if v.ChannelID == t.ch.ID && v.TargetUserID == targetUserID {
			count++
		}
	}
	return count, nil
}

func (t *memChannelTx) ClearKickVotes(_ context.Context, targetUserID int64) error {
	for id, v := range t.m.votes {
		if v.ChannelID == t.ch.ID && v.TargetUserID == targetUserID {
			delete(t.m.votes, id)
		}
	}
	return nil
}

func (t *memChannelTx) Touch(_ context.Context) error {
	if ch, ok := t.m.channels[t.ch.ID]; ok {
		ch.UpdatedAt = time.Now()
	}
	return nil
}

func (t *memChannelTx) DeleteChannel(_ context.Context) error {
	id := t.ch.ID
	for k, cm := range t.m.members {
		if cm.ChannelID == id {
			delete(t.m.members, k)
		}
	}
	for k, v := range t.m.votes {
		if v.ChannelID == id {
			delete(t.m.votes, k)
		}
	}
	for k, b := range t.m.bans {
		if b.ChannelID == id {
			delete(t.m.bans, k)
		}
	}
	msgIDs := make(map[int64]bool)
	for k, msg := range t.m.messages {
		if msg.ChannelID == id {
			msgIDs[msg.ID] = true
			delete(t.m.messages, k)
		}
	}
	for k, mn := range t.m.mentions {
		if msgIDs[mn.MessageID] {
			delete(t.m.mentions, k)
		}
	}
	delete(t.m.channels, id)
	return nil
}

// ---- Messages ----

func (m *Mem) CreateMessage(_ context.Context, msg *domain.Message, mentionedUserIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.nextID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	for _, uid := range mentionedUserIDs {
		mn := &domain.MessageMention{ID: m.nextID(), MessageID: msg.ID, MentionedUserID: uid}
		m.mentions[mn.ID] = mn
	}
	return nil
}

func (m *Mem) MessagesBefore(_ context.Context, channelID, beforeID int64, limit int) ([]store.MessageDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var msgs []*domain.Message
	for _, msg := range m.messages {
		if msg.ChannelID != channelID {
			continue
		}
		if beforeID > 0 && msg.ID >= beforeID {
			continue
		}
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]store.MessageDetail, 0, len(msgs))
	for _, msg := range msgs {
		detail := store.MessageDetail{Message: *msg}
		if u, ok := m.users[msg.UserID]; ok {
			detail.SenderNickname = u.Nickname
		}
		var mns []*domain.MessageMention
		for _, mn := range m.mentions {
			if mn.MessageID == msg.ID {
				mns = append(mns, mn)
			}
		}
		sort.Slice(mns, func(i, j int) bool { return mns[i].ID < mns[j].ID })
		for _, mn := range mns {
			if u, ok := m.users[mn.MentionedUserID]; ok {
				detail.Mentioned = append(detail.Mentioned, u.Nickname)
			}
		}
		out = append(out, detail)
	}
	return out, nil
}
