package store

import (
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// InviteLink is a snapshot of one invite link.
type InviteLink struct {
	URL                string
	ChatID             int64
	Creator            botapi.User
	Name               string
	IsPrimary          bool
	IsRevoked          bool
	CreatesJoinRequest bool
	ExpireDate         int64
	MemberLimit        int
	UsageCount         int
	CreatedAt          int64
	// Joined and Pending hold user ids in ascending order.
	Joined  []int64
	Pending []int64
}

// ValidAt reports whether the link can admit someone at unix time now.
func (l InviteLink) ValidAt(now int64) bool {
	return l.invalidReason(now) == nil
}

func (l InviteLink) invalidReason(now int64) error {
	switch {
	case l.IsRevoked:
		return ErrLinkRevoked
	case l.ExpireDate != 0 && l.ExpireDate < now:
		return ErrLinkExpired
	case l.MemberLimit != 0 && l.UsageCount >= l.MemberLimit:
		return ErrLinkLimitReached
	}
	return nil
}

// API converts the link to its wire shape.
func (l InviteLink) API() botapi.ChatInviteLink {
	return botapi.ChatInviteLink{
		InviteLink:              l.URL,
		Creator:                 l.Creator,
		CreatesJoinRequest:      l.CreatesJoinRequest,
		IsPrimary:               l.IsPrimary,
		IsRevoked:               l.IsRevoked,
		Name:                    l.Name,
		ExpireDate:              l.ExpireDate,
		MemberLimit:             l.MemberLimit,
		PendingJoinRequestCount: len(l.Pending),
	}
}

// InviteLinkOptions are the editable properties of a link.
type InviteLinkOptions struct {
	Name               string
	ExpireDate         int64
	MemberLimit        int
	CreatesJoinRequest bool
}

func (o InviteLinkOptions) validate() error {
	if o.CreatesJoinRequest && o.MemberLimit > 0 {
		return ErrLinkConflict
	}
	return nil
}

// JoinRequest is a pending request to join a chat.
type JoinRequest struct {
	ChatID  int64
	UserID  int64
	LinkURL string
	Date    int64
}

type linkEntry struct {
	link    InviteLink
	joined  map[int64]struct{}
	pending map[int64]struct{}
}

func (l *linkEntry) snapshot() InviteLink {
	out := l.link
	out.Joined = sortedIDs(l.joined)
	out.Pending = sortedIDs(l.pending)
	return out
}

func sortedIDs(set map[int64]struct{}) []int64 {
	if len(set) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func newLinkURL() string {
	return "https://t.me/+" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (s *ChatState) addLink(e *chatEntry, creator botapi.User, opts InviteLinkOptions, primary bool) *linkEntry {
	l := &linkEntry{
		link: InviteLink{
			URL:                newLinkURL(),
			ChatID:             e.chat.ID,
			Creator:            creator,
			Name:               opts.Name,
			IsPrimary:          primary,
			CreatesJoinRequest: opts.CreatesJoinRequest,
			ExpireDate:         opts.ExpireDate,
			MemberLimit:        opts.MemberLimit,
			CreatedAt:          s.now(),
		},
		joined:  make(map[int64]struct{}),
		pending: make(map[int64]struct{}),
	}
	e.links[l.link.URL] = l
	if primary {
		e.primaryLink = l.link.URL
	}
	return l
}

// CreateInviteLink adds an additional (non-primary) link.
func (s *ChatState) CreateInviteLink(chatID int64, creator botapi.User, opts InviteLinkOptions) (InviteLink, error) {
	if err := opts.validate(); err != nil {
		return InviteLink{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return InviteLink{}, ErrChatNotFound
	}
	return s.addLink(e, creator, opts, false).snapshot(), nil
}

// ExportInviteLink revokes the current primary link, if any, and issues a new one.
func (s *ChatState) ExportInviteLink(chatID int64, creator botapi.User) (InviteLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return InviteLink{}, ErrChatNotFound
	}
	if old, ok := e.links[e.primaryLink]; ok {
		old.link.IsRevoked = true
		old.link.IsPrimary = false
	}
	return s.addLink(e, creator, InviteLinkOptions{}, true).snapshot(), nil
}

// PrimaryInviteLink returns the primary link, creating it on first use.
func (s *ChatState) PrimaryInviteLink(chatID int64, creator botapi.User) (InviteLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return InviteLink{}, ErrChatNotFound
	}
	if l, ok := e.links[e.primaryLink]; ok {
		return l.snapshot(), nil
	}
	return s.addLink(e, creator, InviteLinkOptions{}, true).snapshot(), nil
}

// Primary returns the current primary link without creating one.
func (s *ChatState) Primary(chatID int64) (InviteLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return InviteLink{}, false
	}
	l, ok := e.links[e.primaryLink]
	if !ok {
		return InviteLink{}, false
	}
	return l.snapshot(), true
}

// EditInviteLink replaces the options of a non-revoked link.
func (s *ChatState) EditInviteLink(chatID int64, url string, opts InviteLinkOptions) (InviteLink, error) {
	if err := opts.validate(); err != nil {
		return InviteLink{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.link(chatID, url)
	if err != nil {
		return InviteLink{}, err
	}
	if l.link.IsRevoked {
		return InviteLink{}, ErrLinkRevoked
	}
	l.link.Name = opts.Name
	l.link.ExpireDate = opts.ExpireDate
	l.link.MemberLimit = opts.MemberLimit
	l.link.CreatesJoinRequest = opts.CreatesJoinRequest
	return l.snapshot(), nil
}

// RevokeInviteLink marks a link revoked. Revoking is idempotent: a second call
// returns the same revoked link with alreadyRevoked set. Revoking the primary
// link issues a fresh primary link.
func (s *ChatState) RevokeInviteLink(chatID int64, url string) (link InviteLink, alreadyRevoked bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.link(chatID, url)
	if err != nil {
		return InviteLink{}, false, err
	}
	if l.link.IsRevoked {
		return l.snapshot(), true, nil
	}
	l.link.IsRevoked = true
	if l.link.IsPrimary {
		e := s.chats[chatID]
		l.link.IsPrimary = false
		s.addLink(e, l.link.Creator, InviteLinkOptions{}, true)
	}
	return l.snapshot(), false, nil
}

// InviteLink returns one link of a chat.
func (s *ChatState) InviteLink(chatID int64, url string) (InviteLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.link(chatID, url)
	if err != nil {
		return InviteLink{}, false
	}
	return l.snapshot(), true
}

// FindInviteLink looks a link up across every chat.
func (s *ChatState) FindInviteLink(url string) (InviteLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.chats {
		if l, ok := e.links[url]; ok {
			return l.snapshot(), true
		}
	}
	return InviteLink{}, false
}

// InviteLinks lists a chat's links, oldest first.
func (s *ChatState) InviteLinks(chatID int64) []InviteLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	out := make([]InviteLink, 0, len(e.links))
	for _, l := range e.links {
		out = append(out, l.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// IsInviteLinkValid reports whether the link can admit someone now.
func (s *ChatState) IsInviteLinkValid(chatID int64, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.link(chatID, url)
	if err != nil {
		return false
	}
	return l.link.ValidAt(s.now())
}

// UseInviteLink admits userID through the link. Validity is re-checked under the
// same lock that increments the usage count, so the count never exceeds the limit.
// Links that create join requests return ErrLinkNeedsRequest; use RequestJoin.
func (s *ChatState) UseInviteLink(chatID int64, url string, userID int64) (InviteLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.link(chatID, url)
	if err != nil {
		return InviteLink{}, err
	}
	if err := l.link.invalidReason(s.now()); err != nil {
		return InviteLink{}, err
	}
	if l.link.CreatesJoinRequest {
		return InviteLink{}, ErrLinkNeedsRequest
	}
	l.link.UsageCount++
	l.joined[userID] = struct{}{}
	return l.snapshot(), nil
}

// RequestJoin records a pending join request. url may be empty for requests that
// did not come through a link.
func (s *ChatState) RequestJoin(chatID int64, url string, userID int64) (JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return JoinRequest{}, ErrChatNotFound
	}
	if url != "" {
		l, err := s.link(chatID, url)
		if err != nil {
			return JoinRequest{}, err
		}
		if err := l.link.invalidReason(s.now()); err != nil {
			return JoinRequest{}, err
		}
		l.pending[userID] = struct{}{}
	}
	req := JoinRequest{ChatID: chatID, UserID: userID, LinkURL: url, Date: s.now()}
	e.requests[userID] = req
	return req, nil
}

// JoinRequest returns the pending request of userID.
func (s *ChatState) JoinRequest(chatID, userID int64) (JoinRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return JoinRequest{}, false
	}
	req, ok := e.requests[userID]
	return req, ok
}

// ResolveJoinRequest removes a pending request; approval or decline is the caller's
// concern. Approved users are recorded as joined on the originating link.
func (s *ChatState) ResolveJoinRequest(chatID, userID int64, approved bool) (JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chats[chatID]
	if !ok {
		return JoinRequest{}, ErrChatNotFound
	}
	req, ok := e.requests[userID]
	if !ok {
		return JoinRequest{}, ErrRequestNotFound
	}
	delete(e.requests, userID)
	if l, ok := e.links[req.LinkURL]; ok {
		delete(l.pending, userID)
		if approved {
			l.joined[userID] = struct{}{}
		}
	}
	return req, nil
}

// link must be called with s.mu held.
func (s *ChatState) link(chatID int64, url string) (*linkEntry, error) {
	e, ok := s.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	l, ok := e.links[url]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return l, nil
}
