// Package memory is an in-process implementation of the repository
// interfaces with the same uniqueness and cascade rules as the SQL schema.
// It backs service and handler tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
)

type Store struct {
	mu sync.Mutex

	groups    map[int64]models.Group
	logs      []models.SubscriptionLog
	users     map[uint]models.User
	admins    map[[2]int64]models.GroupAdmin
	sellers   map[int64]models.Seller
	relations map[uint]models.Relationship
	crushes   map[uint]models.Crush
	replies   map[replyKey]int
	ships     map[shipKey]models.ShipHistory

	nextID uint
}

type replyKey struct {
	groupID int64
	day     time.Time
	userID  uint
}

type shipKey struct {
	groupID int64
	day     time.Time
}

func New() *Store {
	return &Store{
		groups:    make(map[int64]models.Group),
		users:     make(map[uint]models.User),
		admins:    make(map[[2]int64]models.GroupAdmin),
		sellers:   make(map[int64]models.Seller),
		relations: make(map[uint]models.Relationship),
		crushes:   make(map[uint]models.Crush),
		replies:   make(map[replyKey]int),
		ships:     make(map[shipKey]models.ShipHistory),
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func notFound(op string) error { return fmt.Errorf("%s: %w", op, apperr.ErrNotFound) }
func conflict(op string) error { return fmt.Errorf("%s: %w", op, apperr.ErrConflict) }

func (s *Store) Groups() *Groups       { return &Groups{s} }
func (s *Store) Users() *Users         { return &Users{s} }
func (s *Store) Sellers() *Sellers     { return &Sellers{s} }
func (s *Store) Relations() *Relations { return &Relations{s} }
func (s *Store) Stats() *Stats         { return &Stats{s} }

// Logs returns a copy of the billing log.
func (s *Store) Logs() []models.SubscriptionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.logs)
}

// Ships returns every ship row of a group.
func (s *Store) Ships(groupID int64) []models.ShipHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ShipHistory
	for k, v := range s.ships {
		if k.groupID == groupID {
			out = append(out, v)
		}
	}
	return out
}

// ReplyCount reads a raw counter.
func (s *Store) ReplyCount(groupID int64, day time.Time, userID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replies[replyKey{groupID, day, userID}]
}

// SetExpiry overwrites a group's expiry directly.
func (s *Store) SetExpiry(chatID int64, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.groups[chatID]
	g.ExpiresAt = expiresAt
	s.groups[chatID] = g
}

type Groups struct{ s *Store }

func (g *Groups) CreateIfAbsent(_ context.Context, group *models.Group, trial *models.SubscriptionLog) (bool, error) {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ChatID]; ok {
		return false, nil
	}
	now := time.Now()
	group.CreatedAt, group.UpdatedAt = now, now
	s.groups[group.ChatID] = *group
	if trial != nil {
		trial.GroupID = group.ChatID
		trial.ID = s.id()
		trial.CreatedAt = now
		s.logs = append(s.logs, *trial)
	}
	return true, nil
}

func (g *Groups) Get(_ context.Context, chatID int64) (*models.Group, error) {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[chatID]
	if !ok {
		return nil, notFound("get group")
	}
	return &group, nil
}

func (g *Groups) List(context.Context) ([]models.Group, error) {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Group, 0, len(s.groups))
	for _, group := range s.groups {
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (g *Groups) UpdateTitle(_ context.Context, chatID int64, title string) error {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[chatID]
	if !ok {
		return notFound("update group title")
	}
	group.Title = title
	s.groups[chatID] = group
	return nil
}

func (g *Groups) UpdateExpiry(_ context.Context, chatID int64, next func(*time.Time) time.Time, entry *models.SubscriptionLog) (time.Time, error) {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[chatID]
	if !ok {
		return time.Time{}, notFound("update expiry")
	}
	expiry := next(group.ExpiresAt)
	group.ExpiresAt = &expiry
	s.groups[chatID] = group
	if entry != nil {
		entry.GroupID = chatID
		entry.ID = s.id()
		entry.CreatedAt = time.Now()
		s.logs = append(s.logs, *entry)
	}
	return expiry, nil
}

func (g *Groups) UpdateSettings(_ context.Context, chatID int64, mutate func(*models.GroupSettings)) (models.GroupSettings, error) {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[chatID]
	if !ok {
		return models.GroupSettings{}, notFound("update settings")
	}
	settings := group.Settings.Data()
	settings.BlockedSellers = slices.Clone(settings.BlockedSellers)
	mutate(&settings)
	group.Settings = datatypes.NewJSONType(settings)
	s.groups[chatID] = group
	return settings, nil
}

func (g *Groups) SellerStats(_ context.Context, sellerID int64) (models.SellerStats, error) {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := models.SellerStats{SellerID: sellerID}
	seen := make(map[int64]bool)
	for _, entry := range s.logs {
		if entry.Action != models.ActionExtend || entry.ActorID == nil || *entry.ActorID != sellerID {
			continue
		}
		stats.Sales++
		stats.TotalDays += int64(entry.Days)
		if !seen[entry.GroupID] {
			seen[entry.GroupID] = true
			stats.Groups++
		}
	}
	return stats, nil
}

func (g *Groups) Wipe(_ context.Context, chatID int64) error {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.GroupID == chatID {
			s.eraseLocked(u)
			delete(s.users, id)
		}
	}
	for key := range s.admins {
		if key[0] == chatID {
			delete(s.admins, key)
		}
	}
	return nil
}

// eraseLocked drops every row referencing u, mirroring ON DELETE CASCADE.
func (s *Store) eraseLocked(u models.User) {
	for id, c := range s.crushes {
		if c.FromUserID == u.ID || c.ToUserID == u.ID {
			delete(s.crushes, id)
		}
	}
	for id, r := range s.relations {
		if r.Involves(u.ID) {
			delete(s.relations, id)
		}
	}
	for key := range s.replies {
		if key.userID == u.ID {
			delete(s.replies, key)
		}
	}
}

type Users struct{ s *Store }

func (u *Users) findLocked(groupID, telegramID int64) (models.User, bool) {
	for _, user := range u.s.users {
		if user.GroupID == groupID && user.TelegramID == telegramID {
			return user, true
		}
	}
	return models.User{}, false
}

func (u *Users) GetOrCreate(_ context.Context, user *models.User) (*models.User, bool, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[user.GroupID]; !ok {
		return nil, false, fmt.Errorf("create user: group %d missing", user.GroupID)
	}
	if existing, ok := u.findLocked(user.GroupID, user.TelegramID); ok {
		return &existing, false, nil
	}
	if user.Gender == "" {
		user.Gender = models.GenderUnknown
	}
	user.ID = s.id()
	user.CreatedAt = time.Now()
	s.users[user.ID] = *user
	created := *user
	return &created, true, nil
}

func (u *Users) Get(_ context.Context, groupID, telegramID int64) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.findLocked(groupID, telegramID)
	if !ok {
		return nil, notFound("get user")
	}
	return &user, nil
}

func (u *Users) GetByID(_ context.Context, id uint) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, notFound("get user by id")
	}
	return &user, nil
}

func (u *Users) ListByGroup(_ context.Context, groupID int64) ([]models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var out []models.User
	for _, user := range u.s.users {
		if user.GroupID == groupID {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (u *Users) update(id uint, op string, apply func(*models.User)) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return notFound(op)
	}
	apply(&user)
	u.s.users[id] = user
	return nil
}

func (u *Users) UpdateNames(_ context.Context, id uint, first, last, username string) error {
	return u.update(id, "update user names", func(user *models.User) {
		user.FirstName, user.LastName, user.Username = first, last, username
	})
}

func (u *Users) SetGender(_ context.Context, id uint, gender models.Gender) error {
	return u.update(id, "set gender", func(user *models.User) { user.Gender = gender })
}

func (u *Users) SetBirthdate(_ context.Context, id uint, birthdate *time.Time) error {
	return u.update(id, "set birthdate", func(user *models.User) { user.Birthdate = birthdate })
}

func (u *Users) Erase(_ context.Context, groupID, telegramID int64) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := u.findLocked(groupID, telegramID)
	if !ok {
		return notFound("erase user")
	}
	s.eraseLocked(user)
	delete(s.users, user.ID)
	return nil
}

func (u *Users) IsAdmin(_ context.Context, groupID, telegramID int64) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	_, ok := u.s.admins[[2]int64{groupID, telegramID}]
	return ok, nil
}

func (u *Users) GrantAdmin(_ context.Context, admin *models.GroupAdmin) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	key := [2]int64{admin.GroupID, admin.TelegramID}
	if _, ok := u.s.admins[key]; ok {
		return conflict("grant admin")
	}
	admin.ID = u.s.id()
	u.s.admins[key] = *admin
	return nil
}

func (u *Users) RevokeAdmin(_ context.Context, groupID, telegramID int64) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	key := [2]int64{groupID, telegramID}
	if _, ok := u.s.admins[key]; !ok {
		return notFound("revoke admin")
	}
	delete(u.s.admins, key)
	return nil
}

type Sellers struct{ s *Store }

func (sl *Sellers) Get(_ context.Context, telegramID int64) (*models.Seller, error) {
	sl.s.mu.Lock()
	defer sl.s.mu.Unlock()
	seller, ok := sl.s.sellers[telegramID]
	if !ok {
		return nil, notFound("get seller")
	}
	return &seller, nil
}

func (sl *Sellers) Upsert(_ context.Context, seller *models.Seller) error {
	sl.s.mu.Lock()
	defer sl.s.mu.Unlock()
	if existing, ok := sl.s.sellers[seller.TelegramID]; ok {
		existing.IsActive = seller.IsActive
		sl.s.sellers[seller.TelegramID] = existing
		return nil
	}
	sl.s.sellers[seller.TelegramID] = *seller
	return nil
}

func (sl *Sellers) SetActive(_ context.Context, telegramID int64, active bool) error {
	sl.s.mu.Lock()
	defer sl.s.mu.Unlock()
	seller, ok := sl.s.sellers[telegramID]
	if !ok {
		return notFound("set seller active")
	}
	seller.IsActive = active
	sl.s.sellers[telegramID] = seller
	return nil
}

func (sl *Sellers) List(context.Context) ([]models.Seller, error) {
	sl.s.mu.Lock()
	defer sl.s.mu.Unlock()
	out := make([]models.Seller, 0, len(sl.s.sellers))
	for _, seller := range sl.s.sellers {
		out = append(out, seller)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out, nil
}

type Relations struct{ s *Store }

func (r *Relations) CreateRelationship(_ context.Context, rel *models.Relationship) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	rel.UserAID, rel.UserBID = models.CanonicalPair(rel.UserAID, rel.UserBID)
	for _, existing := range s.relations {
		if existing.GroupID == rel.GroupID && existing.UserAID == rel.UserAID && existing.UserBID == rel.UserBID {
			return conflict("create relationship")
		}
	}
	rel.ID = s.id()
	s.relations[rel.ID] = *rel
	return nil
}

func (r *Relations) FindRelationship(_ context.Context, groupID int64, userID uint) (*models.Relationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rel := range r.s.relations {
		if rel.GroupID == groupID && rel.Involves(userID) {
			return &rel, nil
		}
	}
	return nil, notFound("find relationship")
}

func (r *Relations) DeleteRelationship(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.relations, id)
	return nil
}

func (r *Relations) ListRelationships(_ context.Context, groupID int64) ([]models.Relationship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Relationship
	for _, rel := range r.s.relations {
		if rel.GroupID == groupID {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Relations) CreateCrush(_ context.Context, crush *models.Crush) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.crushes {
		if existing.GroupID == crush.GroupID && existing.FromUserID == crush.FromUserID && existing.ToUserID == crush.ToUserID {
			return conflict("create crush")
		}
	}
	crush.ID = s.id()
	s.crushes[crush.ID] = *crush
	return nil
}

func (r *Relations) DeleteCrush(_ context.Context, groupID int64, from, to uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.crushes {
		if c.GroupID == groupID && c.FromUserID == from && c.ToUserID == to {
			delete(r.s.crushes, id)
			return nil
		}
	}
	return notFound("delete crush")
}

func (r *Relations) ListCrushesOn(_ context.Context, groupID int64, to uint) ([]models.Crush, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Crush
	for _, c := range r.s.crushes {
		if c.GroupID == groupID && c.ToUserID == to {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type Stats struct{ s *Store }

func (st *Stats) IncrementReply(_ context.Context, groupID int64, day time.Time, userID uint) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	st.s.replies[replyKey{groupID, day, userID}]++
	return nil
}

func (st *Stats) TopRepliers(_ context.Context, groupID int64, day time.Time, limit int) ([]models.ReplyRank, error) {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var ranks []models.ReplyRank
	for key, count := range s.replies {
		if key.groupID != groupID || !key.day.Equal(day) || count <= 0 {
			continue
		}
		if user, ok := s.users[key.userID]; ok {
			ranks = append(ranks, models.ReplyRank{User: user, Count: count})
		}
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Count != ranks[j].Count {
			return ranks[i].Count > ranks[j].Count
		}
		return ranks[i].User.ID < ranks[j].User.ID
	})
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

func (st *Stats) CreateShip(_ context.Context, ship *models.ShipHistory) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	key := shipKey{ship.GroupID, ship.ShipDate}
	if _, ok := st.s.ships[key]; ok {
		return conflict("create ship")
	}
	ship.ID = st.s.id()
	st.s.ships[key] = *ship
	return nil
}

func (st *Stats) GetShip(_ context.Context, groupID int64, day time.Time) (*models.ShipHistory, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	ship, ok := st.s.ships[shipKey{groupID, day}]
	if !ok {
		return nil, notFound("get ship")
	}
	return &ship, nil
}
