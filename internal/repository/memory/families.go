package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/repository"
)

type userRepository struct{ s *Store }

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.data.users {
		if u.Email == user.Email || (user.TelegramID != nil && sameID(u.TelegramID, user.TelegramID)) {
			return nil, repository.ErrDuplicate
		}
	}
	out := *user
	out.ID = r.s.id()
	out.IsActive = true
	out.CreatedAt = r.s.stamp()
	out.UpdatedAt = out.CreatedAt
	put(ctx, r.s.data.users, out.ID, out)
	return &out, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.data.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepository) ListActive(ctx context.Context) ([]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.User
	for _, u := range r.s.data.users {
		if u.IsActive {
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type familyRepository struct{ s *Store }

func (r *familyRepository) Create(ctx context.Context, family *models.Family) (*models.Family, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if family.SourceMemberID != nil {
		for _, f := range r.s.data.families {
			if sameID(f.SourceMemberID, family.SourceMemberID) {
				return nil, repository.ErrDuplicate
			}
		}
	}
	out := *family
	out.ID = r.s.id()
	out.CreatedAt = r.s.stamp()
	out.UpdatedAt = out.CreatedAt
	put(ctx, r.s.data.families, out.ID, out)
	return &out, nil
}

func (r *familyRepository) GetByID(ctx context.Context, id int64) (*models.Family, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.data.families[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (r *familyRepository) GetBySourceMember(ctx context.Context, memberID int64) (*models.Family, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, f := range r.s.data.families {
		if f.SourceMemberID != nil && *f.SourceMemberID == memberID {
			return &f, nil
		}
	}
	return nil, nil
}

func (r *familyRepository) ListByOwner(ctx context.Context, ownerID int64, filters repository.FamilyFilters) ([]*models.Family, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Family
	for _, f := range r.s.data.families {
		if f.OwnerID != ownerID || (f.Archived && !filters.IncludeArchived) {
			continue
		}
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, filters.Limit, filters.Offset), nil
}

func (r *familyRepository) Update(ctx context.Context, family *models.Family) (*models.Family, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.families[family.ID]; !ok {
		return nil, notFound("family", family.ID)
	}
	out := *family
	out.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.families, out.ID, out)
	return &out, nil
}

func (r *familyRepository) StampCycle(ctx context.Context, familyID int64, prev *time.Time, next time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.data.families[familyID]
	if !ok {
		return notFound("family", familyID)
	}
	if !sameTime(f.LastCycleAppliedDate, prev) {
		return repository.ErrConflict
	}
	f.LastCycleAppliedDate = &next
	f.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.families, familyID, f)
	return nil
}

type memberRepository struct{ s *Store }

func (r *memberRepository) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.families[member.FamilyID]; !ok {
		return nil, notFound("family", member.FamilyID)
	}
	if member.SpouseOfMemberID != nil {
		for _, m := range r.s.data.members {
			if sameID(m.SpouseOfMemberID, member.SpouseOfMemberID) {
				return nil, repository.ErrDuplicate
			}
		}
	}
	out := *member
	out.ID = r.s.id()
	out.CreatedAt = r.s.stamp()
	out.UpdatedAt = out.CreatedAt
	put(ctx, r.s.data.members, out.ID, out)
	return &out, nil
}

func (r *memberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.data.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *memberRepository) GetBySpouseOf(ctx context.Context, memberID int64) (*models.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, m := range r.s.data.members {
		if m.SpouseOfMemberID != nil && *m.SpouseOfMemberID == memberID {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *memberRepository) ListActiveByFamily(ctx context.Context, familyID int64) ([]*models.Member, error) {
	return r.list(func(m models.Member) bool { return m.FamilyID == familyID && m.IsActive() }), nil
}

func (r *memberRepository) ListWeddingDue(ctx context.Context, ownerID int64, today time.Time) ([]*models.Member, error) {
	owned := r.ownedFamilies(ownerID)
	return r.list(func(m models.Member) bool {
		return owned[m.FamilyID] && !m.IsConverted() && m.WeddingDue(today)
	}), nil
}

func (r *memberRepository) ListWithBirthDate(ctx context.Context, ownerID int64) ([]*models.Member, error) {
	owned := r.ownedFamilies(ownerID)
	return r.list(func(m models.Member) bool {
		return owned[m.FamilyID] && m.IsActive() && m.BirthDate != nil
	}), nil
}

func (r *memberRepository) ownedFamilies(ownerID int64) map[int64]bool {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	owned := make(map[int64]bool)
	for id, f := range r.s.data.families {
		if f.OwnerID == ownerID && !f.Archived {
			owned[id] = true
		}
	}
	return owned
}

func (r *memberRepository) list(keep func(models.Member) bool) []*models.Member {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Member
	for _, m := range r.s.data.members {
		if keep(m) {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memberRepository) Update(ctx context.Context, member *models.Member) (*models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.data.members[member.ID]
	if !ok {
		return nil, notFound("member", member.ID)
	}
	out := *member
	// Conversion state only moves through TransitionConversion.
	out.ConversionState = existing.ConversionState
	out.ConvertedFamilyID = existing.ConvertedFamilyID
	out.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.members, out.ID, out)
	return &out, nil
}

func (r *memberRepository) UpdateBarMitzvah(ctx context.Context, memberID int64, hebrewBirthDate string, eventAdded bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.data.members[memberID]
	if !ok {
		return notFound("member", memberID)
	}
	if hebrewBirthDate != "" {
		m.HebrewBirthDate = hebrewBirthDate
	}
	m.BarMitzvahEventAdded = m.BarMitzvahEventAdded || eventAdded
	m.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.members, memberID, m)
	return nil
}

func (r *memberRepository) TransitionConversion(ctx context.Context, memberID int64, from, to models.ConversionState, convertedFamilyID *int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.data.members[memberID]
	if !ok {
		return notFound("member", memberID)
	}
	if m.ConversionState != from {
		return repository.ErrConflict
	}
	m.ConversionState = to
	if convertedFamilyID != nil {
		m.ConvertedFamilyID = convertedFamilyID
	}
	m.UpdatedAt = r.s.stamp()
	put(ctx, r.s.data.members, memberID, m)
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
