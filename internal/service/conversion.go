package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/plans"
	"github.com/Kerhoff/kasa/internal/repository"
)

// PlanWeddingWork returns the members due for conversion on today: wedding
// date reached and not yet converted. Members left in the converting state
// by an interrupted run are included so they resume.
func PlanWeddingWork(members []*models.Member, today time.Time) []*models.Member {
	today = clock.Day(today)
	var due []*models.Member
	for _, m := range members {
		if m.IsConverted() || !m.WeddingDue(today) {
			continue
		}
		due = append(due, m)
	}
	return due
}

// SplitSpouseName splits a free-form spouse name into first and last name.
// A single word takes fallbackLast as the last name.
func SplitSpouseName(spouseName, fallbackLast string) (string, string) {
	parts := strings.Fields(spouseName)
	switch len(parts) {
	case 0:
		return "", fallbackLast
	case 1:
		return parts[0], fallbackLast
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// ConvertedFamily builds the family a member becomes on their wedding date.
// Contact fields come from the member, falling back to the original family.
func ConvertedFamily(m *models.Member, original *models.Family, planNumber int) *models.Family {
	name := m.FullName() + " Family"
	if spouse := strings.TrimSpace(m.SpouseName); spouse != "" {
		name = m.FullName() + " & " + spouse
	}
	spouseFirst, spouseLast := SplitSpouseName(m.SpouseName, m.LastName)

	sourceID := m.ID
	f := &models.Family{
		OwnerID:        original.OwnerID,
		Name:           name,
		WeddingDate:    m.WeddingDate,
		Email:          firstNonEmpty(m.Email, original.Email),
		Phone:          firstNonEmpty(m.Phone, original.Phone),
		Address:        firstNonEmpty(m.Address, original.Address),
		City:           firstNonEmpty(m.City, original.City),
		State:          firstNonEmpty(m.State, original.State),
		Zip:            firstNonEmpty(m.Zip, original.Zip),
		PlanNumber:     planNumber,
		PlanAssignedAt: m.WeddingDate,
		SourceMemberID: &sourceID,
	}

	if m.Gender == models.GenderFemale {
		f.WifeFirstName = m.FirstName
		f.WifeLastName = m.LastName
		f.WifeHebrewName = m.HebrewName
		f.WifeFatherHebrewName = original.WifeHebrewName
		f.HusbandFirstName = spouseFirst
		f.HusbandLastName = spouseLast
	} else {
		f.HusbandFirstName = m.FirstName
		f.HusbandLastName = m.LastName
		f.HusbandHebrewName = m.HebrewName
		f.HusbandFatherHebrewName = original.HusbandHebrewName
		f.WifeFirstName = spouseFirst
		f.WifeLastName = spouseLast
	}
	return f
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// RunWeddingConversion converts every member of the owner whose wedding
// date has arrived.
func (s *Service) RunWeddingConversion(ctx context.Context, ownerID int64, force bool) (*Summary, error) {
	settings, err := s.AutomationSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !force && !settings.EnableWeddingConversion {
		return s.disabled(JobWeddingConversion, ownerID), nil
	}

	today := clock.Today(s.clock)
	members, err := s.Members.ListWeddingDue(ctx, ownerID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list wedding-due members of owner %d: %w", ownerID, err)
	}

	due := PlanWeddingWork(members, today)
	items := make([]workItem, 0, len(due))
	for _, m := range due {
		items = append(items, workItem{
			fields: logrus.Fields{"member_id": m.ID, "family_id": m.FamilyID},
			run: func(ctx context.Context) error {
				_, err := s.ConvertMember(ctx, m.ID)
				return err
			},
		})
	}
	return s.runJob(ctx, JobWeddingConversion, ownerID, items), nil
}

// ConvertMember turns a married member into their own family. The member
// is first marked converting; the new family, the spouse and the final
// converted mark are then written in one transaction. A member found in
// the converting state resumes from the second step, and the family's
// unique source member keeps a retry from creating a second family.
func (s *Service) ConvertMember(ctx context.Context, memberID int64) (*models.Family, error) {
	member, err := s.member(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.IsConverted() {
		return nil, fmt.Errorf("member %d already converted: %w", memberID, models.ErrIdempotencyConflict)
	}
	today := clock.Today(s.clock)
	if !member.WeddingDue(today) {
		return nil, &models.ValidationError{Field: "wedding_date", Message: "has not been reached"}
	}

	if member.ConversionState == models.ConversionNone {
		err := s.Members.TransitionConversion(ctx, member.ID, models.ConversionNone, models.ConversionConverting, nil)
		if errors.Is(err, repository.ErrConflict) {
			member, err = s.member(ctx, memberID)
			if err != nil {
				return nil, err
			}
			if member.IsConverted() {
				return nil, fmt.Errorf("member %d already converted: %w", memberID, models.ErrIdempotencyConflict)
			}
		} else if err != nil {
			return nil, fmt.Errorf("failed to mark member %d converting: %w", memberID, err)
		}
	}

	original, err := s.family(ctx, member.FamilyID)
	if err != nil {
		return nil, err
	}

	years := 0
	if member.WeddingDate != nil {
		years, _ = plans.GregorianAge(*member.WeddingDate, today)
	}
	planNumber := plans.PlanForYearsMarried(years)

	var family *models.Family
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		family, err = s.ensureConvertedFamily(ctx, member, original, planNumber)
		if err != nil {
			return err
		}
		if err := s.ensureSpouse(ctx, member, family); err != nil {
			return err
		}
		return s.Members.TransitionConversion(ctx, member.ID, models.ConversionConverting, models.ConversionConverted, &family.ID)
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("member %d converted concurrently: %w", memberID, models.ErrIdempotencyConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to convert member %d: %w", memberID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"member_id":     member.ID,
		"family_id":     original.ID,
		"new_family_id": family.ID,
		"plan_number":   planNumber,
	}).Infof("Converted %s to new family: %s", member.FullName(), family.Name)
	s.notify(ctx, notify.EventMemberConverted, notify.Payload{
		"member_id":     member.ID,
		"family_id":     original.ID,
		"new_family_id": family.ID,
		"name":          family.Name,
	})
	return family, nil
}

func (s *Service) ensureConvertedFamily(ctx context.Context, m *models.Member, original *models.Family, planNumber int) (*models.Family, error) {
	family, err := s.Families.GetBySourceMember(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up family of member %d: %w", m.ID, err)
	}
	if family != nil {
		return family, nil
	}

	family, err = s.Families.Create(ctx, ConvertedFamily(m, original, planNumber))
	if errors.Is(err, repository.ErrDuplicate) {
		family, err = s.Families.GetBySourceMember(ctx, m.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create family for member %d: %w", m.ID, err)
	}
	return family, nil
}

// ensureSpouse adds the spouse to the new family. The converted member is
// the head of the new family and is not copied into it.
func (s *Service) ensureSpouse(ctx context.Context, m *models.Member, family *models.Family) error {
	first, last := SplitSpouseName(m.SpouseName, m.LastName)
	if first == "" {
		return nil
	}

	existing, err := s.Members.GetBySpouseOf(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to look up spouse of member %d: %w", m.ID, err)
	}
	if existing != nil {
		return nil
	}

	sourceID := m.ID
	_, err = s.Members.Create(ctx, &models.Member{
		FamilyID:         family.ID,
		FirstName:        first,
		LastName:         last,
		Gender:           m.Gender.Opposite(),
		SpouseOfMemberID: &sourceID,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create spouse of member %d: %w", m.ID, err)
	}
	return nil
}
