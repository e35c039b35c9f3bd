package plans

import (
	"time"

	"github.com/Kerhoff/kasa/internal/hebrew"
	"github.com/Kerhoff/kasa/internal/models"
)

// Unassigned is the plan number of a member without a plan.
const Unassigned = 0

// Annotation is a display flag attached to a resolved plan.
type Annotation string

const (
	// AnnotationBarMitzvah marks a male member on the Bucher tier.
	AnnotationBarMitzvah Annotation = "Bar Mitzvah"
	// AnnotationBarMitzvahAge and AnnotationBatMitzvahAge mark a member whose
	// age is exactly 13, whatever plan they are on.
	AnnotationBarMitzvahAge Annotation = "Bar Mitzvah Age"
	AnnotationBatMitzvahAge Annotation = "Bat Mitzvah Age"
)

// AgeSource says which calendar an age was computed in
type AgeSource string

const (
	AgeHebrew    AgeSource = "hebrew"
	AgeGregorian AgeSource = "gregorian"
	AgeUnknown   AgeSource = ""
)

// Resolution is the outcome of ResolvePlan.
type Resolution struct {
	PlanNumber  int          `json:"plan_number"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Age         *int         `json:"age,omitempty"`
	AgeSource   AgeSource    `json:"age_source,omitempty"`
	HebrewBirth string       `json:"hebrew_birth_date,omitempty"`
}

// Assigned returns true if a plan applies
func (r Resolution) Assigned() bool {
	return r.PlanNumber != Unassigned
}

// Has reports whether the resolution carries annotation a
func (r Resolution) Has(a Annotation) bool {
	for _, got := range r.Annotations {
		if got == a {
			return true
		}
	}
	return false
}

// ResolvePlan returns the plan that applies to m on asOf and its display
// annotations. A plan applies only once explicitly assigned, on or before
// asOf. The tier annotation and the age annotation are independent and may
// both be present.
func ResolvePlan(m *models.Member, asOf time.Time) Resolution {
	var res Resolution

	if m.HasPlan() && (m.PlanAssignedAt == nil || !m.PlanAssignedAt.After(asOf)) {
		res.PlanNumber = m.PlanNumber
	}

	birth, hebrewKnown := HebrewBirthDate(m)
	if hebrewKnown {
		res.HebrewBirth = birth.String()
	}

	if res.PlanNumber == TierBucher && m.Gender == models.GenderMale && hebrewKnown {
		res.Annotations = append(res.Annotations, AnnotationBarMitzvah)
	}

	age, source := MemberAge(m, asOf)
	if source != AgeUnknown {
		res.Age = &age
		res.AgeSource = source
	}
	if source != AgeUnknown && age == hebrew.BarMitzvahAge {
		switch m.Gender {
		case models.GenderMale:
			res.Annotations = append(res.Annotations, AnnotationBarMitzvahAge)
		case models.GenderFemale:
			res.Annotations = append(res.Annotations, AnnotationBatMitzvahAge)
		}
	}
	return res
}

// HebrewBirthDate returns the member's Hebrew birth date, preferring the
// cached value and converting the Gregorian birth date otherwise.
func HebrewBirthDate(m *models.Member) (hebrew.Date, bool) {
	if m.HebrewBirthDate != "" {
		if d, err := hebrew.Parse(m.HebrewBirthDate); err == nil {
			return d, true
		}
	}
	if m.BirthDate != nil {
		if d, err := hebrew.FromGregorian(*m.BirthDate); err == nil {
			return d, true
		}
	}
	return hebrew.Date{}, false
}

// MemberAge returns the Hebrew-calendar age when the birth date resolves,
// falling back to Gregorian age arithmetic.
func MemberAge(m *models.Member, asOf time.Time) (int, AgeSource) {
	if birth, ok := HebrewBirthDate(m); ok {
		if age, ok := hebrew.Age(birth, asOf); ok {
			return age, AgeHebrew
		}
	}
	if m.BirthDate != nil {
		if age, ok := GregorianAge(*m.BirthDate, asOf); ok {
			return age, AgeGregorian
		}
	}
	return 0, AgeUnknown
}

// GregorianAge is ordinary birthday arithmetic. ok is false before birth.
func GregorianAge(birth, asOf time.Time) (int, bool) {
	age := asOf.Year() - birth.Year()
	if asOf.Month() < birth.Month() || (asOf.Month() == birth.Month() && asOf.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// PlanForYearsMarried picks the tier for a newly converted family from the
// years since the wedding.
func PlanForYearsMarried(years int) int {
	switch {
	case years <= 4:
		return TierStandard
	case years <= 8:
		return TierMid
	case years <= 16:
		return TierBucher
	default:
		return TierFull
	}
}
