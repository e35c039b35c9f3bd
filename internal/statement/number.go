package statement

import "fmt"

// Number formats a family statement number: STMT-<last six digits of the
// family id>-<sequence>.
func Number(familyID int64, sequence int) string {
	return fmt.Sprintf("STMT-%s-%d", lastSix(familyID), sequence)
}

// MemberNumber formats a member statement number: STMT-MEM-<last six
// digits of the member id>-<sequence>.
func MemberNumber(memberID int64, sequence int) string {
	return fmt.Sprintf("STMT-MEM-%s-%d", lastSix(memberID), sequence)
}

func lastSix(id int64) string {
	return fmt.Sprintf("%06d", id%1000000)
}
