package shared

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// FamilyLockID derives the advisory lock key for a payroll version
// family. Version creation and activation take this lock inside their
// transactions so a family is never activated mid-creation.
func FamilyLockID(familyRoot uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(familyRoot[:])
	return int64(h.Sum64())
}
