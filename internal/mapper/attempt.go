package mapper

import (
	"github.com/google/uuid"

	"github.com/cortexmap/cortex/internal/progress"
)

func newAttemptID() [16]byte {
	return progress.UUIDToBytes(uuid.New())
}
