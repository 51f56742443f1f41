package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func AnalysisKey(analysisID uuid.UUID) string {
	return fmt.Sprintf("analysis:record:%s", analysisID)
}

func ReportKey(analysisID uuid.UUID) string {
	return fmt.Sprintf("analysis:report:%s", analysisID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
