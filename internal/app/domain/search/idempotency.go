package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// IdempotencyKey fingerprints a submission so a double-tapped search maps to
// the same running job. The location hash is bucketed: a retried request from
// a slightly drifted GPS fix still dedups.
func IdempotencyKey(sessionID, query, mode string, userLocation *models.LatLng) string {
	locationHash := "none"
	if userLocation != nil {
		locationHash = fmt.Sprintf("%s,%s", coordBucket(userLocation.Lat), coordBucket(userLocation.Lng))
	}
	payload := fmt.Sprintf("%s|%s|%s|%s", sessionID, normalizeQueryText(query), mode, locationHash)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}
