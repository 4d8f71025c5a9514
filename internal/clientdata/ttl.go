package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Reference data
	TTLFundList = 24 * time.Hour // Full fund code/name list, refreshed daily

	// Daily data
	TTLOfficialNAV = 6 * time.Hour // Published NAV history, refetched a few times per evening

	// Short-lived data
	TTLExchangeRate = time.Hour // Currency exchange rates
)
