package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// kvEntryRecord stores one KV entry. ExpiresAtUnixMS is zero for entries
// without a TTL.
type kvEntryRecord struct {
	bun.BaseModel `bun:"table:integration_kv_entries,alias:ike"`

	ID              string    `bun:"id,pk"`
	EntryKey        string    `bun:"entry_key,notnull"`
	Value           []byte    `bun:"value,notnull"`
	ExpiresAtUnixMS int64     `bun:"expires_at_unix_ms,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *kvEntryRecord) expired(now time.Time) bool {
	if r == nil || r.ExpiresAtUnixMS <= 0 {
		return false
	}
	return now.UnixMilli() >= r.ExpiresAtUnixMS
}
