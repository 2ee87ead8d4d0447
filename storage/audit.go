package storage

import (
	"encoding/binary"
	"time"

	"github.com/vocdoni/zkvote-coordinator/types"
	"github.com/vocdoni/zkvote-coordinator/util"
)

// auditKey builds a lexicographically time-ordered key: big-endian unix
// nanoseconds followed by a short random suffix so entries logged in the
// same nanosecond never collide.
func auditKey(t time.Time) []byte {
	key := make([]byte, 8, 12)
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano()))
	return append(key, util.RandomBytes(4)...)
}

// AppendAudit persists an audit entry. Audit writes are append-only, there
// is no update or delete path.
func (s *Storage) AppendAudit(entry *types.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return s.setArtifact(auditPrefix, auditKey(entry.Timestamp), entry)
}

// ListAudit returns audit entries in chronological order, optionally
// filtered by action and actor reference ("" matches all), skipping offset
// entries and returning at most limit (0 means no limit).
func (s *Storage) ListAudit(action types.AuditAction, actorRef string, offset, limit int) ([]*types.AuditEntry, error) {
	keys, err := s.listKeys(auditPrefix)
	if err != nil {
		return nil, err
	}
	var entries []*types.AuditEntry
	skipped := 0
	for _, k := range keys {
		entry := &types.AuditEntry{}
		if err := s.getArtifact(auditPrefix, k, entry); err != nil {
			return nil, err
		}
		if action != "" && entry.Action != action {
			continue
		}
		if actorRef != "" && entry.ActorRef != actorRef {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}
