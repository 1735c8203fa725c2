// Package registry provides user CRUD and verification status over the
// document store.
package registry

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/store"
)

// Supported interface languages. DefaultLanguage is applied when a record has
// no (or an unknown) language set.
const (
	LanguageRU = "ru"
	LanguageEN = "en"

	DefaultLanguage = LanguageRU
)

// Stats summarizes the registry for the operator panel.
type Stats struct {
	TotalUsers     int
	Verified       int
	InVerification int
}

// Registry owns per-user records inside the shared document.
type Registry struct {
	store *store.Store
	log   *slog.Logger
}

// New constructs a Registry over the given store.
func New(s *store.Store, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{store: s, log: log}
}

// Touch creates the record when absent or legacy-shaped and refreshes
// last_seen otherwise, optionally overwriting username and broker uid.
// Returns true when a fresh record was created.
func (r *Registry) Touch(userID int64, username, brokerUID string) bool {
	key := userKey(userID)
	now := time.Now().UTC()

	isNew := false
	err := r.store.Mutate(func(doc *store.Document) {
		existing, ok := doc.Users[key]
		if !ok || existing.IsLegacy() {
			doc.Users[key] = store.UserValue{Record: &store.UserRecord{
				Username:  username,
				BrokerUID: brokerUID,
				FirstSeen: now,
				LastSeen:  now,
			}}
			isNew = true
			return
		}

		rec := existing.Record
		rec.LastSeen = now
		if username != "" {
			rec.Username = username
		}
		if brokerUID != "" {
			rec.BrokerUID = brokerUID
		}
		doc.Users[key] = store.UserValue{Record: rec}
	})
	if err != nil {
		r.log.Error("failed to persist user touch", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	if isNew {
		r.log.Info("created user record", slog.Int64("user_id", userID))
	}
	return isNew
}

// Get returns a copy of the structured record, or nil when the user is
// unknown or still legacy-shaped.
func (r *Registry) Get(userID int64) *store.UserRecord {
	var rec *store.UserRecord
	r.store.View(func(doc *store.Document) {
		if v, ok := doc.Users[userKey(userID)]; ok && v.Record != nil {
			copied := *v.Record
			rec = &copied
		}
	})
	return rec
}

// SetRegistered marks the registration flag.
func (r *Registry) SetRegistered(userID int64, registered bool) {
	r.mutateRecord(userID, func(rec *store.UserRecord) {
		rec.IsRegistered = registered
	})
}

// SetDeposit marks the deposit flag.
func (r *Registry) SetDeposit(userID int64, hasDeposit bool) {
	r.mutateRecord(userID, func(rec *store.UserRecord) {
		rec.HasDeposit = hasDeposit
	})
}

// SetBrokerUID stores the broker account identifier.
func (r *Registry) SetBrokerUID(userID int64, uid string) {
	r.mutateRecord(userID, func(rec *store.UserRecord) {
		rec.BrokerUID = uid
	})
}

// SetLanguage stores the preferred interface language.
func (r *Registry) SetLanguage(userID int64, lang string) {
	if lang != LanguageRU && lang != LanguageEN {
		lang = DefaultLanguage
	}
	r.mutateRecord(userID, func(rec *store.UserRecord) {
		rec.Language = lang
	})
}

// Language returns the stored language, or the default when unset.
func (r *Registry) Language(userID int64) string {
	rec := r.Get(userID)
	if rec == nil {
		return DefaultLanguage
	}
	if rec.Language != LanguageRU && rec.Language != LanguageEN {
		return DefaultLanguage
	}
	return rec.Language
}

// HasLanguage reports whether the user already picked a language.
func (r *Registry) HasLanguage(userID int64) bool {
	rec := r.Get(userID)
	return rec != nil && (rec.Language == LanguageRU || rec.Language == LanguageEN)
}

// BrokerUID returns the stored broker identifier, if any.
func (r *Registry) BrokerUID(userID int64) string {
	rec := r.Get(userID)
	if rec == nil {
		return ""
	}
	return rec.BrokerUID
}

// IsFullyVerified reports whether both verification flags hold. Absent or
// legacy-shaped records are never verified.
func (r *Registry) IsFullyVerified(userID int64) bool {
	return r.Get(userID).FullyVerified()
}

// FindByBrokerUID resolves a user by broker identifier with a linear scan;
// the first match wins.
func (r *Registry) FindByBrokerUID(uid string) (int64, bool) {
	if uid == "" {
		return 0, false
	}

	var (
		found  bool
		userID int64
	)
	r.store.View(func(doc *store.Document) {
		for key, v := range doc.Users {
			if v.Record == nil || v.Record.BrokerUID != uid {
				continue
			}
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			userID = id
			found = true
			return
		}
	})
	return userID, found
}

// AllUserIDs returns every known user id, legacy records included.
func (r *Registry) AllUserIDs() []int64 {
	var ids []int64
	r.store.View(func(doc *store.Document) {
		ids = make([]int64, 0, len(doc.Users))
		for key := range doc.Users {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	})
	return ids
}

// VerifiedUserIDs returns the ids of fully verified users.
func (r *Registry) VerifiedUserIDs() []int64 {
	var ids []int64
	r.store.View(func(doc *store.Document) {
		for key, v := range doc.Users {
			if !v.Record.FullyVerified() {
				continue
			}
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	})
	return ids
}

// Stats derives the registry counters.
func (r *Registry) Stats() Stats {
	var stats Stats
	r.store.View(func(doc *store.Document) {
		stats.TotalUsers = len(doc.Users)
		for _, v := range doc.Users {
			rec := v.Record
			if rec == nil {
				continue
			}
			switch {
			case rec.IsRegistered && rec.HasDeposit:
				stats.Verified++
			case rec.IsRegistered:
				stats.InVerification++
			}
		}
	})
	return stats
}

// mutateRecord ensures a well-formed record exists (creating one the same way
// Touch does) before applying fn, then persists.
func (r *Registry) mutateRecord(userID int64, fn func(rec *store.UserRecord)) {
	key := userKey(userID)
	now := time.Now().UTC()

	err := r.store.Mutate(func(doc *store.Document) {
		existing, ok := doc.Users[key]
		rec := existing.Record
		if !ok || rec == nil {
			rec = &store.UserRecord{FirstSeen: now, LastSeen: now}
		}
		fn(rec)
		doc.Users[key] = store.UserValue{Record: rec}
	})
	if err != nil {
		r.log.Error("failed to persist user field update", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
