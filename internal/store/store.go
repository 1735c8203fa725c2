package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dayKeyLayout = "2006-01-02"

// Store is the single-writer owner of the persisted Document. Every mutator
// updates the in-memory document and then writes the whole file; a failed
// write is reported but the in-memory mutation is kept, so memory stays the
// source of truth until the next successful save.
type Store struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
	doc  *Document

	// bumped on every save so the file watcher can tell our own writes
	// apart from out-of-band edits.
	writeSeq uint64
}

// Open loads the document from path (or starts from defaults when the file is
// absent or unparsable) and runs the legacy-shape migration once.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	s := &Store{
		path: path,
		log:  log,
		doc:  loadDocument(path, log),
	}

	migrated := migrate(s.doc)
	normalized := s.doc.normalize()

	_, statErr := os.Stat(path)
	if migrated || normalized || statErr != nil {
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("persist document: %w", err)
		}
		if migrated {
			log.Info("document migration applied", slog.String("path", path))
		}
	}

	return s, nil
}

func loadDocument(path string, log *slog.Logger) *Document {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to read document, starting from defaults", slog.String("path", path), slog.Any("error", err))
		}
		return DefaultDocument()
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("document is not valid json, starting from defaults", slog.String("path", path), slog.Any("error", err))
		return DefaultDocument()
	}

	doc.normalize()
	return &doc
}

// migrate strips deprecated fields from the document. Running it twice on the
// same document is a no-op the second time.
func migrate(doc *Document) bool {
	changed := false

	for id, v := range doc.Users {
		rec := v.Record
		if rec == nil {
			continue
		}
		if rec.LegacyRegistered != nil || rec.LegacyDeposited != nil {
			rec.LegacyRegistered = nil
			rec.LegacyDeposited = nil
			doc.Users[id] = UserValue{Record: rec}
			changed = true
		}
	}

	if doc.LegacyStats != nil {
		doc.LegacyStats = nil
		changed = true
	}
	if doc.LegacyDailyStats != nil {
		doc.LegacyDailyStats = nil
		changed = true
	}
	if doc.LegacySettings != nil {
		if doc.LegacySettings.ReferralLink != "" && doc.ReferralSettings.ReferralLink == DefaultReferralLink {
			doc.ReferralSettings.ReferralLink = doc.LegacySettings.ReferralLink
		}
		doc.LegacySettings = nil
		changed = true
	}

	return changed
}

// save serializes the full document to disk via a temp file and atomic
// rename, creating the parent directory when missing. Callers must hold mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(s.doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}

	s.writeSeq++
	return nil
}

// Flush forces a write of the current in-memory document.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// View runs fn with read access to the document.
func (s *Store) View(fn func(doc *Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// Mutate runs fn against the document and persists the result. The mutation
// is kept in memory even when the save fails.
func (s *Store) Mutate(fn func(doc *Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.doc)

	if err := s.save(); err != nil {
		s.log.Error("failed to save document", slog.String("path", s.path), slog.Any("error", err))
		return err
	}

	return nil
}

// MaintenanceMode returns the current maintenance flag and message.
func (s *Store) MaintenanceMode() (bool, string) {
	var (
		enabled bool
		message string
	)
	s.View(func(doc *Document) {
		enabled = doc.MaintenanceMode
		message = doc.MaintenanceMessage
	})
	return enabled, message
}

// SetMaintenanceMode toggles maintenance mode.
func (s *Store) SetMaintenanceMode(enabled bool) error {
	return s.Mutate(func(doc *Document) {
		doc.MaintenanceMode = enabled
	})
}

// SetMaintenanceMessage replaces the maintenance notice.
func (s *Store) SetMaintenanceMessage(message string) error {
	return s.Mutate(func(doc *Document) {
		doc.MaintenanceMessage = message
	})
}

// WelcomeMessage returns the operator-set welcome text for lang, if any.
func (s *Store) WelcomeMessage(lang string) string {
	var msg string
	s.View(func(doc *Document) {
		msg = doc.WelcomeMessages[lang]
	})
	return msg
}

// SetWelcomeMessage stores the welcome text for lang.
func (s *Store) SetWelcomeMessage(lang, message string) error {
	return s.Mutate(func(doc *Document) {
		doc.WelcomeMessages[lang] = message
	})
}

// FinishMessage returns the operator-set post-verification text for lang.
func (s *Store) FinishMessage(lang string) string {
	var msg string
	s.View(func(doc *Document) {
		msg = doc.FinishMessages[lang]
	})
	return msg
}

// SetFinishMessage stores the post-verification text for lang.
func (s *Store) SetFinishMessage(lang, message string) error {
	return s.Mutate(func(doc *Document) {
		doc.FinishMessages[lang] = message
	})
}

// ReferralSettings re-reads the backing file so edits made outside the
// process are picked up, migrating the pre-referral_settings shape on the
// way. Falls back to the in-memory copy when the file cannot be read.
func (s *Store) ReferralSettings() ReferralSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := loadDocument(s.path, s.log)
	if migrate(fresh) {
		s.doc = fresh
		if err := s.save(); err != nil {
			s.log.Error("failed to persist settings migration", slog.Any("error", err))
		}
		return fresh.ReferralSettings
	}

	s.doc.ReferralSettings = fresh.ReferralSettings
	return fresh.ReferralSettings
}

// UpdateReferralSettings applies the non-nil fields and persists.
func (s *Store) UpdateReferralSettings(minDeposit *float64, link, promoCode *string) error {
	return s.Mutate(func(doc *Document) {
		if minDeposit != nil {
			doc.ReferralSettings.MinDeposit = *minDeposit
		}
		if link != nil {
			doc.ReferralSettings.ReferralLink = *link
		}
		if promoCode != nil {
			doc.ReferralSettings.PromoCode = *promoCode
		}
	})
}

// SignalSettings returns the persisted (operator-facing) signal limits.
func (s *Store) SignalSettings() SignalSettings {
	var settings SignalSettings
	s.View(func(doc *Document) {
		settings = doc.SignalSettings
	})
	return settings
}

// FileID returns a cached transport file handle for the named asset.
func (s *Store) FileID(name string) (string, bool) {
	var (
		id string
		ok bool
	)
	s.View(func(doc *Document) {
		id, ok = doc.FileCache[name]
	})
	return id, ok
}

// SetFileID caches the transport file handle for the named asset.
func (s *Store) SetFileID(name, id string) error {
	return s.Mutate(func(doc *Document) {
		doc.FileCache[name] = id
	})
}

// ClearFileID drops a cached handle so the asset is re-uploaded next time.
func (s *Store) ClearFileID(name string) error {
	return s.Mutate(func(doc *Document) {
		delete(doc.FileCache, name)
	})
}

// IncrementStarts bumps the /start counter.
func (s *Store) IncrementStarts() error {
	return s.Mutate(func(doc *Document) {
		doc.Statistics.TotalStarts++
	})
}

// IncrementSignals bumps both the total and today's signal counters.
func (s *Store) IncrementSignals(now time.Time) error {
	return s.Mutate(func(doc *Document) {
		doc.Statistics.SignalsGenerated++
		day := now.Format(dayKeyLayout)
		doc.Statistics.DailySignals[day]++
	})
}

// Statistics returns a copy of the counters.
func (s *Store) Statistics() Statistics {
	var stats Statistics
	s.View(func(doc *Document) {
		stats = doc.Statistics
		stats.DailySignals = make(map[string]int, len(doc.Statistics.DailySignals))
		for day, count := range doc.Statistics.DailySignals {
			stats.DailySignals[day] = count
		}
	})
	return stats
}

// SignalsToday returns today's signal counter.
func (s *Store) SignalsToday(now time.Time) int {
	var count int
	s.View(func(doc *Document) {
		count = doc.Statistics.DailySignals[now.Format(dayKeyLayout)]
	})
	return count
}

// AppendBroadcast queues a broadcast record.
func (s *Store) AppendBroadcast(b Broadcast) error {
	return s.Mutate(func(doc *Document) {
		doc.Broadcasts = append(doc.Broadcasts, b)
	})
}

// UpdateBroadcastStatus sets the status of the broadcast with the given id.
func (s *Store) UpdateBroadcastStatus(id, status string) error {
	return s.Mutate(func(doc *Document) {
		for i := range doc.Broadcasts {
			if doc.Broadcasts[i].ID == id {
				doc.Broadcasts[i].Status = status
				return
			}
		}
	})
}

// PendingBroadcasts returns the broadcasts still awaiting dispatch.
func (s *Store) PendingBroadcasts() []Broadcast {
	var pending []Broadcast
	s.View(func(doc *Document) {
		for _, b := range doc.Broadcasts {
			if b.Status == BroadcastPending {
				pending = append(pending, b)
			}
		}
	})
	return pending
}
