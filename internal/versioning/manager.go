package versioning

import (
	"time"

	"github.com/sumandas0/catalog/internal/diff"
	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/pkg/utils"
)

type UpdateType string

const (
	UpdateNone  UpdateType = "NONE"
	UpdateMinor UpdateType = "MINOR"
	UpdateMajor UpdateType = "MAJOR"
)

// HistoryAction tells the store what to do with the version history.
type HistoryAction string

const (
	// HistoryAppend archives the previous state and moves to a new version.
	HistoryAppend HistoryAction = "APPEND"
	// HistoryAmend rewrites the latest entry in place under the same version.
	HistoryAmend HistoryAction = "AMEND"
	// HistoryNone means nothing changed and nothing is written.
	HistoryNone HistoryAction = "NONE"
)

// Session identifies who made the previous change and when, so a follow-up
// metadata edit by the same principal can be folded into it.
type Session struct {
	PreviousUpdatedBy string
	PreviousUpdatedAt time.Time
	Principal         string
	Now               time.Time
}

// Manager classifies change descriptions and computes the next entity version.
type Manager struct {
	detector      *diff.Detector
	sessionWindow time.Duration
}

func NewManager(detector *diff.Detector, sessionWindow time.Duration) *Manager {
	return &Manager{
		detector:      detector,
		sessionWindow: sessionWindow,
	}
}

// Classify picks the update type for desc. Structural changes force a major
// bump, content changes a minor one. Metadata-only edits made by the same
// principal inside the session window do not bump the version.
func (m *Manager) Classify(desc *models.ChangeDescription, session Session) UpdateType {
	if desc.IsEmpty() {
		return UpdateNone
	}

	update := UpdateNone
	for _, field := range m.detector.Changed(desc) {
		switch field.Category {
		case diff.CategoryStructural:
			return UpdateMajor
		case diff.CategoryContent:
			update = UpdateMinor
		}
	}
	if update == UpdateMinor {
		return UpdateMinor
	}

	if m.inSession(session) {
		return UpdateNone
	}
	return UpdateMinor
}

func (m *Manager) inSession(s Session) bool {
	if m.sessionWindow <= 0 || s.Principal == "" || s.Principal != s.PreviousUpdatedBy {
		return false
	}
	elapsed := s.Now.Sub(s.PreviousUpdatedAt)
	return elapsed >= 0 && elapsed <= m.sessionWindow
}

// NextVersion returns the version the entity should carry after desc is applied
// and what to do with the history. The result never goes backwards.
func (m *Manager) NextVersion(current models.EntityVersion, desc *models.ChangeDescription, update UpdateType) (models.EntityVersion, HistoryAction, error) {
	if current.IsZero() {
		return current, HistoryNone, utils.NewAppError(utils.CodeInvalidVersion, "current version is not set", utils.ErrInvalidVersion)
	}

	if desc.IsEmpty() {
		return current, HistoryNone, nil
	}

	switch update {
	case UpdateNone:
		return current, HistoryAmend, nil
	case UpdateMinor:
		return current.NextMinor(), HistoryAppend, nil
	case UpdateMajor:
		return current.NextMajor(), HistoryAppend, nil
	default:
		return current, HistoryNone, utils.NewAppError(utils.CodeInvalidVersion, "unknown update type", utils.ErrInvalidVersion).
			WithDetail("update_type", string(update))
	}
}

// ParseCurrent parses a stored version string, mapping failures to an
// invalid-version error.
func ParseCurrent(raw string) (models.EntityVersion, error) {
	v, err := models.ParseVersion(raw)
	if err != nil {
		return models.EntityVersion{}, utils.NewAppError(utils.CodeInvalidVersion, "stored version is malformed", err).
			WithDetail("version", raw)
	}
	return v, nil
}
