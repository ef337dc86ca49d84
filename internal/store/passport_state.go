package store

import (
	"slices"
	"sync"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Passport error sources accepted by setPassportDataErrors.
var passportSources = map[string]bool{
	"data": true, "front_side": true, "reverse_side": true, "selfie": true,
	"file": true, "files": true, "translation_file": true, "translation_files": true,
	"unspecified": true,
}

// ValidPassportSource reports whether source names a known error source.
func ValidPassportSource(source string) bool {
	return passportSources[source]
}

// PassportState holds the passport errors the bot reported per user. A new
// report replaces the previous one, as on the platform.
type PassportState struct {
	mu     sync.Mutex
	errors map[int64][]botapi.PassportElementError
}

// NewPassportState creates an empty passport store.
func NewPassportState() *PassportState {
	return &PassportState{errors: make(map[int64][]botapi.PassportElementError)}
}

// SetErrors replaces the reported errors for userID. An empty list clears them.
func (s *PassportState) SetErrors(userID int64, errs []botapi.PassportElementError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(errs) == 0 {
		delete(s.errors, userID)
		return
	}
	s.errors[userID] = slices.Clone(errs)
}

// Errors returns the errors last reported for userID.
func (s *PassportState) Errors(userID int64) []botapi.PassportElementError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.errors[userID])
}

// Reset drops every report.
func (s *PassportState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = make(map[int64][]botapi.PassportElementError)
}
