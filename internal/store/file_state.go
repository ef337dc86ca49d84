package store

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// DefaultFileCapacity bounds the file registry when no capacity is configured.
const DefaultFileCapacity = 1000

// StoredFile is a file the simulator knows about.
type StoredFile struct {
	botapi.File
	Kind     string
	FileName string
	MimeType string
	Width    int
	Height   int
	Sizes    []botapi.PhotoSize // photos only, ascending
}

// FileState is a bounded registry of sent and uploaded files. The least
// recently resolved files are evicted once capacity is reached.
type FileState struct {
	cache *lru.Cache[string, StoredFile]
	seq   atomic.Int64
}

// NewFileState creates a registry holding at most capacity files.
func NewFileState(capacity int) (*FileState, error) {
	if capacity <= 0 {
		capacity = DefaultFileCapacity
	}
	cache, err := lru.New[string, StoredFile](capacity)
	if err != nil {
		return nil, fmt.Errorf("file registry: %w", err)
	}
	return &FileState{cache: cache}, nil
}

// Register stores a new file of kind (photo, document, ...) and returns it with
// fresh ids and a file path.
func (s *FileState) Register(kind, fileName, mimeType string, size int64) StoredFile {
	n := s.seq.Add(1)
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	ext := ""
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 {
		ext = fileName[i:]
	}
	f := StoredFile{
		File: botapi.File{
			FileID:       "BQAC" + id,
			FileUniqueID: "AgAD" + id[:12],
			FileSize:     size,
			FilePath:     fmt.Sprintf("%ss/file_%d%s", kind, n, ext),
		},
		Kind:     kind,
		FileName: fileName,
		MimeType: mimeType,
	}
	s.cache.Add(f.FileID, f)
	return f
}

// Update replaces a registered file, e.g. once its dimensions are known.
func (s *FileState) Update(f StoredFile) {
	s.cache.Add(f.FileID, f)
}

// Get resolves a file id.
func (s *FileState) Get(fileID string) (StoredFile, bool) {
	return s.cache.Get(fileID)
}

// Len returns the number of registered files.
func (s *FileState) Len() int {
	return s.cache.Len()
}

// Reset drops every file.
func (s *FileState) Reset() {
	s.cache.Purge()
	s.seq.Store(0)
}
