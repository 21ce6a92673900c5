package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/phorp/calcrib/internal/compression"
	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/logging"
	"github.com/phorp/calcrib/internal/utils"
)

const archiveStampLayout = "20060102T150405"

// Store loads and saves whole documents as files. Saves never leave a
// partially written document behind: text goes to a temporary file in the
// same directory which is then renamed over the target.
type Store struct {
	cfg        config.DocumentConfig
	compressor compression.Compressor
	logger     *logging.Logger
	now        func() time.Time
}

// NewStore creates a file store for the configured document directory
func NewStore(cfg config.DocumentConfig, logger *logging.Logger) (*Store, error) {
	algo, err := compression.ParseAlgorithm(cfg.Archive.Compression)
	if err != nil {
		return nil, err
	}
	c, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Store{
		cfg:        cfg,
		compressor: c,
		logger:     logger.With("component", "document"),
		now:        time.Now,
	}, nil
}

// SanitizeName keeps letters, digits, '.' and '_' of an operator-entered
// document name.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Path returns the file path of a named document
func (s *Store) Path(name string) string {
	return s.cfg.DocumentPath(SanitizeName(name))
}

// ReadFile reads and parses the document at path
func ReadFile(path string) (*Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}

// Load reads and parses a named document
func (s *Store) Load(name string) (*Section, error) {
	path := s.Path(name)
	doc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document loaded", "path", path)
	return doc, nil
}

// Save writes a named document and returns its path. When archiving is
// enabled the document being replaced is snapshotted first.
func (s *Store) Save(name string, doc *Section) (string, error) {
	path := s.Path(name)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	if s.cfg.Archive.Enabled {
		if err := s.archive(path); err != nil {
			return "", err
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := Encode(tmp, doc); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}

	s.logger.Info("document saved", "path", path)
	return path, nil
}

func (s *Store) archiveSuffix() string {
	if s.compressor.Algorithm() == compression.None {
		return ""
	}
	return utils.ArchiveSuffix
}

// archive snapshots the existing file at path, if any
func (s *Store) archive(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("archive %s: %w", path, err)
	}

	packed, err := s.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}

	if err := os.MkdirAll(s.cfg.Archive.Dir, 0755); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), s.cfg.Suffix)
	name := fmt.Sprintf("%s-%s%s%s", base, s.now().Format(archiveStampLayout), s.cfg.Suffix, s.archiveSuffix())
	target := filepath.Join(s.cfg.Archive.Dir, name)
	if err := os.WriteFile(target, packed, 0644); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}

	s.logger.Debug("document archived", "path", path, "archive", target,
		"bytes", len(data), "stored", len(packed))
	return nil
}

// Archives lists the snapshots of a named document, oldest first
func (s *Store) Archives(name string) ([]string, error) {
	base := strings.TrimSuffix(filepath.Base(s.Path(name)), s.cfg.Suffix)
	pattern := filepath.Join(s.cfg.Archive.Dir, base+"-*"+s.cfg.Suffix+s.archiveSuffix())
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// LoadArchive reads a snapshot produced by Save
func (s *Store) LoadArchive(path string) (*Section, error) {
	packed, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data, err := s.compressor.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("load archive %s: %w", path, err)
	}

	return Unmarshal(data)
}
