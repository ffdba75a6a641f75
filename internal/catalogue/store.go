package catalogue

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"remotefs/internal/logger"
)

// ErrStale is returned by Load when the saved catalogue is older than the
// store's maximum age.
var ErrStale = errors.New("catalogue is stale")

// Store keeps one compressed catalogue file per server identity.
type Store struct {
	Dir    string
	MaxAge time.Duration // zero disables the age check

	now func() time.Time
}

func NewStore(dir string, maxAge time.Duration) *Store {
	return &Store{Dir: dir, MaxAge: maxAge, now: time.Now}
}

var unsafeChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "@", "_at_", " ", "_")

// Path returns the file a server's catalogue is stored in.
func (s *Store) Path(server string) string {
	return filepath.Join(s.Dir, unsafeChars.Replace(server)+".cat.zst")
}

// Save writes c atomically.
func (s *Store) Save(c *Catalogue) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("creating catalogue dir: %w", err)
	}
	dest := s.Path(c.Server)
	tmp, err := os.CreateTemp(s.Dir, ".cat-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := gob.NewEncoder(enc).Encode(c); err != nil {
		enc.Close()
		tmp.Close()
		return fmt.Errorf("encoding catalogue: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing catalogue: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing catalogue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing catalogue: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("saving catalogue: %w", err)
	}
	logger.Log("catalogue", "saved %s (%d entries) to %s", c.Server, c.Count(), dest)
	return nil
}

// Load reads the catalogue of server. It returns an error wrapping
// os.ErrNotExist when none was saved and ErrStale when it is too old.
func (s *Store) Load(server string) (*Catalogue, error) {
	f, err := os.Open(s.Path(server))
	if err != nil {
		return nil, fmt.Errorf("opening catalogue: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var c Catalogue
	if err := gob.NewDecoder(dec).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalogue: %w", err)
	}
	if c.Tree == nil {
		return nil, fmt.Errorf("decoding catalogue: no tree")
	}
	if c.Server != server {
		return nil, fmt.Errorf("catalogue file belongs to %q, not %q", c.Server, server)
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	if s.MaxAge > 0 {
		if age := now().Sub(time.Unix(c.UpdatedAt, 0)); age > s.MaxAge {
			logger.Log("catalogue", "%s is %s old, max %s", server, age.Round(time.Second), s.MaxAge)
			return nil, fmt.Errorf("%s: %w", server, ErrStale)
		}
	}
	return &c, nil
}

// Remove deletes the saved catalogue of server, if any.
func (s *Store) Remove(server string) error {
	err := os.Remove(s.Path(server))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
