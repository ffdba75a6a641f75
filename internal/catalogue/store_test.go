package catalogue

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), 24*time.Hour)
	c := New("alice@data:22", "/data")
	Parser{Root: "/data"}.ParseListing(c, dataListing)

	if err := s.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load("alice@data:22")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.Root != "/data" || got.Count() != c.Count() {
		t.Errorf("loaded root %q with %d entries, want /data with %d", got.Root, got.Count(), c.Count())
	}
	link := mustLookup(t, got, "/data/sub/link")
	if link.Stat.Target != "/data/sub/other.txt" {
		t.Errorf("symlink target = %q", link.Stat.Target)
	}
	other := mustLookup(t, got, "/data/sub/other.txt")
	if got.UserName(other.Stat) != "bob" {
		t.Errorf("owner after load = %q", got.UserName(other.Stat))
	}

	// Name tables keep growing consistently after a reload.
	if i := got.internUser("alice"); i != 0 {
		t.Errorf("alice re-interned at %d", i)
	}
	if i := got.internUser("carol"); i != 2 {
		t.Errorf("carol interned at %d, want 2", i)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s := NewStore(t.TempDir(), time.Hour)
	if _, err := s.Load("nobody@nowhere:22"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load error = %v, want ErrNotExist", err)
	}
}

func TestStoreLoadStale(t *testing.T) {
	s := NewStore(t.TempDir(), time.Hour)
	c := New("srv", "/")
	c.Apply("/", []Row{fileRow("a", 1)})
	if err := s.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Load("srv"); !errors.Is(err, ErrStale) {
		t.Errorf("Load error = %v, want ErrStale", err)
	}

	s.MaxAge = 0
	if _, err := s.Load("srv"); err != nil {
		t.Errorf("Load without age limit: %v", err)
	}
}

func TestStoreRejectsForeignFile(t *testing.T) {
	s := NewStore(t.TempDir(), 0)
	c := New("web1", "/")
	if err := s.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Rename(s.Path("web1"), s.Path("web2")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("web2"); err == nil {
		t.Error("loaded a catalogue saved for another server")
	}
}

func TestStoreRejectsGarbage(t *testing.T) {
	s := NewStore(t.TempDir(), 0)
	if err := os.WriteFile(s.Path("srv"), []byte("not zstd"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("srv"); err == nil {
		t.Error("garbage file loaded")
	}
}

func TestStorePath(t *testing.T) {
	s := NewStore("/cache", 0)
	got := s.Path("deploy@10.0.0.1:2222")
	if filepath.Dir(got) != "/cache" {
		t.Errorf("Path escaped the store dir: %q", got)
	}
	base := filepath.Base(got)
	if strings.ContainsAny(base, "@:/") || !strings.HasSuffix(base, ".cat.zst") {
		t.Errorf("Path base = %q", base)
	}
}

func TestStoreRemove(t *testing.T) {
	s := NewStore(t.TempDir(), 0)
	if err := s.Save(New("srv", "/")); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("srv"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("srv"); err != nil {
		t.Errorf("Remove of a missing file: %v", err)
	}
	if _, err := os.Stat(s.Path("srv")); !errors.Is(err, os.ErrNotExist) {
		t.Error("file still present after Remove")
	}
}
