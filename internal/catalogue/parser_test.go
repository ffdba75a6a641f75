package catalogue

import (
	"strings"
	"testing"
	"time"
)

const dataListing = `/data:
total 12
drwxr-xr-x 3 alice staff 4096 2023-01-01 12:00 .
drwxr-xr-x 5 root  root  4096 2023-01-01 12:00 ..
-rw-r--r-- 1 alice staff 1024 2023-01-01 12:00 foo.txt
drwxr-xr-x 2 alice staff 4096 2023-01-01 12:00 sub

/data/sub:
total 4
drwxr-xr-x 2 alice staff 4096 2023-01-01 12:00 .
drwxr-xr-x 3 alice staff 4096 2023-01-01 12:00 ..
-rw-r----- 1 bob   ops     10 2023-01-01 12:00 other.txt
lrwxrwxrwx 1 alice staff    9 2023-01-01 12:00 link -> other.txt
lrwxrwxrwx 1 alice staff   10 2023-01-01 12:00 up -> ../foo.txt
lrwxrwxrwx 1 alice staff    8 2023-01-01 12:00 abs -> /etc//hosts
`

func mustLookup(t *testing.T, c *Catalogue, p string) *Entry {
	t.Helper()
	e, ok := c.Lookup(p)
	if !ok {
		t.Fatalf("%s not in catalogue", p)
	}
	return e
}

func TestParseListingRoundTrip(t *testing.T) {
	c := New("alice@data:22", "/data")
	rep := Parser{Root: "/data"}.ParseListing(c, dataListing)

	if rep.Sections != 2 || rep.Entries != 6 || len(rep.Skipped) != 0 {
		t.Fatalf("report = %+v", rep)
	}

	foo := mustLookup(t, c, "/data/foo.txt")
	wantTime := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC).Unix()
	if foo.Stat.Kind != KindFile || foo.Stat.Mode != 0o644 || foo.Stat.Size != 1024 || foo.Stat.ModTime != wantTime {
		t.Errorf("foo.txt stat = %+v", foo.Stat)
	}
	if c.UserName(foo.Stat) != "alice" || c.GroupName(foo.Stat) != "staff" {
		t.Errorf("foo.txt owner = %s:%s", c.UserName(foo.Stat), c.GroupName(foo.Stat))
	}

	tests := []struct{ name, target string }{
		{"/data/sub/link", "/data/sub/other.txt"},
		{"/data/sub/up", "/data/foo.txt"},
		{"/data/sub/abs", "/etc/hosts"},
	}
	for _, tt := range tests {
		e := mustLookup(t, c, tt.name)
		if e.Stat.Kind != KindSymlink || e.Stat.Target != tt.target {
			t.Errorf("%s: kind %s target %q, want symlink to %q", tt.name, e.Stat.Kind, e.Stat.Target, tt.target)
		}
		if _, ok := c.Lookup(e.Stat.Target); tt.target != "/etc/hosts" && !ok {
			t.Errorf("%s: target %s not in catalogue", tt.name, e.Stat.Target)
		}
	}

	sub := mustLookup(t, c, "/data/sub")
	if !sub.IsDir() || !sub.Indexed || len(sub.Children) != 4 {
		t.Errorf("sub = %+v", sub)
	}
	other := mustLookup(t, c, "/data/sub/other.txt")
	if other.Stat.Mode != 0o640 || c.UserName(other.Stat) != "bob" || c.GroupName(other.Stat) != "ops" {
		t.Errorf("other.txt = %+v", other.Stat)
	}

	if got := strings.Join(c.Users, ","); got != "alice,bob" {
		t.Errorf("Users = %s, want alice,bob", got)
	}
}

func TestParseDirectoryReconciles(t *testing.T) {
	first := `total 8
-rw-r--r-- 1 alice staff 10 2023-01-01 12:00 keep.txt
-rw-r--r-- 1 alice staff 20 2023-01-01 12:00 gone.txt
drwxr-xr-x 2 alice staff 4096 2023-01-01 12:00 nested
`
	second := `total 8
-rw-r--r-- 1 alice staff 10 2023-01-01 12:00 keep.txt
drwxr-xr-x 2 alice staff 4096 2023-01-02 08:30 nested
`
	c := New("srv", "/")
	p := Parser{}
	p.ParseDirectory(c, "/a", first)
	p.ParseDirectory(c, "/a/nested", "-rw-r--r-- 1 alice staff 1 2023-01-01 12:00 deep.txt\n")
	p.ParseDirectory(c, "/b", "-rw-r--r-- 1 alice staff 1 2023-01-01 12:00 sibling.txt\n")

	p.ParseDirectory(c, "/a", second)

	if _, ok := c.Lookup("/a/gone.txt"); ok {
		t.Error("gone.txt survived reconciliation")
	}
	mustLookup(t, c, "/a/keep.txt")
	mustLookup(t, c, "/a/nested/deep.txt")
	mustLookup(t, c, "/b/sibling.txt")

	nested := mustLookup(t, c, "/a/nested")
	if want := time.Date(2023, 1, 2, 8, 30, 0, 0, time.UTC).Unix(); nested.Stat.ModTime != want {
		t.Errorf("nested stat not refreshed: %+v", nested.Stat)
	}
	if !nested.Indexed {
		t.Error("nested lost its indexed state")
	}
}

func TestParseDirectoryEmptyFolder(t *testing.T) {
	c := New("srv", "/")
	rep := Parser{}.ParseDirectory(c, "/empty", "total 0\n")
	e := mustLookup(t, c, "/empty")
	if !e.Indexed || len(e.Children) != 0 || rep.Sections != 1 {
		t.Errorf("empty folder = %+v, report %+v", e, rep)
	}
}

func TestParseSizes(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"1024", 1024, true},
		{"2K", 2048, true},
		{"1M", 1048576, true},
		{"1.5K", 1536, true},
		{"3G", 3 << 30, true},
		{"1T", 1 << 40, true},
		{"4k", 4096, true},
		{"12Q", 0, false},
		{"-5", 0, false},
		{"4,", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseSize(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseSize(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseHumanSizesInListing(t *testing.T) {
	c := New("srv", "/")
	Parser{}.ParseDirectory(c, "/h", `-rw-r--r-- 1 a b 2K 2023-01-01 12:00 two
-rw-r--r-- 1 a b 1M 2023-01-01 12:00 one
`)
	if got := mustLookup(t, c, "/h/two").Stat.Size; got != 2048 {
		t.Errorf("2K = %d", got)
	}
	if got := mustLookup(t, c, "/h/one").Stat.Size; got != 1048576 {
		t.Errorf("1M = %d", got)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
	}{
		{"rw-r--r--", 0o644},
		{"rwxr-xr-x", 0o755},
		{"---------", 0},
		{"rwxrwxrwx", 0o777},
		{"rwsr-xr-x", 0o755},
		{"rwSr--r--", 0o644},
		{"rwxr-sr-x", 0o755},
		{"rwxrwxrwt", 0o777},
		{"rwxrwxrwT", 0o776},
	}
	for _, tt := range tests {
		got, ok := parseMode(tt.in)
		if !ok || got != tt.want {
			t.Errorf("parseMode(%q) = %o, %v; want %o", tt.in, got, ok, tt.want)
		}
		if !strings.ContainsAny(tt.in, "sStT") && ModeString(tt.want) != tt.in {
			t.Errorf("ModeString(%o) = %q, want %q", tt.want, ModeString(tt.want), tt.in)
		}
	}
	if len(permTable) != 512 {
		t.Errorf("permTable has %d entries", len(permTable))
	}
	if _, ok := parseMode("rwxrwxrwq"); ok {
		t.Error("invalid permission string accepted")
	}
}

func TestParseTimestamps(t *testing.T) {
	c := New("srv", "/")
	Parser{}.ParseDirectory(c, "/t", `-rw-r--r-- 1 a b 5 2023-01-01 12:00:00.000000000 +0100 full
-rw-r--r-- 1 a b 5 2023-01-01 12:00 long
-rw-r--r-- 1 a b 5 2023-01-01 12:00 name with  spaces
`)
	if got, want := mustLookup(t, c, "/t/full").Stat.ModTime, time.Date(2023, 1, 1, 11, 0, 0, 0, time.UTC).Unix(); got != want {
		t.Errorf("full-iso time = %d, want %d", got, want)
	}
	mustLookup(t, c, "/t/name with  spaces")

	berlin := time.FixedZone("CET", 3600)
	c2 := New("srv", "/")
	Parser{Location: berlin}.ParseDirectory(c2, "/t", "-rw-r--r-- 1 a b 5 2023-01-01 12:00 long\n")
	if got, want := mustLookup(t, c2, "/t/long").Stat.ModTime, time.Date(2023, 1, 1, 12, 0, 0, 0, berlin).Unix(); got != want {
		t.Errorf("located time = %d, want %d", got, want)
	}
}

func TestParseSkipsBadLines(t *testing.T) {
	c := New("srv", "/")
	rep := Parser{}.ParseDirectory(c, "/x", `total 4
-rw-r--r-- 1 a b 5 2023-01-01 12:00 good
prw-r--r-- 1 a b 0 2023-01-01 12:00 fifo
-rwxrwxrwq 1 a b 5 2023-01-01 12:00 badperm
-rw-r--r-- 1 a b 5 yesterday noon baddate
-rw-r--r-- 1 a b lots 2023-01-01 12:00 badsize
crw-rw---- 1 root tty 4, 0 2023-01-01 12:00 tty0
brw-rw---- 1 root disk 8, 0 2023-01-01 12:00 sda
not a listing line
`)
	x := mustLookup(t, c, "/x")
	if len(x.Children) != 1 {
		t.Errorf("children = %v, want only good", x.Sorted())
	}
	if len(rep.Skipped) != 5 {
		for _, s := range rep.Skipped {
			t.Log(s)
		}
		t.Fatalf("skipped %d lines, want 5", len(rep.Skipped))
	}
	if rep.Skipped[0].LineNo != 3 || !strings.Contains(rep.Skipped[0].Reason, "unknown type") {
		t.Errorf("first skip = %v", rep.Skipped[0])
	}
}

func TestParseListingExcludes(t *testing.T) {
	listing := `.:
total 4
drwxr-xr-x 4 a b 4096 2023-01-01 12:00 node_modules
drwxr-xr-x 2 a b 4096 2023-01-01 12:00 cache
drwxr-xr-x 2 a b 4096 2023-01-01 12:00 src

./node_modules:
drwxr-xr-x 2 a b 4096 2023-01-01 12:00 pkg

./node_modules/pkg:
-rw-r--r-- 1 a b 5 2023-01-01 12:00 index.js

./cache:
-rw-r--r-- 1 a b 5 2023-01-01 12:00 blob

./src:
-rw-r--r-- 1 a b 5 2023-01-01 12:00 main.go
`
	c := New("srv", "/app")
	rep := Parser{Root: "/app", Exclude: []string{"node_modules", "/app/cache"}}.ParseListing(c, listing)

	if rep.Sections != 2 {
		t.Errorf("Sections = %d, want 2", rep.Sections)
	}
	for _, p := range []string{"/app/node_modules", "/app/cache"} {
		e := mustLookup(t, c, p)
		if e.Indexed || len(e.Children) != 0 {
			t.Errorf("%s was expanded: %+v", p, e)
		}
	}
	if _, ok := c.Lookup("/app/node_modules/pkg"); ok {
		t.Error("nested folder of an excluded folder was added")
	}
	mustLookup(t, c, "/app/src/main.go")
}

func TestParseListingWithoutHeader(t *testing.T) {
	c := New("srv", "/home/alice")
	rep := Parser{}.ParseListing(c, "-rw-r--r-- 1 alice staff 3 2023-01-01 12:00 notes\n")
	if rep.Sections != 1 {
		t.Fatalf("Sections = %d", rep.Sections)
	}
	mustLookup(t, c, "/home/alice/notes")
}
