package catalogue

import (
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"remotefs/internal/logger"
	"remotefs/internal/metrics"
)

// ParseError describes a listing line that was skipped.
type ParseError struct {
	LineNo int
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.LineNo, e.Reason, e.Line)
}

// Report summarises one parse pass.
type Report struct {
	Sections int
	Entries  int
	Skipped  []*ParseError
}

// Parser turns "ls -la" or "ls -laR" output into catalogue rows.
type Parser struct {
	// Root is the folder the listing was taken of. Relative section headers
	// and a listing without headers are resolved against it.
	Root string
	// Exclude holds folder base names or absolute paths whose sections are
	// skipped. Excluded folders stay in the tree unindexed.
	Exclude []string
	// Location for timestamps that carry no zone. Defaults to UTC.
	Location *time.Location
}

// permissions, links, owner, group, size, date, time, optional zone, name
var entryLine = regexp.MustCompile(`^(\S)(\S{9})\S*\s+\d+\s+(\S+)\s+(\S+)\s+(\S+)\s+(\S+)\s+(\S+?)(?:\s+([+-]\d{4}))?\s(.*)$`)

var humanSize = regexp.MustCompile(`^(\d+(?:\.\d+)?)([KMGTkmgt])$`)

// ParseListing parses recursive output and applies every section to c.
func (p Parser) ParseListing(c *Catalogue, text string) Report {
	root := p.Root
	if root == "" {
		root = c.Root
	}
	return p.parse(c, cleanPath(root), text, true)
}

// ParseDirectory parses the listing of the single folder dir into c.
func (p Parser) ParseDirectory(c *Catalogue, dir, text string) Report {
	return p.parse(c, cleanPath(dir), text, false)
}

type section struct {
	dir      string
	rows     []Row
	seen     bool
	excluded bool
}

func (p Parser) parse(c *Catalogue, root, text string, recursive bool) Report {
	var rep Report
	newSection := func(dir string, seen bool) *section {
		return &section{dir: dir, seen: seen, excluded: recursive && p.excluded(root, dir)}
	}
	cur := newSection(root, false)

	flush := func() {
		if !cur.seen {
			return
		}
		if cur.excluded {
			logger.Log("catalogue", "skipping excluded folder %s", cur.dir)
			return
		}
		if c.Apply(cur.dir, cur.rows) {
			rep.Sections++
			rep.Entries += len(cur.rows)
		} else {
			logger.Log("catalogue", "section %s is outside %s", cur.dir, c.Root)
		}
	}

	skip := func(no int, line, reason string) {
		pe := &ParseError{LineNo: no, Line: line, Reason: reason}
		logger.Log("catalogue", "skipped %v", pe)
		rep.Skipped = append(rep.Skipped, pe)
	}

	for i, line := range strings.Split(text, "\n") {
		no := i + 1
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "total ") {
			cur.seen = true
			continue
		}

		m := entryLine.FindStringSubmatch(line)
		if m == nil {
			if recursive && strings.HasSuffix(line, ":") {
				flush()
				cur = newSection(resolveDir(root, strings.TrimSuffix(line, ":")), true)
				continue
			}
			if cur.excluded {
				continue
			}
			skip(no, line, "unrecognised line")
			continue
		}
		cur.seen = true
		if cur.excluded {
			continue
		}

		row, reason, ok := p.parseEntry(c, cur.dir, m)
		if !ok {
			if reason != "" {
				skip(no, line, reason)
			}
			continue
		}
		cur.rows = append(cur.rows, row)
	}
	flush()

	metrics.RecordSkippedLines(len(rep.Skipped))
	return rep
}

// parseEntry converts one matched entry line. A false ok with an empty
// reason means the line is ignored on purpose.
func (p Parser) parseEntry(c *Catalogue, dir string, m []string) (Row, string, bool) {
	typ, perms, owner, group, size, date, clock, zone, name :=
		m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8], m[9]

	var st Stat
	switch typ {
	case "-":
		st.Kind = KindFile
	case "d":
		st.Kind = KindFolder
	case "l":
		st.Kind = KindSymlink
	case "b", "c":
		return Row{}, "", false
	default:
		return Row{}, fmt.Sprintf("unknown type %q", typ), false
	}

	mode, ok := parseMode(perms)
	if !ok {
		return Row{}, fmt.Sprintf("bad permissions %q", perms), false
	}
	st.Mode = mode

	n, ok := parseSize(size)
	if !ok {
		return Row{}, fmt.Sprintf("bad size %q", size), false
	}
	st.Size = n

	mod, err := p.parseTime(date, clock, zone)
	if err != nil {
		return Row{}, fmt.Sprintf("bad date %q", date+" "+clock), false
	}
	st.ModTime = mod.Unix()

	if st.Kind == KindSymlink {
		if i := strings.Index(name, " -> "); i >= 0 {
			target := name[i+len(" -> "):]
			name = name[:i]
			if path.IsAbs(target) {
				st.Target = path.Clean(target)
			} else {
				st.Target = path.Join(dir, target)
			}
		}
	}
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return Row{}, "", false
	}

	st.User = c.internUser(owner)
	st.Group = c.internGroup(group)
	return Row{Name: name, Stat: st}, "", true
}

func parseSize(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
		return n, true
	}
	m := humanSize.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	exp := strings.Index("KMGT", strings.ToUpper(m[2])) + 1
	return int64(math.Round(f * math.Pow(1024, float64(exp)))), true
}

func (p Parser) parseTime(date, clock, zone string) (time.Time, error) {
	if zone != "" {
		return time.Parse("2006-01-02 15:04:05.999999999 -0700", date+" "+clock+" "+zone)
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	layout := "2006-01-02 15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "2006-01-02 15:04:05.999999999"
	}
	return time.ParseInLocation(layout, date+" "+clock, loc)
}

// resolveDir turns a section header into an absolute folder path.
func resolveDir(root, header string) string {
	if path.IsAbs(header) {
		return path.Clean(header)
	}
	return path.Join(root, header)
}

// excluded reports whether dir, or a folder between root and dir, is
// excluded.
func (p Parser) excluded(root, dir string) bool {
	if len(p.Exclude) == 0 {
		return false
	}
	for d := dir; ; d = path.Dir(d) {
		for _, x := range p.Exclude {
			if strings.HasPrefix(x, "/") {
				if path.Clean(x) == d {
					return true
				}
			} else if path.Base(d) == x {
				return true
			}
		}
		if d == root || d == "/" || !strings.HasPrefix(d, root) {
			return false
		}
	}
}
