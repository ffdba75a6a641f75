// Package catalogue keeps a local model of a remote directory tree, built
// from long-format listings and persisted between sessions.
package catalogue

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// Kind is the type of a catalogue entry.
type Kind uint8

const (
	KindFile Kind = iota
	KindFolder
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Stat is the metadata of one entry as reported by the listing.
type Stat struct {
	Kind    Kind
	Mode    uint16 // permission bits, 0-0777
	User    int    // index into Catalogue.Users
	Group   int    // index into Catalogue.Groups
	Size    int64
	ModTime int64  // unix seconds
	Target  string // absolute, symlinks only
}

// Entry is a node of the tree. Folders that were never listed have
// Indexed false and no children.
type Entry struct {
	Name     string
	Stat     Stat
	Indexed  bool
	Children map[string]*Entry
}

func (e *Entry) IsDir() bool { return e.Stat.Kind == KindFolder }

// Sorted returns the children ordered with folders first, then by name.
func (e *Entry) Sorted() []*Entry {
	out := make([]*Entry, 0, len(e.Children))
	for _, c := range e.Children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir() != out[j].IsDir() {
			return out[i].IsDir()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Catalogue is the cached tree of one server below Root.
type Catalogue struct {
	Server    string
	Root      string
	CreatedAt int64
	UpdatedAt int64
	Users     []string
	Groups    []string
	Tree      *Entry

	userIdx  map[string]int
	groupIdx map[string]int
}

// New returns an empty catalogue whose root folder is not indexed yet.
func New(server, root string) *Catalogue {
	root = cleanPath(root)
	now := time.Now().Unix()
	return &Catalogue{
		Server:    server,
		Root:      root,
		CreatedAt: now,
		UpdatedAt: now,
		Tree:      &Entry{Name: root, Stat: Stat{Kind: KindFolder, Mode: 0o755}},
	}
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// segments splits p into names below the catalogue root. ok is false when p
// lies outside the root.
func (c *Catalogue) segments(p string) ([]string, bool) {
	p = cleanPath(p)
	rel := p
	if c.Root != "/" {
		if p == c.Root {
			return nil, true
		}
		if !strings.HasPrefix(p, c.Root+"/") {
			return nil, false
		}
		rel = p[len(c.Root):]
	}
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return nil, true
	}
	return strings.Split(rel, "/"), true
}

// Lookup returns the entry at the absolute path p.
func (c *Catalogue) Lookup(p string) (*Entry, bool) {
	segs, ok := c.segments(p)
	if !ok {
		return nil, false
	}
	e := c.Tree
	for _, s := range segs {
		next, ok := e.Children[s]
		if !ok {
			return nil, false
		}
		e = next
	}
	return e, true
}

// ensureDir returns the folder at p, creating unindexed folders on the way.
// It returns nil when p is outside the root or crosses a non-folder.
func (c *Catalogue) ensureDir(p string) *Entry {
	segs, ok := c.segments(p)
	if !ok {
		return nil
	}
	e := c.Tree
	for _, s := range segs {
		next, ok := e.Children[s]
		if !ok {
			if e.Children == nil {
				e.Children = make(map[string]*Entry)
			}
			next = &Entry{Name: s, Stat: Stat{Kind: KindFolder}}
			e.Children[s] = next
		}
		if !next.IsDir() {
			return nil
		}
		e = next
	}
	return e
}

// Row is one parsed listing line ready to be applied to a folder.
type Row struct {
	Name string
	Stat Stat
}

// Apply replaces the children of folder dir with rows. Children missing from
// rows are dropped; folders that are still folders keep their subtree. The
// folder is marked indexed. It reports false when dir cannot be a folder of
// this catalogue.
func (c *Catalogue) Apply(dir string, rows []Row) bool {
	d := c.ensureDir(dir)
	if d == nil {
		return false
	}
	next := make(map[string]*Entry, len(rows))
	for _, r := range rows {
		if old, ok := d.Children[r.Name]; ok && old.IsDir() && r.Stat.Kind == KindFolder {
			old.Stat = r.Stat
			next[r.Name] = old
			continue
		}
		next[r.Name] = &Entry{Name: r.Name, Stat: r.Stat}
	}
	d.Children = next
	d.Indexed = true
	c.UpdatedAt = time.Now().Unix()
	return true
}

// Remove deletes the entry at p and its subtree.
func (c *Catalogue) Remove(p string) bool {
	segs, ok := c.segments(p)
	if !ok || len(segs) == 0 {
		return false
	}
	parent, ok := c.Lookup(path.Join(c.Root, strings.Join(segs[:len(segs)-1], "/")))
	if !ok {
		return false
	}
	name := segs[len(segs)-1]
	if _, ok := parent.Children[name]; !ok {
		return false
	}
	delete(parent.Children, name)
	c.UpdatedAt = time.Now().Unix()
	return true
}

// Rename moves the entry at from to to. The destination folder must already
// be in the catalogue.
func (c *Catalogue) Rename(from, to string) bool {
	e, ok := c.Lookup(from)
	if !ok || e == c.Tree {
		return false
	}
	dst, ok := c.Lookup(path.Dir(cleanPath(to)))
	if !ok || !dst.IsDir() {
		return false
	}
	if !c.Remove(from) {
		return false
	}
	e.Name = path.Base(cleanPath(to))
	if dst.Children == nil {
		dst.Children = make(map[string]*Entry)
	}
	dst.Children[e.Name] = e
	return true
}

// Walk visits every entry depth-first in Sorted order, starting with the
// root. Returning a non-nil error stops the walk.
func (c *Catalogue) Walk(fn func(p string, e *Entry) error) error {
	return walk(c.Root, c.Tree, fn)
}

func walk(p string, e *Entry, fn func(string, *Entry) error) error {
	if err := fn(p, e); err != nil {
		return err
	}
	for _, child := range e.Sorted() {
		if err := walk(path.Join(p, child.Name), child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of entries below the root.
func (c *Catalogue) Count() int {
	n := -1
	_ = c.Walk(func(string, *Entry) error {
		n++
		return nil
	})
	return n
}

func (c *Catalogue) internUser(name string) int {
	if c.userIdx == nil {
		c.userIdx = index(c.Users)
	}
	return intern(&c.Users, c.userIdx, name)
}

func (c *Catalogue) internGroup(name string) int {
	if c.groupIdx == nil {
		c.groupIdx = index(c.Groups)
	}
	return intern(&c.Groups, c.groupIdx, name)
}

func index(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}

func intern(names *[]string, idx map[string]int, name string) int {
	if i, ok := idx[name]; ok {
		return i
	}
	*names = append(*names, name)
	idx[name] = len(*names) - 1
	return len(*names) - 1
}

// UserName returns the owner name of s.
func (c *Catalogue) UserName(s Stat) string { return lookupName(c.Users, s.User) }

// GroupName returns the group name of s.
func (c *Catalogue) GroupName(s Stat) string { return lookupName(c.Groups, s.Group) }

func lookupName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return "?"
	}
	return names[i]
}

// FormatSize returns a human-readable file size.
func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1fG", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1fM", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1fK", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
