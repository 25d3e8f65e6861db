package query

import (
	"io/fs"
	"os"
	"slices"
	"sync"
	"time"

	"codenav/internal/core/explain"
)

// Cache replays the last complete project listing. A listing is reused only
// when the command is identical and the GTAGS mtime has not moved since the
// previous check.
type Cache struct {
	mu       sync.Mutex
	lastCmd  string
	mtime    time.Time
	hasMTime bool
	content  []string
	complete bool

	Stat    func(string) (fs.FileInfo, error)
	Explain explain.Explain
}

func NewCache() *Cache {
	return &Cache{Stat: os.Stat}
}

// Modified compares gtagsFile's mtime with the previous check and records
// the new value. An unreadable file counts as modified.
func (c *Cache) Modified(gtagsFile string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modifiedLocked(gtagsFile)
}

func (c *Cache) modifiedLocked(gtagsFile string) bool {
	stat := c.Stat
	if stat == nil {
		stat = os.Stat
	}
	st, err := stat(gtagsFile)
	if err != nil {
		c.hasMTime = false
		return true
	}
	mt := st.ModTime()
	if c.hasMTime && mt.Equal(c.mtime) {
		return false
	}
	c.mtime = mt
	c.hasMTime = true
	return true
}

// Lookup returns the remembered listing for cmd, if still valid. On a miss
// cmd becomes the command a later Store is accepted for.
func (c *Cache) Lookup(cmd string, gtagsFile string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	modified := c.modifiedLocked(gtagsFile)
	if !modified && c.complete && len(c.content) > 0 && c.lastCmd == cmd {
		explain.Or(c.Explain).KV("cache_hit", "replay")
		return slices.Clone(c.content), true
	}

	explain.Or(c.Explain).KV("cache_hit", "miss")
	c.lastCmd = cmd
	c.content = nil
	c.complete = false
	return nil, false
}

// Store remembers a fully read listing produced by cmd.
func (c *Cache) Store(cmd string, lines []string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cmd != c.lastCmd {
		return
	}
	c.content = slices.Clone(lines)
	c.complete = true
}

func (c *Cache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCmd = ""
	c.content = nil
	c.complete = false
	c.hasMTime = false
}
