package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ProcessInfo is the resolved process-context snapshot cached per pid,
// per the Process Info Cache data model in spec.md §3.
type ProcessInfo struct {
	PID         int32
	Comm        string
	Cmdline     string
	User        string
	FirstSeenTs float64
	LastSeenTs  float64
}

// ProcessCache is the stream processor's process-info cache: an LRU of
// bounded size with TTL refresh-on-stale-read, grounded on the teacher's
// use of github.com/hashicorp/golang-lru/v2 in
// correlator/internal/store/memory.go for its dedupe cache.
type ProcessCache struct {
	lru *lru.Cache[int32, ProcessInfo]
	ttl time.Duration
	now func() time.Time
}

func NewProcessCache(capacity int, ttl time.Duration) *ProcessCache {
	if capacity <= 0 {
		capacity = 10000
	}
	c, _ := lru.New[int32, ProcessInfo](capacity)
	return &ProcessCache{lru: c, ttl: ttl, now: time.Now}
}

// Lookup resolves a pid's process info. A cache hit younger than ttl is
// returned as-is. A miss or a stale hit triggers a best-effort
// synchronous refresh from /proc; refresh failure degrades to returning
// whatever was cached (resolved=false) rather than raising, per §4.3's
// "enrichment is best-effort and never raises".
func (c *ProcessCache) Lookup(pid int32) (ProcessInfo, bool) {
	now := c.now()
	if info, ok := c.lru.Get(pid); ok {
		if now.Sub(time.Unix(0, int64(info.LastSeenTs*1e9))) < c.ttl {
			return info, true
		}
		if fresh, ok := readProcessInfo(pid, now); ok {
			c.lru.Add(pid, fresh)
			return fresh, true
		}
		return info, false
	}

	if fresh, ok := readProcessInfo(pid, now); ok {
		c.lru.Add(pid, fresh)
		return fresh, true
	}
	return ProcessInfo{}, false
}

func (c *ProcessCache) Len() int { return c.lru.Len() }

func readProcessInfo(pid int32, now time.Time) (ProcessInfo, bool) {
	pidDir := fmt.Sprintf("/proc/%d", pid)
	statBytes, err := os.ReadFile(filepath.Join(pidDir, "stat"))
	if err != nil {
		return ProcessInfo{}, false
	}
	content := string(statBytes)
	openIdx := strings.Index(content, "(")
	closeIdx := strings.LastIndex(content, ")")
	if openIdx < 0 || closeIdx < openIdx {
		return ProcessInfo{}, false
	}
	comm := content[openIdx+1 : closeIdx]

	cmdline := ""
	if raw, err := os.ReadFile(filepath.Join(pidDir, "cmdline")); err == nil {
		cmdline = strings.ReplaceAll(strings.TrimRight(string(raw), "\x00"), "\x00", " ")
	}

	user := ""
	if info, err := os.Stat(pidDir); err == nil {
		user = ownerOf(info)
	}

	ts := float64(now.UnixNano()) / 1e9
	return ProcessInfo{
		PID:         pid,
		Comm:        comm,
		Cmdline:     cmdline,
		User:        user,
		FirstSeenTs: ts,
		LastSeenTs:  ts,
	}, true
}
