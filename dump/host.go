package dump

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const unknownHost = "unknown"

// Host holds the process-wide values that go into version ids and default identities. A nil
// field falls back to the DefaultHost value.
type Host struct {
	Hostname string
	NewID    func() string
	Now      func() time.Time
}

var defaultHost = sync.OnceValue(func() *Host {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = unknownHost
	}
	return &Host{
		Hostname: name,
		NewID:    func() string { return uuid.New().String() },
		Now:      time.Now,
	}
})

// DefaultHost returns the host values computed once for this process.
func DefaultHost() *Host {
	return defaultHost()
}

func (h *Host) hostname() string {
	if h == nil || h.Hostname == "" {
		return DefaultHost().Hostname
	}
	return h.Hostname
}

func (h *Host) newID() string {
	if h == nil || h.NewID == nil {
		return DefaultHost().NewID()
	}
	return h.NewID()
}

func (h *Host) now() time.Time {
	if h == nil || h.Now == nil {
		return time.Now()
	}
	return h.Now()
}
