package fault

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MemoryGuard watches process memory and records an out-of-memory
// condition once usage crosses the limit.
type MemoryGuard struct {
	interceptor *Interceptor
	limit       uint64
	interval    time.Duration
	usage       func() (uint64, error)
}

// NewMemoryGuard creates a guard for the current process
func NewMemoryGuard(i *Interceptor, limit uint64, interval time.Duration) *MemoryGuard {
	if interval <= 0 {
		interval = time.Second
	}
	return &MemoryGuard{
		interceptor: i,
		limit:       limit,
		interval:    interval,
		usage:       processRSS,
	}
}

func processRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

// Run polls until ctx is done or the limit is crossed. The Go runtime
// memory limit is set to the same value so the collector works harder
// before the guard fires.
func (g *MemoryGuard) Run(ctx context.Context) {
	if g.limit == 0 {
		return
	}
	if g.limit <= uint64(1<<62) {
		debug.SetMemoryLimit(int64(g.limit))
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		if g.Check() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Check samples usage once and triggers the interceptor when over the
// limit. It reports whether the guard fired.
func (g *MemoryGuard) Check() bool {
	used, err := g.usage()
	if err != nil || used <= g.limit {
		return false
	}
	g.interceptor.Fatal(Condition{
		Class:   ClassOutOfMemory,
		Message: fmt.Sprintf("Allowed memory size of %d bytes exhausted (resident %d bytes)", g.limit, used),
	})
	return true
}

// HostAvailable returns the memory available on the host, used to sanity
// check a configured limit at startup.
func HostAvailable() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}
