package sampler

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/procfs"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

// zombieState is the /proc/<pid>/stat state of an exited but unreaped process
const zombieState = "Z"

// ProcFS implements Sampler on top of the Linux proc filesystem
type ProcFS struct {
	fs    procfs.FS
	clock clock.PassiveClock

	mutex sync.Mutex
	last  map[int]cpuReading // key: pid
}

type cpuReading struct {
	cpuSeconds float64
	at         time.Time
}

// NewProcFS creates a sampler reading from the proc filesystem mounted at mountPoint
func NewProcFS(mountPoint string, clk clock.PassiveClock) (*ProcFS, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open proc filesystem at %s: %w", mountPoint, err)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &ProcFS{
		fs:    fs,
		clock: clk,
		last:  make(map[int]cpuReading),
	}, nil
}

// NewDefault creates a sampler for /proc using the real clock
func NewDefault() (*ProcFS, error) {
	return NewProcFS(procfs.DefaultMountPoint, clock.RealClock{})
}

// Process reads CPU time and resident memory for pid. CPU percentage is the
// CPU time consumed since the previous read of the same pid divided by the
// wall time in between; the first read is measured from process start.
func (p *ProcFS) Process(pid int) (ProcessSample, error) {
	proc, err := p.fs.Proc(pid)
	if err != nil {
		return ProcessSample{}, wrapProcErr(pid, err)
	}

	stat, err := proc.Stat()
	if err != nil {
		return ProcessSample{}, wrapProcErr(pid, err)
	}
	if stat.State == zombieState {
		return ProcessSample{}, ErrProcessNotFound
	}

	now := p.clock.Now()
	current := cpuReading{cpuSeconds: stat.CPUTime(), at: now}

	p.mutex.Lock()
	previous, seen := p.last[pid]
	p.last[pid] = current
	p.mutex.Unlock()

	if !seen {
		previous = current
		if start, err := stat.StartTime(); err == nil {
			previous = cpuReading{at: time.Unix(0, int64(start*float64(time.Second)))}
		} else {
			klog.V(3).InfoS("Failed to read process start time, first CPU reading will be zero", "pid", pid, "err", err)
		}
	}

	return ProcessSample{
		CPUPercent: cpuPercent(previous, current),
		RSSBytes:   uint64(max(stat.ResidentMemory(), 0)),
	}, nil
}

// Network sums the transmit and receive byte counters of every interface in /proc/net/dev
func (p *ProcFS) Network() (NetworkCounters, error) {
	netDev, err := p.fs.NetDev()
	if err != nil {
		return NetworkCounters{}, fmt.Errorf("failed to read network device stats: %w", err)
	}

	total := netDev.Total()
	return NetworkCounters{
		SentBytes:     total.TxBytes,
		ReceivedBytes: total.RxBytes,
	}, nil
}

func cpuPercent(previous, current cpuReading) float64 {
	elapsed := current.at.Sub(previous.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	percent := (current.cpuSeconds - previous.cpuSeconds) / elapsed * 100
	if percent < 0 {
		return 0
	}
	return percent
}

func wrapProcErr(pid int, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return ErrProcessNotFound
	}
	return fmt.Errorf("failed to read stat for pid %d: %w", pid, err)
}
