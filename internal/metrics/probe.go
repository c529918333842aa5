package metrics

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// HostProbe collects cpu, memory and disk usage for the local host from
// /proc and statfs. CPU usage is computed between consecutive collections,
// so the first sample reports 0.
type HostProbe struct {
	mu        sync.Mutex
	diskPath  string
	prevIdle  uint64
	prevTotal uint64
}

// NewHostProbe creates a probe measuring disk usage of the filesystem
// containing path ("/" when empty).
func NewHostProbe(diskPath string) *HostProbe {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostProbe{diskPath: diskPath}
}

// Collect implements Source for the system family.
func (p *HostProbe) Collect(ctx context.Context) (map[string]float64, error) {
	cpu, err := p.cpuPercent()
	if err != nil {
		return nil, err
	}
	mem, err := memoryPercent()
	if err != nil {
		return nil, err
	}
	disk, err := diskPercent(p.diskPath)
	if err != nil {
		return nil, err
	}

	return map[string]float64{
		"cpu_percent":    cpu,
		"memory_percent": mem,
		"disk_percent":   disk,
	}, nil
}

func (p *HostProbe) cpuPercent() (float64, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, fmt.Errorf("read cpu stats: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, fmt.Errorf("read cpu stats: empty /proc/stat")
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, fmt.Errorf("read cpu stats: unexpected line %q", scanner.Text())
	}

	var total, idle uint64
	for i, field := range fields[1:] {
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("read cpu stats: %w", err)
		}
		total += v
		// fields: user nice system idle iowait ...
		if i == 3 || i == 4 {
			idle += v
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	deltaTotal := total - p.prevTotal
	deltaIdle := idle - p.prevIdle
	first := p.prevTotal == 0
	p.prevTotal = total
	p.prevIdle = idle

	if first || deltaTotal == 0 {
		return 0, nil
	}
	return (1 - float64(deltaIdle)/float64(deltaTotal)) * 100, nil
}

func memoryPercent() (float64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("read memory stats: %w", err)
	}
	defer f.Close()

	var total, available uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			available = v
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("read memory stats: MemTotal missing")
	}
	return (1 - float64(available)/float64(total)) * 100, nil
}

func diskPercent(path string) (float64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("read disk stats for %s: %w", path, err)
	}
	if st.Blocks == 0 {
		return 0, nil
	}
	used := st.Blocks - st.Bavail
	return float64(used) / float64(st.Blocks) * 100, nil
}
