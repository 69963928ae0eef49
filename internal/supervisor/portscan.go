package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/a3s-lab/dev/internal/supervisor/errkind"
)

// portDiscoveryCap bounds how long the supervisor polls for a
// declared-port-0 service's listening socket before giving up.
const portDiscoveryCap = 5 * time.Second

// portDiscoveryPoll is the interval between polling attempts.
const portDiscoveryPoll = 100 * time.Millisecond

// discoverPort polls for a TCP listening socket owned by rootPID or any
// of its descendants, up to portDiscoveryCap. It returns spawn-failed
// wrapped in an error if nothing is found in time.
func discoverPort(ctx context.Context, rootPID int) (int, error) {
	deadline := time.Now().Add(portDiscoveryCap)
	ticker := time.NewTicker(portDiscoveryPoll)
	defer ticker.Stop()

	for {
		if port, ok := scanListeningPort(rootPID); ok {
			return port, nil
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("%s: no listening port found for pid %d within %s", errkind.SpawnFailed, rootPID, portDiscoveryCap)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

// scanListeningPort looks for any process in rootPID's subtree holding a
// socket inode that appears in /proc/net/tcp[6] with state 0A (LISTEN).
func scanListeningPort(rootPID int) (int, bool) {
	listening, err := listeningInodes()
	if err != nil || len(listening) == 0 {
		return 0, false
	}

	for _, pid := range pidTree(rootPID) {
		for inode := range socketInodes(pid) {
			if port, ok := listening[inode]; ok {
				return port, true
			}
		}
	}
	return 0, false
}

// pidTree returns root and every descendant pid, discovered by walking
// /proc/*/stat's parent-pid field. Best effort: processes that have
// already exited are silently skipped.
func pidTree(root int) []int {
	children := make(map[int][]int)
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return []int{root}
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ppid, ok := parentPID(pid)
		if !ok {
			continue
		}
		children[ppid] = append(children[ppid], pid)
	}

	var out []int
	queue := []int{root}
	seen := map[int]bool{}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		if seen[pid] {
			continue
		}
		seen[pid] = true
		out = append(out, pid)
		queue = append(queue, children[pid]...)
	}
	return out
}

func parentPID(pid int) (int, bool) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, false
	}
	// Format: "pid (comm) state ppid ...". The comm field may contain
	// spaces or parens, so split on the last ')' before reading fields.
	s := string(data)
	idx := strings.LastIndexByte(s, ')')
	if idx < 0 || idx+2 >= len(s) {
		return 0, false
	}
	fields := strings.Fields(s[idx+2:])
	if len(fields) < 2 {
		return 0, false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return ppid, true
}

// socketInodes returns the set of socket inode numbers held open by pid,
// by reading the symlinks under /proc/pid/fd.
func socketInodes(pid int) map[uint64]struct{} {
	out := make(map[uint64]struct{})
	dir := fmt.Sprintf("/proc/%d/fd", pid)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		link, err := os.Readlink(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		if !strings.HasPrefix(link, "socket:[") || !strings.HasSuffix(link, "]") {
			continue
		}
		inodeStr := link[len("socket:[") : len(link)-1]
		inode, err := strconv.ParseUint(inodeStr, 10, 64)
		if err != nil {
			continue
		}
		out[inode] = struct{}{}
	}
	return out
}

// listeningInodes parses /proc/net/tcp and /proc/net/tcp6 for rows in
// the LISTEN state (local hex status "0A"), returning inode -> port.
func listeningInodes() (map[uint64]int, error) {
	out := make(map[uint64]int)
	for _, path := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		lines := strings.Split(string(data), "\n")
		for _, line := range lines[1:] {
			fields := strings.Fields(line)
			if len(fields) < 10 {
				continue
			}
			localAddr := fields[1]
			state := fields[3]
			inodeStr := fields[9]
			if state != "0A" {
				continue
			}
			parts := strings.Split(localAddr, ":")
			if len(parts) != 2 {
				continue
			}
			portVal, err := strconv.ParseUint(parts[1], 16, 32)
			if err != nil {
				continue
			}
			inode, err := strconv.ParseUint(inodeStr, 10, 64)
			if err != nil {
				continue
			}
			out[inode] = int(portVal)
		}
	}
	return out, nil
}
