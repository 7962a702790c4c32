package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"clipshelf/internal/config"
	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
	"clipshelf/internal/services"
)

const (
	storeCheckTimeout  = 10 * time.Second
	serverCheckTimeout = 5 * time.Second
	probeKey           = "clipshelf-preflight-probe"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckMetadata opens the configured metadata database and pings it.
func CheckMetadata(ctx context.Context, cfg *config.Config) Result {
	const name = "Metadata store"

	checkCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()

	store, err := metadata.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	defer store.Close()
	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", store.Target(), store.Driver())}
}

// CheckStorage opens the configured object store and issues a metadata probe.
// A missing probe object is the expected healthy answer.
func CheckStorage(ctx context.Context, cfg *config.Config) Result {
	const name = "Object storage"

	checkCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()

	objects, err := objectstore.Open(checkCtx, cfg)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	if _, err := objects.Stat(checkCtx, probeKey); err != nil && !errors.Is(err, services.ErrNotFound) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", objects.Describe(), summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: objects.Describe() + " (reachable)"}
}

// CheckServer verifies a clipshelfd instance answers on baseURL.
func CheckServer(ctx context.Context, baseURL string) Result {
	const name = "clipshelfd"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing server url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, serverCheckTimeout)
	defer cancel()

	client := &http.Client{Timeout: serverCheckTimeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("status check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("status check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: base + " (reachable)"}
}

// summarizeError produces a human-readable summary for check failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (unreachable)"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("unreachable (%v)", opErr.Err)
	}
	return err.Error()
}
