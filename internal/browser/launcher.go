// Package browser starts a Chromium instance with remote debugging enabled
// for watch sessions that do not attach to an existing browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"
)

var ErrNoBrowser = errors.New("no supported browser found (tried chromium-browser, chromium, google-chrome)")

// Options holds browser launch settings.
type Options struct {
	CDPAddress string
	CDPPort    int
	StartURL   string
	ProfileDir string
	Binary     string // empty means auto-detect
	Headless   bool

	ReadyTimeout time.Duration
}

// Launcher owns a browser process it started.
type Launcher struct {
	opts Options
	cmd  *exec.Cmd
}

func NewLauncher(opts Options) *Launcher {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 15 * time.Second
	}
	if opts.StartURL == "" {
		opts.StartURL = "about:blank"
	}
	return &Launcher{opts: opts}
}

func detectBrowser() (string, error) {
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", ErrNoBrowser
}

func (l *Launcher) cdpHostPort() string {
	return net.JoinHostPort(l.opts.CDPAddress, strconv.Itoa(l.opts.CDPPort))
}

// Args returns the command line passed to the browser.
func (l *Launcher) Args() []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(l.opts.CDPPort),
		"--remote-debugging-address=" + l.opts.CDPAddress,
		"--user-data-dir=" + l.opts.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
	}
	if l.opts.Headless {
		args = append(args, "--headless=new")
	}
	return append(args, l.opts.StartURL)
}

// Launch starts the browser unless something already listens on the CDP
// port, and waits for the DevTools endpoint. It reports whether it started
// a process.
func (l *Launcher) Launch(ctx context.Context) (bool, error) {
	if conn, err := net.DialTimeout("tcp", l.cdpHostPort(), time.Second); err == nil {
		conn.Close()
		slog.Info("Browser already running, skipping launch", "cdp", l.cdpHostPort())
		return false, nil
	}

	path := l.opts.Binary
	if path == "" {
		var err error
		if path, err = detectBrowser(); err != nil {
			return false, err
		}
	}
	if err := os.MkdirAll(l.opts.ProfileDir, 0o755); err != nil {
		return false, fmt.Errorf("create profile dir: %w", err)
	}

	l.cmd = exec.Command(path, l.Args()...)
	if err := l.cmd.Start(); err != nil {
		return false, fmt.Errorf("start browser: %w", err)
	}
	slog.Info("Browser process started", "path", path, "pid", l.cmd.Process.Pid)

	if err := WaitForCDP(ctx, "http://"+l.cdpHostPort(), l.opts.ReadyTimeout); err != nil {
		l.Stop()
		return false, err
	}
	slog.Info("CDP endpoint ready", "cdp", l.cdpHostPort())
	return true, nil
}

// WaitForCDP polls baseURL/json/version until it answers 200.
func WaitForCDP(ctx context.Context, baseURL string, timeout time.Duration) error {
	url := baseURL + "/json/version"
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("CDP not ready at %s: %w", url, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Stop terminates a browser started by Launch with SIGTERM, then SIGKILL.
func (l *Launcher) Stop() {
	if l.cmd == nil || l.cmd.Process == nil {
		return
	}
	slog.Info("Stopping browser", "pid", l.cmd.Process.Pid)
	_ = l.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = l.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Warn("Browser did not exit, sending SIGKILL")
		_ = l.cmd.Process.Kill()
		<-done
	}
	l.cmd = nil
}
