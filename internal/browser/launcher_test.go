package browser

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestArgs(t *testing.T) {
	l := NewLauncher(Options{CDPAddress: "127.0.0.1", CDPPort: 9333, ProfileDir: "/tmp/p", Headless: true})
	got := strings.Join(l.Args(), " ")

	for _, want := range []string{"--remote-debugging-port=9333", "--user-data-dir=/tmp/p", "--headless=new"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Args() = %q; missing %q", got, want)
		}
	}
	if !strings.HasSuffix(got, "about:blank") {
		t.Fatalf("Args() = %q; want start URL last", got)
	}
}

func TestWaitForCDP(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" || calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := WaitForCDP(context.Background(), srv.URL, 5*time.Second); err != nil {
		t.Fatalf("WaitForCDP() = %v; want nil", err)
	}
	if calls.Load() < 2 {
		t.Fatalf("WaitForCDP() returned after %d calls; want at least 2", calls.Load())
	}
}

func TestWaitForCDPTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := WaitForCDP(context.Background(), srv.URL, 300*time.Millisecond); err == nil {
		t.Fatalf("WaitForCDP() = nil; want timeout error")
	}
}

func TestLaunchSkipsWhenPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	l := NewLauncher(Options{CDPAddress: "127.0.0.1", CDPPort: port, Binary: "/nonexistent", ProfileDir: t.TempDir()})
	started, err := l.Launch(context.Background())
	if err != nil || started {
		t.Fatalf("Launch() = %v, %v; want false, nil", started, err)
	}
}
