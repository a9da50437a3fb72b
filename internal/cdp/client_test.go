package cdp

import (
	"strings"
	"testing"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/authscope/internal/config"
)

func TestTabRegistry(t *testing.T) {
	r := NewTabRegistry()

	info := r.Register(target.ID("B0D5A8E8C0FFEE00"), "https://App.Example.com/dashboard")
	if info.Host != "app.example.com" || info.ShortID != "B0D5A8E8" {
		t.Fatalf("Register() = %+v", info)
	}
	r.Register(target.ID("A1"), "about:blank")

	// navigation replaces the entry
	r.Register(target.ID("B0D5A8E8C0FFEE00"), "https://other.example.com/")
	if r.Count() != 2 {
		t.Fatalf("Count() = %d; want 2", r.Count())
	}
	got, ok := r.Get(target.ID("B0D5A8E8C0FFEE00"))
	if !ok || got.Host != "other.example.com" {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}

	list := r.List()
	if len(list) != 2 || list[0].TargetID != "A1" {
		t.Fatalf("List() = %+v", list)
	}

	r.Remove(target.ID("A1"))
	if _, ok := r.Get(target.ID("A1")); ok {
		t.Fatalf("Get() after Remove found the tab")
	}
}

func TestMatchesTabURL(t *testing.T) {
	tests := []struct {
		filter string
		url    string
		want   bool
	}{
		{"", "https://anything.example.com", true},
		{"example.com", "https://APP.EXAMPLE.COM/x", true},
		{"example.com", "https://other.test/", false},
	}
	for _, tt := range tests {
		c := NewClient(&config.Config{TabURLFilter: tt.filter}, nil, nil, NewTabRegistry())
		if got := c.matchesTabURL(tt.url); got != tt.want {
			t.Fatalf("matchesTabURL(%q) with filter %q = %v; want %v", tt.url, tt.filter, got, tt.want)
		}
	}
}

func TestShortURL(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", 200)
	if got := shortURL(long); len(got) != maxLoggedURL+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("shortURL() len = %d", len(got))
	}
	if got := shortURL("https://short"); got != "https://short" {
		t.Fatalf("shortURL() = %q", got)
	}
}

func TestRouteTracksNavigation(t *testing.T) {
	registry := NewTabRegistry()
	c := NewClient(&config.Config{}, nil, nil, registry)
	id := target.ID("T1")
	registry.Register(id, "https://start.example.com/")
	route := c.route(id)

	route(&page.EventFrameNavigated{Frame: &cdproto.Frame{ParentID: "F0", URL: "https://ads.example.net/frame"}})
	if info, _ := registry.Get(id); info.Host != "start.example.com" {
		t.Fatalf("child frame navigation changed host to %q", info.Host)
	}

	route(&page.EventFrameNavigated{Frame: &cdproto.Frame{URL: "https://app.example.com/login"}})
	if info, _ := registry.Get(id); info.Host != "app.example.com" {
		t.Fatalf("Get().Host = %q; want app.example.com", info.Host)
	}

	route(&page.EventNavigatedWithinDocument{URL: "https://app.example.com/home"})
	if info, _ := registry.Get(id); info.URL != "https://app.example.com/home" {
		t.Fatalf("Get().URL = %q; want SPA URL", info.URL)
	}
}

func TestCloseWithoutConnect(t *testing.T) {
	c := NewClient(&config.Config{}, nil, nil, NewTabRegistry())
	if err := c.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
	if c.TabCount() != 0 {
		t.Fatalf("TabCount() = %d; want 0", c.TabCount())
	}
}
