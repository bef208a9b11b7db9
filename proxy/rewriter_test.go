package proxy

import (
	"net/http"
	"testing"
)

func TestRewrite_AbsoluteURLs(t *testing.T) {
	rw := NewRewriter("demo-x.example.net", "/demo-x", false)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"Anchor href",
			`<a href="https://demo-x.example.net/about">About</a>`,
			`<a href="/demo-x/about">About</a>`,
		},
		{
			"Bare origin",
			`<link rel="canonical" href="https://demo-x.example.net">`,
			`<link rel="canonical" href="/demo-x">`,
		},
		{
			"Case-insensitive scheme and host",
			`<img src="HTTPS://DEMO-X.EXAMPLE.NET/logo.png">`,
			`<img src="/demo-x/logo.png">`,
		},
		{
			"http scheme",
			`<a href="http://demo-x.example.net/x">x</a>`,
			`<a href="/demo-x/x">x</a>`,
		},
		{
			"Protocol-relative",
			`<script src="//demo-x.example.net/app.js"></script>`,
			`<script src="/demo-x/app.js"></script>`,
		},
		{
			"Other hosts untouched",
			`<a href="https://other.example.com/page">x</a>`,
			`<a href="https://other.example.com/page">x</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rw.Rewrite(tt.in); got != tt.want {
				t.Errorf("Rewrite() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRewrite_RootRelative(t *testing.T) {
	rw := NewRewriter("demo-x.example.net", "/api/embed-proxy/demo-x", true)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"img src",
			`<img src="/logo.png">`,
			`<img src="/api/embed-proxy/demo-x/logo.png">`,
		},
		{
			"Anchor href",
			`<a href="/about">About</a>`,
			`<a href="/api/embed-proxy/demo-x/about">About</a>`,
		},
		{
			"Form action",
			`<form action="/submit" method="post">`,
			`<form action="/api/embed-proxy/demo-x/submit" method="post">`,
		},
		{
			"Root href",
			`<a href="/">Home</a>`,
			`<a href="/api/embed-proxy/demo-x/">Home</a>`,
		},
		{
			"Protocol-relative to other host untouched",
			`<script src="//cdn.example.com/lib.js"></script>`,
			`<script src="//cdn.example.com/lib.js"></script>`,
		},
		{
			"srcset entries",
			`<img srcset="/small.webp 480w, /large.webp 1024w">`,
			`<img srcset="/api/embed-proxy/demo-x/small.webp 480w, /api/embed-proxy/demo-x/large.webp 1024w">`,
		},
		{
			"CSS url()",
			`<style>body { background: url('/bg.png'); }</style>`,
			`<style>body { background: url('/api/embed-proxy/demo-x/bg.png'); }</style>`,
		},
		{
			"CSS url() unquoted",
			`<style>body { background: url(/bg.png); }</style>`,
			`<style>body { background: url(/api/embed-proxy/demo-x/bg.png); }</style>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rw.Rewrite(tt.in); got != tt.want {
				t.Errorf("Rewrite() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRewrite_PreservesStructure(t *testing.T) {
	rw := NewRewriter("demo-x.example.net", "/demo-x", true)

	in := `<!DOCTYPE html><html><head><title>t</title></head>` +
		`<body><div class="a"><p>plain /text with slashes/ and https in prose</p></div></body></html>`

	if got := rw.Rewrite(in); got != in {
		t.Errorf("Rewrite() altered structure: %q", got)
	}
}

func TestRewriteHeaders(t *testing.T) {
	rw := NewRewriter("demo-x.example.net", "/demo-x", true)

	h := http.Header{}
	h.Set("Location", "https://demo-x.example.net/next")
	h.Set("Content-Location", "/inner")

	rw.RewriteHeaders(h)

	if got := h.Get("Location"); got != "/demo-x/next" {
		t.Errorf("Location = %q, want /demo-x/next", got)
	}
	if got := h.Get("Content-Location"); got != "/demo-x/inner" {
		t.Errorf("Content-Location = %q, want /demo-x/inner", got)
	}
}
