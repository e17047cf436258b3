// Package bypass recognises responses where bot protection blocked or
// challenged a search request instead of answering it.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of an HTTP response the detectors inspect.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether resp is a block page and names the protection.
type Detector func(resp *Response) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
		detectDuckDuckGo,
	}
}

// Detect runs resp through detectors and returns the first source that
// triggers.
func Detect(resp *Response, detectors []Detector) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, d := range detectors {
		if detected, source := d(resp); detected {
			return source, true
		}
	}
	return "", false
}

func server(resp *Response) string {
	return strings.ToLower(resp.Header.Get("Server"))
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(resp *Response) (bool, string) {
	// Status codes 403 or 503 are common for CF challenges
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(server(resp), "cloudflare") {
		return true, "Cloudflare"
	}
	for _, sig := range []string{"cf-browser-verification", "cf-turnstile", "Attention Required! | Cloudflare"} {
		if bytes.Contains(resp.Body, []byte(sig)) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(resp *Response) (bool, string) {
	if resp.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(resp), "akamai") {
		return true, "Akamai"
	}
	// Akamai often returns a generic "Reference #" block page
	if bytes.Contains(resp.Body, []byte("Reference #")) && bytes.Contains(resp.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(resp *Response) (bool, string) {
	if resp.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(resp), "datadome") || resp.Header.Get("X-DataDome") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(resp.Body, []byte("geo.captcha-delivery.com")) {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(resp *Response) (bool, string) {
	if resp.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if resp.Header.Get("X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bytes.Contains(resp.Body, []byte("px-captcha")) || bytes.Contains(resp.Body, []byte("_pxBlock")) {
		return true, "PerimeterX"
	}
	return false, ""
}

// detectDuckDuckGo spots the anomaly page DuckDuckGo serves, often with a
// 200 or 202 status, when it suspects automation.
func detectDuckDuckGo(resp *Response) (bool, string) {
	if bytes.Contains(resp.Body, []byte("anomaly-modal")) || bytes.Contains(resp.Body, []byte(`id="challenge-form"`)) {
		return true, "DuckDuckGo"
	}
	return false, ""
}
