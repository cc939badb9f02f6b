package collab

import "fmt"

// BrowserKind names a browser whose observable fingerprint (header order,
// TLS extension order, JA3-style parameters) this package can impersonate.
// Mirrors the BrowserType enum in
// original_source/stealth/browser_profiles/fingerprints/browser_fingerprint.hpp.
type BrowserKind int

const (
	BrowserChrome BrowserKind = iota
	BrowserFirefox
	BrowserSafari
	BrowserEdge
)

func (b BrowserKind) String() string {
	switch b {
	case BrowserChrome:
		return "chrome"
	case BrowserFirefox:
		return "firefox"
	case BrowserSafari:
		return "safari"
	case BrowserEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// OSKind names the host OS a fingerprint template assumes, affecting the
// User-Agent string and a handful of header values. Mirrors OSType in the
// same header.
type OSKind int

const (
	OSWindows OSKind = iota
	OSMacOS
	OSLinux
)

func (o OSKind) String() string {
	switch o {
	case OSWindows:
		return "windows"
	case OSMacOS:
		return "macos"
	case OSLinux:
		return "linux"
	default:
		return "unknown"
	}
}

// Fingerprint is a named (browser, OS) template for the headers and TLS
// parameters that a real client of that kind would present. It never
// touches MTU or probing; it exists so a demo harness wiring this
// collaborator has a believable outer shell around the transport this
// repository actually discovers the path for.
type Fingerprint struct {
	Browser BrowserKind
	OS      OSKind
}

// HTTPHeaders returns the ordered header set a real client matching this
// fingerprint would send, generalized from generate_http_headers() in
// browser_fingerprint.hpp. Order matters for the impersonation to hold up
// against header-order fingerprinting, so callers must preserve the slice
// order when serializing onto the wire.
func (f Fingerprint) HTTPHeaders() []HeaderField {
	ua := f.userAgent()
	switch f.Browser {
	case BrowserFirefox:
		return []HeaderField{
			{"User-Agent", ua},
			{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			{"Accept-Language", "en-US,en;q=0.5"},
			{"Accept-Encoding", "gzip, deflate, br"},
			{"DNT", "1"},
			{"Connection", "keep-alive"},
			{"Upgrade-Insecure-Requests", "1"},
		}
	case BrowserSafari:
		return []HeaderField{
			{"User-Agent", ua},
			{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
			{"Accept-Language", "en-US,en;q=0.9"},
			{"Accept-Encoding", "gzip, deflate, br"},
			{"Connection", "keep-alive"},
		}
	default: // Chrome and Edge share a Chromium header order.
		return []HeaderField{
			{"User-Agent", ua},
			{"sec-ch-ua", `"Not.A/Brand";v="8", "Chromium";v="124"`},
			{"sec-ch-ua-mobile", "?0"},
			{"sec-ch-ua-platform", fmt.Sprintf("%q", f.OS.String())},
			{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			{"Accept-Encoding", "gzip, deflate, br"},
			{"Accept-Language", "en-US,en;q=0.9"},
			{"Connection", "keep-alive"},
		}
	}
}

// HeaderField is a single ordered (name, value) pair.
type HeaderField struct {
	Name  string
	Value string
}

func (f Fingerprint) userAgent() string {
	switch f.Browser {
	case BrowserFirefox:
		return fmt.Sprintf("Mozilla/5.0 (%s; rv:126.0) Gecko/20100101 Firefox/126.0", f.platformToken())
	case BrowserSafari:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15", f.platformToken())
	case BrowserEdge:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0", f.platformToken())
	default:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", f.platformToken())
	}
}

func (f Fingerprint) platformToken() string {
	switch f.OS {
	case OSMacOS:
		return "Macintosh; Intel Mac OS X 10_15_7"
	case OSLinux:
		return "X11; Linux x86_64"
	default:
		return "Windows NT 10.0; Win64; x64"
	}
}

// TLSExtensionOrder returns the TLS extension identifiers in the order a
// real client of this fingerprint's browser presents them, generalized
// from generate_tls_parameters(). Downstream QUIC/TLS setup (out of this
// repository's scope) would use this to shape its ClientHello; it is
// listed here only as the template this package's fingerprint database
// holds.
func (f Fingerprint) TLSExtensionOrder() []uint16 {
	const (
		extServerName           = 0x0000
		extSupportedGroups      = 0x000a
		extECPointFormats       = 0x000b
		extSignatureAlgorithms  = 0x000d
		extALPN                 = 0x0010
		extSupportedVersions    = 0x002b
		extPSKKeyExchangeModes  = 0x002d
		extKeyShare             = 0x0033
		extApplicationSettings  = 0x4469
	)
	if f.Browser == BrowserFirefox {
		return []uint16{extServerName, extSupportedGroups, extECPointFormats, extSignatureAlgorithms, extALPN, extSupportedVersions, extPSKKeyExchangeModes, extKeyShare}
	}
	return []uint16{extServerName, extExtendedMasterSecret(), extSupportedGroups, extECPointFormats, extALPN, extApplicationSettings, extSignatureAlgorithms, extSupportedVersions, extPSKKeyExchangeModes, extKeyShare}
}

func extExtendedMasterSecret() uint16 { return 0x0017 }
