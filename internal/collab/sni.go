package collab

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/net/idna"
)

// SNIHider rewrites the server name a TLS ClientHello advertises, so a
// passive observer sees a cover hostname instead of the real destination.
// Grounded on original_source/tests/sni_hiding_test.cpp, which builds a
// raw ClientHello byte vector with the SNI extension set to a chosen
// hostname; this package keeps the same byte layout for the extension
// itself but leaves everything else about ClientHello construction (cipher
// suite list, key share, extension order) to the fingerprint collaborator
// and the TLS stack embedding it.
type SNIHider struct {
	profile idna.Profile
}

// NewSNIHider builds a hider using a strict IDNA profile (lookup mapping
// with STD3 rules, so an ASCII label may hold only letters, digits and
// hyphens), matching the ASCII-hostname assumption the source's test
// fixtures use.
func NewSNIHider() *SNIHider {
	return &SNIHider{profile: *idna.New(idna.MapForLookup(), idna.ValidateLabels(true), idna.VerifyDNSLength(true))}
}

// CoverHostname normalizes a candidate cover hostname (punycode-encoding
// any non-ASCII labels) for use in place of the real SNI value.
func (h *SNIHider) CoverHostname(hostname string) (string, error) {
	ascii, err := h.profile.ToASCII(hostname)
	if err != nil {
		return "", fmt.Errorf("collab: normalizing cover hostname %q: %w", hostname, err)
	}
	return ascii, nil
}

// ServerNameExtension encodes the TLS server_name extension body
// (RFC 6066 §3) for the given hostname: a 2-byte server name list length,
// a 1-byte name type (host_name = 0), a 2-byte name length, then the name
// bytes. Byte-for-byte the layout original_source/tests/sni_hiding_test.cpp
// appends after the extension type and extension length fields.
func (h *SNIHider) ServerNameExtension(hostname string) ([]byte, error) {
	ascii, err := h.CoverHostname(hostname)
	if err != nil {
		return nil, err
	}
	if len(ascii) > 0xFFFF-3 {
		return nil, fmt.Errorf("collab: hostname %q too long for server_name extension", hostname)
	}

	nameEntry := make([]byte, 0, 3+len(ascii))
	nameEntry = append(nameEntry, 0x00) // name_type: host_name
	nameEntry = appendUint16(nameEntry, uint16(len(ascii)))
	nameEntry = append(nameEntry, ascii...)

	body := make([]byte, 0, 2+len(nameEntry))
	body = appendUint16(body, uint16(len(nameEntry)))
	body = append(body, nameEntry...)
	return body, nil
}

func appendUint16(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}
