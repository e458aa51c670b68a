// Package privacy reduces personal data to values that are safe to log,
// trace and audit.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
)

// HashIdentity returns a short SHA-256 digest of a passport number so logs,
// traces and audit events can be correlated without carrying the number.
func HashIdentity(id uint32) string {
	hash := sha256.Sum256([]byte(strconv.FormatUint(uint64(id), 10)))
	return hex.EncodeToString(hash[:8])
}

// AnonymizeIP truncates an address to its network: the last octet of IPv4
// is zeroed (/24) and IPv6 keeps only the /48 prefix.
//
// Returns "unknown" for an empty input and "invalid" when it does not parse.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::",
		parsed[0], parsed[1],
		parsed[2], parsed[3],
		parsed[4], parsed[5])
}

// AnonymizeRemoteAddr anonymizes an http.Request RemoteAddr ("host:port" or
// a bare host).
func AnonymizeRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return AnonymizeIP(host)
}
