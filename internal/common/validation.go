package common

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve on hosts without /usr/share/zoneinfo
)

// MinPasswordLength is the hardened-mode lower bound for login passwords
const MinPasswordLength = 8

var (
	proxyAddressPattern = regexp.MustCompile(`^[A-Za-z0-9.-]+:[0-9]{1,5}$`)
	shmSizePattern      = regexp.MustCompile(`^[0-9]+[kmg]b?$`)
)

// ValidateIP validates an IPv4 address
func ValidateIP(ip string) error {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return fmt.Errorf("invalid IP address: %s", ip)
	}

	// Ensure it's IPv4
	if parsed.To4() == nil {
		return fmt.Errorf("not a valid IPv4 address: %s", ip)
	}

	return nil
}

// ParsePort converts operator input to a port number in 1-65535
func ParsePort(port string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		return 0, fmt.Errorf("invalid port number: %s", port)
	}
	if err := ValidatePortNumber(p); err != nil {
		return 0, err
	}
	return p, nil
}

// ValidatePortNumber checks an already-parsed port
func ValidatePortNumber(p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", p)
	}
	return nil
}

// ValidatePath validates that a path is absolute
func ValidatePath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}
	return nil
}

// SanitizeUsername strips whitespace and quote characters that would break
// the generated descriptor or a shell invocation.
func SanitizeUsername(username string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', '`', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, username)
}

// ValidateUsername validates a Unix username
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	// Basic username validation (alphanumeric, underscore, hyphen, must start with letter or underscore)
	if len(username) > 32 {
		return fmt.Errorf("username too long (max 32 characters): %s", username)
	}

	firstChar := username[0]
	if !((firstChar >= 'a' && firstChar <= 'z') || (firstChar >= 'A' && firstChar <= 'Z') || firstChar == '_') {
		return fmt.Errorf("username must start with a letter or underscore: %s", username)
	}

	for _, c := range username {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-') {
			return fmt.Errorf("username contains invalid character: %s", username)
		}
	}

	return nil
}

// ValidatePassword enforces the hardened-mode length floor
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateDomain validates a domain name (basic validation)
func ValidateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}

	if len(domain) > 253 {
		return fmt.Errorf("domain name too long: %s", domain)
	}

	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("invalid domain (empty label): %s", domain)
		}
		if len(part) > 63 {
			return fmt.Errorf("domain label too long: %s", part)
		}

		for i, c := range part {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-') {
				return fmt.Errorf("invalid character in domain: %s", domain)
			}
			// Hyphen cannot be at start or end
			if c == '-' && (i == 0 || i == len(part)-1) {
				return fmt.Errorf("domain label cannot start or end with hyphen: %s", part)
			}
		}
	}

	return nil
}

// ValidateHost accepts an IPv4 address or a domain name
func ValidateHost(host string) error {
	if ValidateIP(host) == nil {
		return nil
	}
	if err := ValidateDomain(host); err != nil {
		return fmt.Errorf("not an IPv4 address or domain name: %s", host)
	}
	return nil
}

// ValidateProxyAddress checks a host:port pair and returns its parts
func ValidateProxyAddress(address string) (string, int, error) {
	if !proxyAddressPattern.MatchString(address) {
		return "", 0, fmt.Errorf("proxy address must look like host:port, got: %q", address)
	}

	host, portText, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, fmt.Errorf("invalid proxy address %q: %w", address, err)
	}

	port, err := ParsePort(portText)
	if err != nil {
		return "", 0, fmt.Errorf("invalid proxy port: %w", err)
	}

	return host, port, nil
}

// ValidateProxyScheme accepts the schemes the browser's --proxy-server flag understands
func ValidateProxyScheme(scheme string) error {
	switch scheme {
	case "http", "socks5":
		return nil
	}
	return fmt.Errorf("proxy scheme must be http or socks5, got: %q", scheme)
}

// ValidateTimezone checks that tz names a zone in the tz database
func ValidateTimezone(tz string) error {
	if tz == "" {
		return fmt.Errorf("timezone cannot be empty")
	}
	if tz == "Local" {
		return fmt.Errorf("timezone must be an IANA name such as Europe/London")
	}

	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown timezone %q (see timedatectl list-timezones)", tz)
	}

	return nil
}

// ValidateShmSize checks a shared-memory size such as 512mb or 1g
func ValidateShmSize(size string) error {
	if !shmSizePattern.MatchString(size) {
		return fmt.Errorf("shm size must look like 512mb or 1gb, got: %q", size)
	}
	return nil
}
