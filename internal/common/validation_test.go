package common

import (
	"strings"
	"testing"
)

func TestValidateIP(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		wantErr bool
	}{
		{"valid IPv4", "192.168.1.1", false},
		{"valid IPv4 with zeros", "10.0.0.1", false},
		{"invalid - too high", "256.1.1.1", true},
		{"invalid - not numeric", "not-an-ip", true},
		{"invalid - empty", "", true},
		{"invalid - IPv6", "2001:0db8:85a3::8a2e:0370:7334", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIP(tt.ip)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIP() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid absolute path", "/home/user/config", false},
		{"valid root", "/", false},
		{"invalid - relative", "relative/path", true},
		{"invalid - relative dot", "./path", true},
		{"invalid - empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid username", "johndoe", false},
		{"valid with underscore", "_system", false},
		{"valid with hyphen", "john-doe", false},
		{"valid with numbers", "user123", false},
		{"invalid - starts with number", "1user", true},
		{"invalid - starts with hyphen", "-user", true},
		{"invalid - empty", "", true},
		{"invalid - too long", "thisusernameiswaytoolongtobevalidandexceedsthirtytwocharacters", true},
		{"invalid - special chars", "user@domain", true},
		{"invalid - space", "john doe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		wantErr bool
	}{
		{"valid domain", "example.com", false},
		{"valid subdomain", "sub.example.com", false},
		{"valid localhost", "localhost", false},
		{"valid with hyphen", "my-server.example.com", false},
		{"invalid - empty", "", true},
		{"invalid - starts with hyphen", "-example.com", true},
		{"invalid - ends with hyphen", "example-.com", true},
		{"invalid - double dot", "example..com", true},
		{"invalid - special chars", "example@domain.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDomain(tt.domain)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDomain() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTimezone(t *testing.T) {
	tests := []struct {
		name    string
		tz      string
		wantErr bool
	}{
		{"valid timezone", "America/Chicago", false},
		{"valid timezone - Europe", "Europe/London", false},
		{"valid UTC", "UTC", false},
		{"invalid - unknown zone", "Mars/Olympus_Mons", true},
		{"invalid - local", "Local", true},
		{"invalid - empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimezone(tt.tz)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimezone() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTimezoneHint(t *testing.T) {
	err := ValidateTimezone("Nowhere/Special")
	if err == nil || !strings.Contains(err.Error(), "timedatectl list-timezones") {
		t.Errorf("ValidateTimezone() error = %v, want hint about timedatectl", err)
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"plain", "3010", 3010, false},
		{"surrounding space", " 3012 ", 3012, false},
		{"out of range", "70000", 0, true},
		{"not numeric", "http", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePort(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePort() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePort() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{" al ice ", "alice"},
		{`"bob"`, "bob"},
		{"o'neil", "oneil"},
		{"`whoami`", "whoami"},
		{" \t'\"` ", ""},
	}

	for _, tt := range tests {
		if got := SanitizeUsername(tt.in); got != tt.want {
			t.Errorf("SanitizeUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Error("ValidatePassword(short) error = nil, want error")
	}
	if err := ValidatePassword("longenough"); err != nil {
		t.Errorf("ValidatePassword(longenough) error = %v", err)
	}
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"10.0.0.5", false},
		{"proxy.example.com", false},
		{"localhost", false},
		{"bad_host", true},
		{"-edge.example.com", true},
	}

	for _, tt := range tests {
		err := ValidateHost(tt.host)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateHost(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
		}
	}
}

func TestValidateProxyAddress(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"ip and port", "10.0.0.5:1080", "10.0.0.5", 1080, false},
		{"domain and port", "proxy.example.com:3128", "proxy.example.com", 3128, false},
		{"missing port", "proxy.example.com", "", 0, true},
		{"port too large", "proxy:99999", "", 0, true},
		{"scheme included", "http://proxy:8080", "", 0, true},
		{"credentials included", "user:pw@proxy:8080", "", 0, true},
		{"whitespace", "proxy :8080", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := ValidateProxyAddress(tt.address)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateProxyAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("ValidateProxyAddress() = %s, %d, want %s, %d", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestValidateProxyScheme(t *testing.T) {
	for _, scheme := range []string{"http", "socks5"} {
		if err := ValidateProxyScheme(scheme); err != nil {
			t.Errorf("ValidateProxyScheme(%q) error = %v", scheme, err)
		}
	}
	for _, scheme := range []string{"", "https", "socks4", "HTTP"} {
		if err := ValidateProxyScheme(scheme); err == nil {
			t.Errorf("ValidateProxyScheme(%q) error = nil, want error", scheme)
		}
	}
}

func TestValidateShmSize(t *testing.T) {
	tests := []struct {
		size    string
		wantErr bool
	}{
		{"1gb", false},
		{"512mb", false},
		{"2g", false},
		{"64k", false},
		{"1GB", true},
		{"gb", true},
		{"1.5gb", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateShmSize(tt.size)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateShmSize(%q) error = %v, wantErr %v", tt.size, err, tt.wantErr)
		}
	}
}
