package peering

import (
	"errors"
	"log/slog"
	"testing"
)

func ipv4(a, b, c, d uint8) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		name string
		ip   uint32
		want bool
	}{
		{"10.0.0.1", ipv4(10, 0, 0, 1), true},
		{"172.20.5.1", ipv4(172, 20, 5, 1), true},
		{"172.16.0.0", ipv4(172, 16, 0, 0), true},
		{"172.31.255.255", ipv4(172, 31, 255, 255), true},
		{"172.15.0.1", ipv4(172, 15, 0, 1), false},
		{"172.32.0.1", ipv4(172, 32, 0, 1), false},
		{"192.168.1.1", ipv4(192, 168, 1, 1), true},
		{"192.169.1.1", ipv4(192, 169, 1, 1), false},
		{"8.8.8.8", ipv4(8, 8, 8, 8), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPrivateIP(tt.ip); got != tt.want {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestParseSubnet_WellFormed(t *testing.T) {
	f := parseSubnet("10.4.0.0/16")
	if !f.active {
		t.Fatal("filter should be active for well-formed CIDR")
	}

	if !f.match(ipv4(10, 4, 12, 9)) {
		t.Error("10.4.12.9 should match 10.4.0.0/16")
	}
	if f.match(ipv4(10, 5, 0, 1)) {
		t.Error("10.5.0.1 should not match 10.4.0.0/16")
	}
}

func TestParseSubnet_TopNBits(t *testing.T) {
	// For N=24 only the top 24 bits must agree.
	f := parseSubnet("192.168.5.0/24")
	if !f.match(ipv4(192, 168, 5, 200)) {
		t.Error("same /24 should match")
	}
	if f.match(ipv4(192, 168, 6, 200)) {
		t.Error("different /24 should not match")
	}
}

func TestParseSubnet_MalformedMeansNoConstraint(t *testing.T) {
	malformed := []string{
		"",
		"10.0.0.0",        // no slash
		"10.0.0.0/16/8",   // too many parts
		"10.0.0.0/sixteen", // non-numeric prefix
		"10.0.0.0/40",     // out of range
		"10.0.0.0/0",      // zero bits: no constraint
		"banana/16",       // unparseable address
	}

	for _, cidr := range malformed {
		t.Run(cidr, func(t *testing.T) {
			f := parseSubnet(cidr)
			if f.active {
				t.Errorf("parseSubnet(%q) should be inactive", cidr)
			}
			// Inactive filter accepts everything, identical to "no subnet given".
			if !f.match(ipv4(8, 8, 8, 8)) {
				t.Error("inactive filter must match all candidates")
			}
		})
	}
}

func TestResolve_ExplicitAddress(t *testing.T) {
	ep, err := Resolve("10.1.2.3", "", 8107, slog.Default())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ep.String() != "10.1.2.3:8107" {
		t.Errorf("endpoint = %q, want 10.1.2.3:8107", ep.String())
	}
}

func TestResolve_ExplicitAddressMalformed(t *testing.T) {
	for _, addr := range []string{"not-an-ip", "300.1.2.3", "fe80::1"} {
		t.Run(addr, func(t *testing.T) {
			_, err := Resolve(addr, "", 8107, slog.Default())
			if !errors.Is(err, ErrAddressParse) {
				t.Errorf("Resolve(%q) error = %v, want ErrAddressParse", addr, err)
			}
		})
	}
}

func TestResolve_FallbackNeverFails(t *testing.T) {
	// A subnet nothing can match forces the loopback fallback.
	ep, err := Resolve("", "203.0.113.0/24", 8107, slog.Default())
	if err != nil {
		t.Fatalf("Resolve must not fail on fallback: %v", err)
	}
	if ep.IP.String() != "127.0.0.1" {
		t.Errorf("fallback endpoint = %v, want 127.0.0.1", ep.IP)
	}
}

func TestEndpoint_Descriptor(t *testing.T) {
	ep, _ := Resolve("192.168.1.20", "", 8107, slog.Default())
	if got := ep.Descriptor(8108); got != "192.168.1.20:8107:8108" {
		t.Errorf("Descriptor = %q, want 192.168.1.20:8107:8108", got)
	}
}
