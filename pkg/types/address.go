package types

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
)

// Address is an IP (v4 or v6) plus TCP port. Immutable.
type Address struct {
	ip   net.IP
	port uint16
}

// NewAddress builds an Address from IP octets and a port.
func NewAddress(ip net.IP, port uint16) Address {
	return Address{ip: ip, port: port}
}

// ParseAddress parses "host:port" into an Address.
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return Address{}, fmt.Errorf("invalid address %q: not an IP literal", s)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return Address{ip: ip, port: uint16(port)}, nil
}

// FromNetAddr converts a socket address into an Address.
func FromNetAddr(addr net.Addr) (Address, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return Address{}, fmt.Errorf("not a TCP address: %v", addr)
	}
	return Address{ip: tcp.IP, port: uint16(tcp.Port)}, nil
}

// IP returns the IP octets.
func (a Address) IP() net.IP { return a.ip }

// Port returns the TCP port.
func (a Address) Port() uint16 { return a.port }

// String renders "host:port", round-tripping through ParseAddress.
func (a Address) String() string {
	return net.JoinHostPort(a.ip.String(), strconv.Itoa(int(a.port)))
}

// Equal reports whether both addresses have identical IP and port.
func (a Address) Equal(other Address) bool {
	return a.ip.Equal(other.ip) && a.port == other.port
}

type addressJSON struct {
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
}

// MarshalJSON encodes the address in textual form.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(addressJSON{IP: a.ip.String(), Port: a.port})
}

// UnmarshalJSON decodes the textual form.
func (a *Address) UnmarshalJSON(data []byte) error {
	var raw addressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ip := net.ParseIP(raw.IP)
	if ip == nil {
		return fmt.Errorf("invalid ip %q", raw.IP)
	}
	a.ip = ip
	a.port = raw.Port
	return nil
}
