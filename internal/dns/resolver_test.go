package dns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stubResolver(ips []net.IP, err error) (*Resolver, *string) {
	var asked string
	return &Resolver{
		lookupIP: func(_ context.Context, network, host string) ([]net.IP, error) {
			asked = network + " " + host
			return ips, err
		},
		timeout: time.Second,
	}, &asked
}

func TestResolveIPv4_FirstV4(t *testing.T) {
	r, asked := stubResolver([]net.IP{net.ParseIP("2001:db8::1"), net.ParseIP("203.0.113.9"), net.ParseIP("203.0.113.10")}, nil)
	assert.Equal(t, "203.0.113.9", r.ResolveIPv4(context.Background(), "app.example.com."))
	assert.Equal(t, "ip4 app.example.com", *asked)
}

func TestResolveIPv4_FailureIsEmpty(t *testing.T) {
	r, _ := stubResolver(nil, errors.New("no such host"))
	assert.Equal(t, "", r.ResolveIPv4(context.Background(), "missing.example.com"))
}

func TestResolveIPv4_NoRecords(t *testing.T) {
	r, _ := stubResolver([]net.IP{net.ParseIP("2001:db8::1")}, nil)
	assert.Equal(t, "", r.ResolveIPv4(context.Background(), "v6only.example.com"))
}

func TestResolveIPv4_EmptyDomain(t *testing.T) {
	r, asked := stubResolver(nil, nil)
	assert.Equal(t, "", r.ResolveIPv4(context.Background(), "  "))
	assert.Empty(t, *asked)
}

func TestResolveIPv4_SystemResolverLiteral(t *testing.T) {
	r := New("", 2*time.Second)
	assert.Equal(t, "127.0.0.1", r.ResolveIPv4(context.Background(), "127.0.0.1"))
}
