package netutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var (
	ErrBindAddrInUse = errors.New("sniffer bind address in use")
	ErrNoBindAddr    = errors.New("no available sniffer bind address")
)

// SelectBindAddr returns preferred when it is free, otherwise the first free
// candidate if autoFallback is set. Candidates may be full host:port pairs or
// bare ports, which take the host of preferred.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		ok, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("%w: %s", ErrBindAddrInUse, preferred)
		}
	}

	host := ""
	if preferred != "" {
		if h, _, err := net.SplitHostPort(preferred); err == nil {
			host = h
		}
	}
	for _, candidate := range candidates {
		addr := ResolveCandidate(host, candidate)
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
	}

	return "", ErrNoBindAddr
}

// ResolveCandidate expands a bare port ("8191") into host:port.
func ResolveCandidate(host, candidate string) string {
	if _, err := strconv.Atoi(candidate); err == nil {
		return net.JoinHostPort(host, candidate)
	}
	return candidate
}

// IsAddrAvailable reports whether addr can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
