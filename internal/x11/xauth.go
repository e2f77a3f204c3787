package x11

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Xauthority families, as in Xauth.h.
const (
	familyLocal = 256
	familyWild  = 65535
)

// MagicCookie is the only authorization protocol the connection speaks.
const MagicCookie = "MIT-MAGIC-COOKIE-1"

// ErrNoAuthority is returned when no Xauthority entry matches the display.
var ErrNoAuthority = errors.New("x11: no matching authority entry")

// Authority is one Xauthority record.
type Authority struct {
	Family  uint16
	Address string
	Number  string
	Name    string
	Data    []byte
}

// AuthorityPath returns $XAUTHORITY or ~/.Xauthority.
func AuthorityPath() (string, error) {
	if p := os.Getenv("XAUTHORITY"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate Xauthority: %w", err)
	}
	return filepath.Join(home, ".Xauthority"), nil
}

// ReadAuthorities parses every record in an Xauthority stream.
func ReadAuthorities(r io.Reader) ([]Authority, error) {
	br := bufio.NewReader(r)
	var out []Authority
	for {
		var a Authority
		if err := binary.Read(br, binary.BigEndian, &a.Family); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("read authority family: %w", err)
		}
		fields := make([][]byte, 4)
		for i := range fields {
			b, err := readCounted(br)
			if err != nil {
				return out, fmt.Errorf("read authority record: %w", err)
			}
			fields[i] = b
		}
		a.Address = string(fields[0])
		a.Number = string(fields[1])
		a.Name = string(fields[2])
		a.Data = fields[3]
		out = append(out, a)
	}
}

func readCounted(r io.Reader) ([]byte, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return b, nil
}

// FindAuthority picks the first record that matches host and display
// number. An empty host means the local machine.
func FindAuthority(records []Authority, host, number string) (Authority, error) {
	if host == "" || host == "localhost" {
		h, err := os.Hostname()
		if err != nil {
			return Authority{}, fmt.Errorf("hostname: %w", err)
		}
		host = h
	}
	for _, a := range records {
		addrMatch := a.Family == familyWild || (a.Family == familyLocal && a.Address == host)
		dispMatch := a.Number == "" || a.Number == number
		if addrMatch && dispMatch {
			return a, nil
		}
	}
	return Authority{}, fmt.Errorf("%w: %s:%s", ErrNoAuthority, host, number)
}

// LookupAuthority reads the user's Xauthority file and returns the cookie
// for d.
func LookupAuthority(d Display) (Authority, error) {
	path, err := AuthorityPath()
	if err != nil {
		return Authority{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Authority{}, fmt.Errorf("open Xauthority: %w", err)
	}
	defer f.Close()

	records, err := ReadAuthorities(f)
	if err != nil {
		return Authority{}, err
	}
	a, err := FindAuthority(records, d.Host, d.Number)
	if err != nil {
		return Authority{}, err
	}
	if a.Name != MagicCookie || len(a.Data) != 16 {
		return Authority{}, fmt.Errorf("unsupported auth protocol %q", a.Name)
	}
	return a, nil
}
