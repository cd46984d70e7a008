package cip

import (
	"fmt"
	"strconv"
	"strings"
)

// GenericRouterPath is appended when a family needs a connection but no
// path was given.
var GenericRouterPath = []byte{0x20, 0x02, 0x24, 0x01}

// Route is a parsed CIP connection path string.
type Route struct {
	Encoded []byte // final path bytes, padded to an even length
	IsDHP   bool
	DHPPort byte // 1 for channel A, 2 for channel B
	DHPSrc  byte
	DHPDest byte
}

// ParseRoutePath parses a CIP routing path string into its wire
// encoding:
//
//   - "N" (0..15) — backplane (port 1) link address N;
//   - "18,<ipv4>" / "19,<ipv4>" — extended port A/B with an ASCII IPv4
//     extended-length link address;
//   - "A:s:d" / "B:s:d" — a DH+ segment, valid only as the final hop.
//
// An empty path returns GenericRouterPath.
func ParseRoutePath(path string) (Route, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Route{Encoded: append([]byte(nil), GenericRouterPath...)}, nil
	}

	var encoded []byte
	hops := strings.Split(path, ",")
	for i := 0; i < len(hops); i++ {
		hop := strings.TrimSpace(hops[i])

		if seg, isDHP, route, consumed, err := tryParseDHPHop(hop); err != nil {
			return Route{}, err
		} else if consumed {
			if i != len(hops)-1 {
				return Route{}, fmt.Errorf("cip: DH+ segment %q must be the final hop", hop)
			}
			encoded = append(encoded, seg...)
			route.Encoded = padEven(encoded)
			route.IsDHP = isDHP
			return route, nil
		}

		n, err := strconv.Atoi(hop)
		if err != nil {
			return Route{}, fmt.Errorf("cip: invalid route hop %q: %w", hop, err)
		}

		switch {
		case n == 18 || n == 19:
			if i+1 >= len(hops) {
				return Route{}, fmt.Errorf("cip: extended port %d requires an IPv4 address hop", n)
			}
			ip := strings.TrimSpace(hops[i+1])
			i++
			encoded = append(encoded, encodeExtendedPort(byte(n), ip)...)
		case n >= 0 && n <= 15:
			encoded = append(encoded, 0x01, byte(n))
		default:
			return Route{}, fmt.Errorf("cip: route hop %d out of range 0-15 (or 18/19)", n)
		}
	}

	return Route{Encoded: padEven(encoded)}, nil
}

// tryParseDHPHop recognizes an "A:s:d" / "B:s:d" hop. consumed is false
// when hop doesn't match the DH+ shape at all.
func tryParseDHPHop(hop string) (segment []byte, isDHP bool, route Route, consumed bool, err error) {
	parts := strings.Split(hop, ":")
	if len(parts) != 3 {
		return nil, false, Route{}, false, nil
	}
	channel := strings.ToUpper(parts[0])
	var port byte
	switch channel {
	case "A":
		port = 1
	case "B":
		port = 2
	default:
		return nil, false, Route{}, false, nil
	}

	src, err1 := strconv.ParseUint(parts[1], 0, 8)
	dst, err2 := strconv.ParseUint(parts[2], 0, 8)
	if err1 != nil || err2 != nil {
		return nil, false, Route{}, false, fmt.Errorf("cip: invalid DH+ hop %q", hop)
	}

	seg := []byte{0x20, 0xA6, 0x24, port, 0x2C, 0x01}
	return seg, true, Route{DHPPort: port, DHPSrc: byte(src), DHPDest: byte(dst)}, true, nil
}

// encodeExtendedPort encodes an extended port segment (port >= 15) whose
// link address is the ASCII bytes of ip, length-prefixed per the CIP
// extended-link-address rule.
func encodeExtendedPort(port byte, ip string) []byte {
	linkLen := byte(len(ip))
	seg := make([]byte, 0, 4+len(ip)+1)
	seg = append(seg, 0x1F) // port segment extended (0x0F) | extended link address present (0x10)
	seg = append(seg, port, 0x00)
	seg = append(seg, linkLen)
	seg = append(seg, []byte(ip)...)
	if len(ip)%2 != 0 {
		seg = append(seg, 0x00)
	}
	return seg
}

func padEven(b []byte) []byte {
	if len(b)%2 != 0 {
		return append(b, 0x00)
	}
	return b
}
