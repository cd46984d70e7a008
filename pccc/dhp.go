package pccc

import "fmt"

// RouteDHP identifies a DH+ bridge route: the destination node on the
// far side of a DH+ link and the source node this session appears as.
type RouteDHP struct {
	DestLink byte
	DestNode byte
	SrcLink  byte
	SrcNode  byte
}

// WrapDHP prepends the DH+ routing word pair ahead of a PCCC frame
// destined for a node reached through a DH+ bridge (e.g. a ControlLogix
// acting as a gateway to a PLC-5 on DH+).
func WrapDHP(route RouteDHP, frame []byte) []byte {
	buf := make([]byte, 0, 4+len(frame))
	buf = append(buf, route.DestLink, route.DestNode, route.SrcLink, route.SrcNode)
	buf = append(buf, frame...)
	return buf
}

// UnwrapDHP strips the DH+ routing word pair from a received frame.
func UnwrapDHP(raw []byte) (RouteDHP, []byte, error) {
	if len(raw) < 4 {
		return RouteDHP{}, nil, fmt.Errorf("pccc: truncated DH+ routing header")
	}
	route := RouteDHP{
		DestLink: raw[0],
		DestNode: raw[1],
		SrcLink:  raw[2],
		SrcNode:  raw[3],
	}
	return route, raw[4:], nil
}

// TNSGenerator produces monotonically increasing, wrapping, non-zero
// transaction sequence numbers for matching PCCC requests to replies.
type TNSGenerator struct {
	next uint16
}

// NewTNSGenerator returns a generator starting at 1.
func NewTNSGenerator() *TNSGenerator {
	return &TNSGenerator{next: 1}
}

// Next returns the next TNS value, skipping zero on wraparound.
func (g *TNSGenerator) Next() uint16 {
	v := g.next
	g.next++
	if g.next == 0 {
		g.next = 1
	}
	return v
}
