// Package trace builds synthetic IPv4+TCP packet traces for rohcsim's
// demo scenarios. It has no dependency on the compressor itself -- it
// only produces the raw wire bytes rohctcp.Create/Encode consume.
package trace

import "encoding/binary"

// Generator builds n packets with the given steady-state payload size.
type Generator func(n, payload int) [][]byte

// Scenario looks up a named trace generator.
func Scenario(name string) (Generator, bool) {
	g, ok := generators[name]
	return g, ok
}

var generators = map[string]Generator{
	"steady":        steady,
	"ecn":           ecn,
	"ttl-change":    ttlChange,
	"options-churn": optionsChurn,
}

func packet(seq, ack uint32, ipid uint16, ttl uint8, window uint16, flags byte, payload int, opts []byte) []byte {
	optLen := len(opts)
	for optLen%4 != 0 {
		opts = append(opts, 0x01) // NOP pad
		optLen++
	}
	hdrLen := 20 + optLen
	buf := make([]byte, 20+hdrLen+payload)

	buf[0] = 0x45
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)))
	binary.BigEndian.PutUint16(buf[4:6], ipid)
	buf[8] = ttl
	buf[9] = 6 // TCP
	copy(buf[12:16], []byte{10, 0, 0, 1})
	copy(buf[16:20], []byte{10, 0, 0, 2})

	tcp := buf[20:]
	binary.BigEndian.PutUint16(tcp[0:2], 1234)
	binary.BigEndian.PutUint16(tcp[2:4], 80)
	binary.BigEndian.PutUint32(tcp[4:8], seq)
	binary.BigEndian.PutUint32(tcp[8:12], ack)
	tcp[12] = byte(hdrLen/4) << 4
	tcp[13] = flags
	binary.BigEndian.PutUint16(tcp[14:16], window)
	copy(tcp[20:20+optLen], opts)

	return buf
}

func steady(n, payload int) [][]byte {
	pkts := make([][]byte, 0, n)
	var seq, ack uint32 = 1000, 2000
	for i := 0; i < n; i++ {
		pkts = append(pkts, packet(seq, ack, uint16(100+i), 64, 8192, 0x10, payload, nil))
		seq += uint32(payload)
	}
	return pkts
}

func ecn(n, payload int) [][]byte {
	pkts := make([][]byte, 0, n)
	var seq, ack uint32 = 1000, 2000
	for i := 0; i < n; i++ {
		flags := byte(0x10)
		if i%3 == 0 {
			flags |= 0x40 // ECE
		}
		pkts = append(pkts, packet(seq, ack, uint16(500+i), 64, 8192, flags, payload, nil))
		seq += uint32(payload)
	}
	return pkts
}

func ttlChange(n, payload int) [][]byte {
	pkts := make([][]byte, 0, n)
	var seq, ack uint32 = 1000, 2000
	for i := 0; i < n; i++ {
		ttl := uint8(64)
		if i == n/2 {
			ttl = 32 // mid-stream TTL change forces co_common's irregular flag
		}
		pkts = append(pkts, packet(seq, ack, uint16(200+i), ttl, 8192, 0x10, payload, nil))
		seq += uint32(payload)
	}
	return pkts
}

func optionsChurn(n, payload int) [][]byte {
	pkts := make([][]byte, 0, n)
	var seq, ack uint32 = 1000, 2000
	for i := 0; i < n; i++ {
		ts := make([]byte, 10)
		ts[0], ts[1] = 8, 10 // kind=TIMESTAMP, len=10
		binary.BigEndian.PutUint32(ts[2:6], uint32(i*10))
		binary.BigEndian.PutUint32(ts[6:10], 0)
		pkts = append(pkts, packet(seq, ack, uint16(300+i), 64, 8192, 0x10, payload, ts))
		seq += uint32(payload)
	}
	return pkts
}
