package compression

import (
	"container/heap"
	"fmt"
	"slices"

	"github.com/mrjoshuak/go-exrcore/internal/xdr"
)

// Canonical Huffman coding of 16-bit symbols for PIZ.
//
// Layout of an encoded stream (all integers little-endian uint32):
//
//	im, iM         smallest and largest symbol in the code table; iM is the
//	               run-length escape symbol, one above the largest data symbol
//	tableLength    bytes of packed code-length table that follow the header
//	nBits          number of meaningful bits in the code stream
//	reserved       zero
//	table          6-bit code lengths for symbols im..iM, MSB first, with
//	               zero-run codes 59..62 (runs of 2..5) and 63 + 8 bits
//	               (runs of 6..261)
//	code stream    symbol codes packed MSB first, zero padded to a byte
//
// A symbol repeated more than once may be sent as its code, the escape code
// and an 8-bit repeat count.

const (
	hufEncBits         = 6
	hufEncSize         = 1<<16 + 1
	hufMaxCodeLen      = 58
	hufShortZeroRun    = 59
	hufLongZeroRun     = 63
	hufShortestLongRun = 2 + hufLongZeroRun - hufShortZeroRun
	hufLongestLongRun  = 255 + hufShortestLongRun
	hufHeaderSize      = 20
	hufMaxRun          = 255
	hufTableBits       = 12
)

// HuffmanCompress encodes data. An empty input encodes to an empty output.
func HuffmanCompress(data []uint16) []byte {
	if len(data) == 0 {
		return nil
	}

	freq := make([]uint64, hufEncSize)
	for _, v := range data {
		freq[v]++
	}
	im := 0
	for freq[im] == 0 {
		im++
	}
	iM := 1<<16 - 1
	for freq[iM] == 0 {
		iM--
	}
	iM++ // run-length escape
	freq[iM] = 1
	rlc := iM

	lengths := buildCodeLengths(freq[im:iM+1], hufMaxCodeLen)
	codes := canonicalCodes(lengths)

	w := xdr.NewBufferWriter(hufHeaderSize + len(data))
	hdr := w.Reserve(hufHeaderSize)
	tableStart := w.Len()
	packCodeLengths(w, lengths)
	tableLength := w.Len() - tableStart

	var bw bitWriter
	bw.buf = w.Bytes()
	send := func(s int, run int) {
		sl := int(lengths[s-im])
		rl := int(lengths[rlc-im])
		if sl+rl+8 < sl*run {
			bw.write(codes[s-im], sl)
			bw.write(codes[rlc-im], rl)
			bw.write(uint64(run), 8)
			return
		}
		for ; run >= 0; run-- {
			bw.write(codes[s-im], sl)
		}
	}
	s := int(data[0])
	run := 0
	for _, v := range data[1:] {
		if int(v) == s && run < hufMaxRun {
			run++
			continue
		}
		send(s, run)
		s = int(v)
		run = 0
	}
	send(s, run)
	out := bw.flush()

	xdr.ByteOrder.PutUint32(out[hdr:], uint32(im))
	xdr.ByteOrder.PutUint32(out[hdr+4:], uint32(iM))
	xdr.ByteOrder.PutUint32(out[hdr+8:], uint32(tableLength))
	xdr.ByteOrder.PutUint32(out[hdr+12:], uint32(bw.nbits))
	xdr.ByteOrder.PutUint32(out[hdr+16:], 0)
	return out
}

// HuffmanDecompress decodes exactly n symbols from src.
func HuffmanDecompress(src []byte, n int) ([]uint16, error) {
	out := make([]uint16, n)
	if err := huffmanDecompressTo(src, out); err != nil {
		return nil, err
	}
	return out, nil
}

func huffmanDecompressTo(src []byte, out []uint16) error {
	if len(src) == 0 {
		if len(out) == 0 {
			return nil
		}
		return fmt.Errorf("%w: empty stream for %d symbols", ErrHuffmanTruncated, len(out))
	}

	r := xdr.NewReader(src)
	if r.Len() < hufHeaderSize {
		return fmt.Errorf("%w: short header", ErrHuffmanTruncated)
	}
	im, _ := r.ReadUint32()
	iM, _ := r.ReadUint32()
	tableLength, _ := r.ReadUint32()
	nBits, _ := r.ReadUint32()
	r.Skip(4)

	if im > iM || iM >= hufEncSize {
		return fmt.Errorf("%w: symbol range [%d, %d]", ErrHuffmanCorrupted, im, iM)
	}
	table, err := r.Next(int(tableLength))
	if err != nil {
		return fmt.Errorf("%w: code table of %d bytes", ErrHuffmanTruncated, tableLength)
	}
	lengths, err := unpackCodeLengths(table, int(iM-im)+1)
	if err != nil {
		return err
	}

	stream := r.Rest()
	if uint64(nBits) > uint64(len(stream))*8 {
		return fmt.Errorf("%w: %d bits declared, %d available", ErrHuffmanTruncated, nBits, len(stream)*8)
	}

	dec, err := newHuffmanDecoder(lengths, int(im))
	if err != nil {
		return err
	}
	return dec.decode(&bitReader{data: stream, limit: int(nBits)}, int(iM), out)
}

// buildCodeLengths returns optimal code lengths for freq, limited to maxLen.
// Symbols with zero frequency get length zero.
func buildCodeLengths(freq []uint64, maxLen int) []uint8 {
	lengths := make([]uint8, len(freq))

	nodes := make([]hufNode, 0, 2*len(freq))
	h := &nodeHeap{nodes: &nodes}
	for s, f := range freq {
		if f > 0 {
			nodes = append(nodes, hufNode{count: f, symbol: s, left: -1, right: -1})
			h.idx = append(h.idx, len(nodes)-1)
		}
	}
	switch len(h.idx) {
	case 0:
		return lengths
	case 1:
		lengths[nodes[h.idx[0]].symbol] = 1
		return lengths
	}

	heap.Init(h)
	for h.Len() > 1 {
		a := heap.Pop(h).(int)
		b := heap.Pop(h).(int)
		nodes = append(nodes, hufNode{count: nodes[a].count + nodes[b].count, symbol: -1, left: a, right: b})
		heap.Push(h, len(nodes)-1)
	}

	// depth of every leaf
	depth := make([]int, len(nodes))
	blCount := make([]int, 2*len(freq)+1)
	for i := len(nodes) - 1; i >= 0; i-- {
		nd := nodes[i]
		if nd.symbol >= 0 {
			blCount[depth[i]]++
			continue
		}
		depth[nd.left] = depth[i] + 1
		depth[nd.right] = depth[i] + 1
	}

	limitLengths(blCount, maxLen)

	// Hand out lengths: most frequent symbols get the shortest codes.
	order := make([]int, 0, len(freq))
	for s, f := range freq {
		if f > 0 {
			order = append(order, s)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case freq[a] > freq[b]:
			return -1
		case freq[a] < freq[b]:
			return 1
		}
		return 0
	})
	i := 0
	for l := 1; l <= maxLen && l < len(blCount); l++ {
		for k := 0; k < blCount[l]; k++ {
			lengths[order[i]] = uint8(l)
			i++
		}
	}
	return lengths
}

// limitLengths rebalances a length histogram so that no code is longer than
// maxLen while keeping the code complete.
func limitLengths(blCount []int, maxLen int) {
	for l := len(blCount) - 1; l > maxLen; l-- {
		for blCount[l] > 0 {
			j := l - 2
			for blCount[j] == 0 {
				j--
			}
			blCount[l] -= 2
			blCount[l-1]++
			blCount[j+1] += 2
			blCount[j]--
		}
	}
}

type hufNode struct {
	count       uint64
	symbol      int
	left, right int
}

// nodeHeap is a min-heap of node indices ordered by count, then by index.
type nodeHeap struct {
	idx   []int
	nodes *[]hufNode
}

func (h *nodeHeap) Len() int      { return len(h.idx) }
func (h *nodeHeap) Swap(i, j int) { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }
func (h *nodeHeap) Push(x any)    { h.idx = append(h.idx, x.(int)) }

func (h *nodeHeap) Less(i, j int) bool {
	a, b := h.idx[i], h.idx[j]
	ca, cb := (*h.nodes)[a].count, (*h.nodes)[b].count
	if ca != cb {
		return ca < cb
	}
	return a < b
}

func (h *nodeHeap) Pop() any {
	x := h.idx[len(h.idx)-1]
	h.idx = h.idx[:len(h.idx)-1]
	return x
}

// canonicalCodes assigns codes the way OpenEXR does: the longest codes
// take the smallest values, and within one length codes increase with the
// symbol value.
func canonicalCodes(lengths []uint8) []uint64 {
	var n [hufMaxCodeLen + 1]uint64
	for _, l := range lengths {
		n[l]++
	}
	var c uint64
	for i := hufMaxCodeLen; i > 0; i-- {
		nc := (c + n[i]) >> 1
		n[i] = c
		c = nc
	}
	codes := make([]uint64, len(lengths))
	for s, l := range lengths {
		if l > 0 {
			codes[s] = n[l]
			n[l]++
		}
	}
	return codes
}

func packCodeLengths(w *xdr.BufferWriter, lengths []uint8) {
	var bw bitWriter
	for i := 0; i < len(lengths); i++ {
		l := lengths[i]
		if l == 0 {
			run := 1
			for i+run < len(lengths) && lengths[i+run] == 0 && run < hufLongestLongRun {
				run++
			}
			if run >= 2 {
				if run >= hufShortestLongRun {
					bw.write(hufLongZeroRun, hufEncBits)
					bw.write(uint64(run-hufShortestLongRun), 8)
				} else {
					bw.write(uint64(hufShortZeroRun+run-2), hufEncBits)
				}
				i += run - 1
				continue
			}
		}
		bw.write(uint64(l), hufEncBits)
	}
	w.WriteBytes(bw.flush())
}

func unpackCodeLengths(table []byte, n int) ([]uint8, error) {
	lengths := make([]uint8, n)
	br := bitReader{data: table, limit: len(table) * 8}
	for i := 0; i < n; {
		l, ok := br.read(hufEncBits)
		if !ok {
			return nil, fmt.Errorf("%w: code table ends at symbol %d of %d", ErrHuffmanTruncated, i, n)
		}
		run := 0
		switch {
		case l == hufLongZeroRun:
			c, ok := br.read(8)
			if !ok {
				return nil, fmt.Errorf("%w: code table ends inside a zero run", ErrHuffmanTruncated)
			}
			run = int(c) + hufShortestLongRun
		case l >= hufShortZeroRun:
			run = int(l) - hufShortZeroRun + 2
		default:
			lengths[i] = uint8(l)
			i++
			continue
		}
		if i+run > n {
			return nil, fmt.Errorf("%w: zero run of %d past end of table", ErrHuffmanCorrupted, run)
		}
		i += run
	}
	return lengths, nil
}

// huffmanDecoder decodes canonical codes with a direct table for short codes
// and a per-length walk for the rest.
type huffmanDecoder struct {
	base   int                       // symbol value of lengths[0]
	first  [hufMaxCodeLen + 2]uint64 // first code of each length
	count  [hufMaxCodeLen + 2]uint64
	offset [hufMaxCodeLen + 2]int // index into sorted of the first symbol of each length
	sorted []int                  // symbol indices ordered by (length, symbol)
	table  []hufEntry
}

type hufEntry struct {
	symbol int32
	length uint8
}

func newHuffmanDecoder(lengths []uint8, base int) (*huffmanDecoder, error) {
	d := &huffmanDecoder{base: base}

	// Kraft sum in units of 2^-hufMaxCodeLen must be exactly 1.
	var kraft uint64
	for _, l := range lengths {
		if l == 0 {
			continue
		}
		if l > hufMaxCodeLen {
			return nil, fmt.Errorf("%w: code length %d", ErrHuffmanCorrupted, l)
		}
		kraft += 1 << (hufMaxCodeLen - uint(l))
		d.count[l]++
	}
	if kraft != 1<<hufMaxCodeLen {
		return nil, fmt.Errorf("%w: inconsistent code lengths", ErrHuffmanCorrupted)
	}

	codes := canonicalCodes(lengths)
	for l := 1; l <= hufMaxCodeLen; l++ {
		d.offset[l+1] = d.offset[l] + int(d.count[l])
	}
	d.sorted = make([]int, d.offset[hufMaxCodeLen+1])
	fill := d.offset
	for s, l := range lengths {
		if l == 0 {
			continue
		}
		if fill[l] == d.offset[l] {
			d.first[l] = codes[s]
		}
		d.sorted[fill[l]] = s
		fill[l]++
	}

	d.table = make([]hufEntry, 1<<hufTableBits)
	for s, l := range lengths {
		if l == 0 || l > hufTableBits {
			continue
		}
		shift := hufTableBits - int(l)
		start := codes[s] << shift
		for k := uint64(0); k < 1<<shift; k++ {
			d.table[start+k] = hufEntry{symbol: int32(s), length: l}
		}
	}
	return d, nil
}

// symbol decodes one symbol index relative to base.
func (d *huffmanDecoder) symbol(br *bitReader) (int, error) {
	if br.remaining() >= hufTableBits {
		e := d.table[br.peek(hufTableBits)]
		if e.length > 0 {
			br.skip(int(e.length))
			return int(e.symbol), nil
		}
	}
	var code uint64
	for l := 1; l <= hufMaxCodeLen; l++ {
		bit, ok := br.read(1)
		if !ok {
			return 0, fmt.Errorf("%w: code stream ends inside a symbol", ErrHuffmanTruncated)
		}
		code = code<<1 | bit
		if d.count[l] > 0 && code >= d.first[l] && code-d.first[l] < d.count[l] {
			return d.sorted[d.offset[l]+int(code-d.first[l])], nil
		}
	}
	return 0, fmt.Errorf("%w: invalid code", ErrHuffmanCorrupted)
}

func (d *huffmanDecoder) decode(br *bitReader, rlc int, out []uint16) error {
	n := 0
	for n < len(out) {
		idx, err := d.symbol(br)
		if err != nil {
			return err
		}
		s := idx + d.base
		if s == rlc {
			if n == 0 {
				return fmt.Errorf("%w: run before first symbol", ErrHuffmanCorrupted)
			}
			run, ok := br.read(8)
			if !ok {
				return fmt.Errorf("%w: code stream ends inside a run", ErrHuffmanTruncated)
			}
			if n+int(run) > len(out) {
				return fmt.Errorf("%w: run of %d overflows output", ErrHuffmanCorrupted, run)
			}
			prev := out[n-1]
			for k := 0; k < int(run); k++ {
				out[n] = prev
				n++
			}
			continue
		}
		if s > 0xffff {
			return fmt.Errorf("%w: symbol %d out of range", ErrHuffmanCorrupted, s)
		}
		out[n] = uint16(s)
		n++
	}
	if br.remaining() != 0 {
		return fmt.Errorf("%w: %d bits left after final symbol", ErrHuffmanCorrupted, br.remaining())
	}
	if !br.paddingZero() {
		return fmt.Errorf("%w: non-zero padding bits", ErrHuffmanCorrupted)
	}
	return nil
}

// bitWriter packs bits MSB first.
type bitWriter struct {
	buf   []byte
	acc   uint64
	nacc  int
	nbits int
}

func (w *bitWriter) write(v uint64, n int) {
	if n > 32 {
		w.write(v>>32, n-32)
		n = 32
	}
	w.acc = w.acc<<uint(n) | (v & (1<<uint(n) - 1))
	w.nacc += n
	w.nbits += n
	for w.nacc >= 8 {
		w.nacc -= 8
		w.buf = append(w.buf, byte(w.acc>>uint(w.nacc)))
	}
}

func (w *bitWriter) flush() []byte {
	if w.nacc > 0 {
		w.buf = append(w.buf, byte(w.acc<<uint(8-w.nacc)))
		w.nacc = 0
	}
	return w.buf
}

// bitReader reads bits MSB first. It never reads beyond limit bits; every
// read reports whether enough bits remained.
type bitReader struct {
	data  []byte
	pos   int
	limit int
}

func (r *bitReader) remaining() int { return r.limit - r.pos }

func (r *bitReader) peek(n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		p := r.pos + i
		v = v<<1 | uint64(r.data[p>>3]>>(7-uint(p&7))&1)
	}
	return v
}

func (r *bitReader) skip(n int) { r.pos += n }

func (r *bitReader) read(n int) (uint64, bool) {
	if n > r.remaining() {
		return 0, false
	}
	v := r.peek(n)
	r.pos += n
	return v, true
}

// paddingZero reports whether all bits after limit in the final byte are zero.
func (r *bitReader) paddingZero() bool {
	if r.limit&7 == 0 {
		return true
	}
	last := r.data[r.limit>>3]
	return last&(0xff>>uint(r.limit&7)) == 0
}
