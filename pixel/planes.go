package pixel

import "fmt"

// Lines gives bounded, index-based access to the scanline sections of a block
// buffer. Each returned line is capacity-limited so that appending to it can
// never spill into the neighbouring section.
type Lines struct {
	buf      []byte
	sections []Section
}

// NewLines indexes buf according to the layout.
func (l Layout) NewLines(buf []byte) (*Lines, error) {
	if len(buf) != l.size {
		return nil, fmt.Errorf("%w: got %d bytes, layout needs %d", ErrBufferSize, len(buf), l.size)
	}
	ls := &Lines{buf: buf}
	for s := range l.Sections() {
		ls.sections = append(ls.sections, s)
	}
	return ls, nil
}

// Len returns the number of sections.
func (ls *Lines) Len() int { return len(ls.sections) }

// Section returns the description of line i.
func (ls *Lines) Section(i int) Section { return ls.sections[i] }

// Line returns the bytes of line i.
func (ls *Lines) Line(i int) []byte {
	s := ls.sections[i]
	return ls.buf[s.Offset : s.Offset+s.Size : s.Offset+s.Size]
}

// Planes splits a block buffer into one contiguous plane per channel, each
// holding that channel's samples row by row. The block buffer is not modified.
func (l Layout) Planes(buf []byte) ([][]byte, error) {
	if len(buf) != l.size {
		return nil, fmt.Errorf("%w: got %d bytes, layout needs %d", ErrBufferSize, len(buf), l.size)
	}
	planes := make([][]byte, len(l.channels))
	for c := range planes {
		planes[c] = make([]byte, 0, l.PlaneSize(c))
	}
	for s := range l.Sections() {
		planes[s.Channel] = append(planes[s.Channel], buf[s.Offset:s.Offset+s.Size]...)
	}
	return planes, nil
}

// JoinPlanes is the inverse of Planes: it interleaves per-channel planes back
// into block storage order.
func (l Layout) JoinPlanes(planes [][]byte) ([]byte, error) {
	if len(planes) != len(l.channels) {
		return nil, fmt.Errorf("%w: got %d planes for %d channels", ErrBufferSize, len(planes), len(l.channels))
	}
	for c, p := range planes {
		if len(p) != l.PlaneSize(c) {
			return nil, fmt.Errorf("%w: plane %q has %d bytes, want %d", ErrBufferSize, l.channels[c].Name, len(p), l.PlaneSize(c))
		}
	}
	out := make([]byte, l.size)
	pos := make([]int, len(planes))
	for s := range l.Sections() {
		copy(out[s.Offset:s.Offset+s.Size], planes[s.Channel][pos[s.Channel]:])
		pos[s.Channel] += s.Size
	}
	return out, nil
}
