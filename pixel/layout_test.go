package pixel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSubsampledVisit(t *testing.T) {
	ch := Channel{Name: "Y", Type: Half, XSampling: 2, YSampling: 2}
	l := MustLayout(Rect{Width: 4, Height: 4}, []Channel{ch})

	var got [][2]int
	for s := range l.Samples() {
		got = append(got, [2]int{s.X, s.Y})
	}
	want := [][2]int{{0, 0}, {2, 0}, {0, 2}, {2, 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("visited samples mismatch (-want +got):\n%s", diff)
	}
	if l.RawSize() != 8 {
		t.Errorf("RawSize = %d, want 8", l.RawSize())
	}
}

func TestNumSamples(t *testing.T) {
	tests := []struct {
		s, a, b, want int
	}{
		{1, 0, 9, 10},
		{2, 0, 3, 2},
		{2, 1, 4, 2},
		{2, 1, 1, 0},
		{3, -5, 5, 3},
		{2, -3, -1, 1},
		{4, 5, 4, 0},
	}
	for _, tt := range tests {
		if got := NumSamples(tt.s, tt.a, tt.b); got != tt.want {
			t.Errorf("NumSamples(%d, %d, %d) = %d, want %d", tt.s, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestHasSampleNegativeCoordinates(t *testing.T) {
	ch := Channel{Name: "C", Type: Float, XSampling: 2, YSampling: 3}
	if !ch.HasSample(-2, -3) {
		t.Error("(-2,-3) should hold a sample")
	}
	if ch.HasSample(-1, 0) {
		t.Error("(-1,0) should not hold a sample")
	}
}

func TestSectionsOrderAndOffsets(t *testing.T) {
	chs := []Channel{
		NewChannel("R", Half),
		NewChannel("A", Float),
		{Name: "BY", Type: Half, XSampling: 2, YSampling: 2},
	}
	l := MustLayout(Rect{X: 1, Y: 1, Width: 3, Height: 2}, chs)

	// Sorted: A, BY, R. BY only has samples on even rows/columns.
	var got []Section
	for s := range l.Sections() {
		got = append(got, s)
	}
	want := []Section{
		{Channel: 0, Y: 1, X: 1, Count: 3, Offset: 0, Size: 12},
		{Channel: 2, Y: 1, X: 1, Count: 3, Offset: 12, Size: 6},
		{Channel: 0, Y: 2, X: 1, Count: 3, Offset: 18, Size: 12},
		{Channel: 1, Y: 2, X: 2, Count: 1, Offset: 30, Size: 2},
		{Channel: 2, Y: 2, X: 1, Count: 3, Offset: 32, Size: 6},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
	if l.RawSize() != 38 {
		t.Errorf("RawSize = %d, want 38", l.RawSize())
	}
}

func TestSectionsRestartable(t *testing.T) {
	l := MustLayout(Rect{Width: 5, Height: 3}, []Channel{NewChannel("G", Half)})
	count := func() int {
		n := 0
		for range l.Sections() {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 3 || b != 3 {
		t.Errorf("section counts = %d, %d; want 3, 3", a, b)
	}
}

func TestPlanesRoundTrip(t *testing.T) {
	chs := []Channel{
		NewChannel("B", Half),
		{Name: "C", Type: Uint, XSampling: 2, YSampling: 1},
		NewChannel("A", Float),
	}
	l := MustLayout(Rect{Width: 7, Height: 5}, chs)
	buf := make([]byte, l.RawSize())
	for i := range buf {
		buf[i] = byte(i * 7)
	}
	planes, err := l.Planes(buf)
	if err != nil {
		t.Fatal(err)
	}
	for c := range planes {
		if len(planes[c]) != l.PlaneSize(c) {
			t.Errorf("plane %d: %d bytes, want %d", c, len(planes[c]), l.PlaneSize(c))
		}
	}
	back, err := l.JoinPlanes(planes)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, buf) {
		t.Error("JoinPlanes(Planes(buf)) != buf")
	}
}

func TestLinesAreBounded(t *testing.T) {
	l := MustLayout(Rect{Width: 2, Height: 2}, []Channel{NewChannel("Z", Half)})
	buf := make([]byte, l.RawSize())
	lines, err := l.NewLines(buf)
	if err != nil {
		t.Fatal(err)
	}
	if lines.Len() != 2 {
		t.Fatalf("Len = %d, want 2", lines.Len())
	}
	first := lines.Line(0)
	if cap(first) != 4 {
		t.Errorf("cap(line 0) = %d, want 4", cap(first))
	}
	_ = append(first, 0xff)
	if buf[4] != 0 {
		t.Error("append to line 0 overwrote line 1")
	}
}

func TestLayoutValidation(t *testing.T) {
	tests := []struct {
		name string
		chs  []Channel
		want error
	}{
		{"empty name", []Channel{{Type: Half, XSampling: 1, YSampling: 1}}, ErrEmptyName},
		{"bad sampling", []Channel{{Name: "R", Type: Half}}, ErrInvalidSampling},
		{"bad type", []Channel{{Name: "R", Type: Type(9), XSampling: 1, YSampling: 1}}, ErrInvalidType},
		{"duplicate", []Channel{NewChannel("R", Half), NewChannel("R", Float)}, ErrDuplicateName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLayout(Rect{Width: 1, Height: 1}, tt.chs)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := NewLayout(Rect{Width: -1, Height: 1}, nil); !errors.Is(err, ErrInvalidRect) {
		t.Errorf("negative width: err = %v, want ErrInvalidRect", err)
	}
}

func TestEmptyRect(t *testing.T) {
	l := MustLayout(Rect{}, []Channel{NewChannel("R", Half)})
	if l.RawSize() != 0 {
		t.Errorf("RawSize = %d, want 0", l.RawSize())
	}
	for range l.Sections() {
		t.Fatal("empty layout yielded a section")
	}
}
