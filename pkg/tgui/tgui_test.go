package tgui

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		scope, action, payload string
		want                   string
	}{
		{"rem", "cancel", "", "rem:cancel"},
		{"rem", "month", "2030-06", "rem:month:2030-06"},
		{"rem", "day", "2030:06:01", "rem:day:2030:06:01"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			got := Data(tt.scope, tt.action, tt.payload)
			if got != tt.want {
				t.Fatalf("Data = %q, want %q", got, tt.want)
			}
			s, a, p, ok := ParseData(got)
			if !ok || s != tt.scope || a != tt.action || p != tt.payload {
				t.Fatalf("ParseData(%q) = %q %q %q %v", got, s, a, p, ok)
			}
		})
	}
}

func TestParseDataRejectsBare(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "rem", ":x", "rem:"} {
		if _, _, _, ok := ParseData(in); ok {
			t.Fatalf("ParseData(%q) accepted", in)
		}
	}
}

func TestCheckData(t *testing.T) {
	t.Parallel()
	if _, err := CheckData(strings.Repeat("x", MaxCallbackDataLen)); err != nil {
		t.Fatalf("limit rejected: %v", err)
	}
	if _, err := CheckData(strings.Repeat("x", MaxCallbackDataLen+1)); err != ErrCallbackDataTooLong {
		t.Fatalf("err = %v", err)
	}
}

func TestPaginate(t *testing.T) {
	t.Parallel()
	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		index, size int
		want        []int
		prev, next  bool
		label       string
	}{
		{0, 2, []int{1, 2}, false, true, "1/3"},
		{2, 2, []int{5}, true, false, "3/3"},
		{9, 2, []int{5}, true, false, "3/3"},
		{-1, 10, []int{1, 2, 3, 4, 5}, false, false, "1/1"},
	}
	for _, tt := range tests {
		p := Paginate(items, tt.index, tt.size)
		if len(p.Items) != len(tt.want) || p.Items[0] != tt.want[0] || p.HasPrev != tt.prev || p.HasNext != tt.next || p.Label() != tt.label {
			t.Fatalf("Paginate(%d,%d) = %+v", tt.index, tt.size, p)
		}
	}
	if p := Paginate([]int(nil), 0, 5); len(p.Items) != 0 || p.Pages != 1 {
		t.Fatalf("empty = %+v", p)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hell…"},
		{"привет", 3, "пр…"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncRunes(tt.in, tt.n); got != tt.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestInlineGrid(t *testing.T) {
	t.Parallel()
	kb := NewInline().Grid(3, []tele.Btn{Btn("1", "a"), Btn("2", "b"), Btn("3", "c"), Btn("4", "d")})
	if kb.Len() != 2 {
		t.Fatalf("rows = %d", kb.Len())
	}
	if got := len(kb.Markup().InlineKeyboard); got != 2 {
		t.Fatalf("markup rows = %d", got)
	}
}
