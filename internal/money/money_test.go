package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1.005", "1.01"},
		{"2.344", "2.34"},
		{"-1.005", "-1.01"},
		{"10", "10"},
	}
	for _, tt := range tests {
		got := Round(decimal.RequireFromString(tt.in))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Round(%s): got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(200), decimal.NewFromInt(10))
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected 20, got %s", got)
	}
}

func TestFormatAndParse(t *testing.T) {
	if got := Format(decimal.NewFromInt(220)); got != "220.00" {
		t.Fatalf("expected 220.00, got %s", got)
	}

	d, err := Parse(" 12.5 ")
	if err != nil || !d.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected 12.5, got %s (%v)", d, err)
	}

	d, err = Parse("")
	if err != nil || !d.IsZero() {
		t.Fatalf("expected zero for empty input, got %s (%v)", d, err)
	}

	if _, err := Parse("abc"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got: %v", err)
	}
}

func TestSumAndNonNegative(t *testing.T) {
	total := Sum(decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(-5))
	if !total.Equal(decimal.NewFromInt(-2)) {
		t.Fatalf("expected -2, got %s", total)
	}
	if !NonNegative(total).IsZero() {
		t.Fatalf("expected 0, got %s", NonNegative(total))
	}
}
