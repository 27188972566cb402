package difficulty

import (
	"errors"
	"testing"
	"time"

	"powtoken/internal/digest"
)

func mustDigestHex(t *testing.T, s string) digest.Digest {
	t.Helper()
	d, err := digest.Parse(s)
	if err != nil {
		t.Fatalf("parse digest %q: %v", s, err)
	}
	return d
}

func TestRetarget_IdentityAtExpectedWindow(t *testing.T) {
	old := MustParse("0000000000000000000000000000000000000000000000000000000000001234")

	got := old.Retarget(100*time.Second, 100*time.Second)
	if !got.Equal(old) {
		t.Fatalf("target mismatch: got=%s want=%s", got, old)
	}
}

func TestRetarget_Proportional(t *testing.T) {
	old := MustParse("1000") // 4096

	slower := old.Retarget(200*time.Second, 100*time.Second)
	if want := MustParse("2000"); !slower.Equal(want) {
		t.Errorf("slower window: got=%s want=%s", slower.Decimal(), want.Decimal())
	}

	faster := old.Retarget(50*time.Second, 100*time.Second)
	if want := MustParse("0800"); !faster.Equal(want) {
		t.Errorf("faster window: got=%s want=%s", faster.Decimal(), want.Decimal())
	}
}

func TestRetarget_LowerClamp(t *testing.T) {
	old := MustParse("1000") // 4096

	got := old.Retarget(0, 100*time.Second)
	if want := MustParse("0400"); !got.Equal(want) { // 1024
		t.Fatalf("target mismatch: got=%s want=%s", got.Decimal(), want.Decimal())
	}
}

func TestRetarget_UpperClamp(t *testing.T) {
	old := MustParse("1000") // 4096

	got := old.Retarget(10*time.Hour, time.Hour)
	if want := MustParse("4000"); !got.Equal(want) { // 16384
		t.Fatalf("target mismatch: got=%s want=%s", got.Decimal(), want.Decimal())
	}
}

func TestRetarget_SaturatesAtMax(t *testing.T) {
	got := Max().Retarget(10*time.Hour, time.Hour)
	if !got.Equal(Max()) {
		t.Fatalf("expected saturation at max, got %s", got)
	}

	near, err := FromLeadingZeroBits(1)
	if err != nil {
		t.Fatalf("FromLeadingZeroBits: %v", err)
	}
	got = near.Retarget(10*time.Hour, time.Hour)
	if !got.Equal(Max()) {
		t.Fatalf("expected saturation at max, got %s", got)
	}
}

func TestRetarget_NeverBelowOne(t *testing.T) {
	one, err := FromUint64(1)
	if err != nil {
		t.Fatalf("FromUint64: %v", err)
	}
	got := one.Retarget(time.Millisecond, time.Hour)
	if !got.Equal(one) {
		t.Fatalf("got %s, want 1", got.Decimal())
	}
}

func TestRetarget_NonPositiveExpectedIsNoop(t *testing.T) {
	old := MustParse("1234")
	if got := old.Retarget(time.Hour, 0); !got.Equal(old) {
		t.Fatalf("got %s, want unchanged %s", got, old)
	}
}

func TestAccepts_StrictLess(t *testing.T) {
	target := MustParse("00000000ffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	equal := mustDigestHex(t, "00000000ffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	if target.Accepts(equal) {
		t.Error("digest equal to target must be rejected")
	}

	below := mustDigestHex(t, "00000000fffffffffffffffffffffffffffffffffffffffffffffffffffffffe")
	if !target.Accepts(below) {
		t.Error("digest below target must be accepted")
	}

	above := mustDigestHex(t, "0000000100000000000000000000000000000000000000000000000000000000")
	if target.Accepts(above) {
		t.Error("digest above target must be rejected")
	}
}

func TestAccepts_ComparesFullWidth(t *testing.T) {
	// Low bytes decide when the high bytes tie.
	target := MustParse("0100")
	if !target.Accepts(mustDigestHex(t, "00000000000000000000000000000000000000000000000000000000000000ff")) {
		t.Error("0xff < 0x100 must be accepted")
	}
	if target.Accepts(mustDigestHex(t, "0000000000000000000000000000000000000000000000000000000000000100")) {
		t.Error("0x100 == target must be rejected")
	}
}

func TestDigits_FixedWidthBigEndian(t *testing.T) {
	target := MustParse("0102")
	digits := target.Digits()

	if len(digits) != digest.Size {
		t.Fatalf("len(Digits()) = %d, want %d", len(digits), digest.Size)
	}
	for i := 0; i < digest.Size-2; i++ {
		if digits[i] != 0 {
			t.Fatalf("digit %d = %d, want 0", i, digits[i])
		}
	}
	if digits[30] != 0x01 || digits[31] != 0x02 {
		t.Errorf("low digits = %x %x, want 01 02", digits[30], digits[31])
	}

	back, err := FromBytes(digits[:])
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if !back.Equal(target) {
		t.Errorf("FromBytes(Digits()) = %s, want %s", back, target)
	}
}

func TestFromLeadingZeroBits(t *testing.T) {
	target, err := FromLeadingZeroBits(16)
	if err != nil {
		t.Fatalf("FromLeadingZeroBits: %v", err)
	}
	if target.LeadingZeroBits() != 16 {
		t.Errorf("LeadingZeroBits() = %d, want 16", target.LeadingZeroBits())
	}
	if got := target.String()[:6]; got != "0000ff" {
		t.Errorf("prefix = %s, want 0000ff", got)
	}

	if _, err := FromLeadingZeroBits(256); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Expected ErrInvalidTarget, got %v", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"",
		"00",
		"xyz",
		"01" + "0000000000000000000000000000000000000000000000000000000000000000",
	}
	for _, c := range cases {
		if _, err := Parse(c); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("Parse(%q): expected ErrInvalidTarget, got %v", c, err)
		}
	}
}

func TestTarget_TextRoundTrip(t *testing.T) {
	target := MustParse("0x00ffee")
	text, err := target.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if len(text) != 64 {
		t.Errorf("text length = %d, want 64", len(text))
	}

	var back Target
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if !back.Equal(target) {
		t.Errorf("round trip = %s, want %s", back, target)
	}
	if target.Decimal() != "65518" {
		t.Errorf("Decimal() = %s, want 65518", target.Decimal())
	}
}
