package gtkserver

import (
	"bytes"
	"testing"
)

func TestCAtoi(t *testing.T) {
	tests := map[string]int64{
		"42":       42,
		"  -12abc": -12,
		"+7":       7,
		"":         0,
		"abc":      0,
		"3.9":      3,
	}
	for in, expected := range tests {
		if got := CAtoi(in); got != expected {
			t.Errorf("CAtoi(%q): expected %d, got %d", in, expected, got)
		}
	}
}

func TestCAtof(t *testing.T) {
	if got := CAtof("1.5px"); got != 1.5 {
		t.Errorf("Expected 1.5, got %v", got)
	}
	if got := CAtof(" -0.25 "); got != -0.25 {
		t.Errorf("Expected -0.25, got %v", got)
	}
	if got := CAtof("none"); got != 0 {
		t.Errorf("Expected 0, got %v", got)
	}
}

func TestCStrtol(t *testing.T) {
	tests := map[string]int64{"12": 12, "0x1F": 31, "010": 8, "-3": -3}
	for in, expected := range tests {
		got, err := CStrtol(in)
		if err != nil {
			t.Errorf("CStrtol(%q) failed: %v", in, err)
			continue
		}
		if got != expected {
			t.Errorf("CStrtol(%q): expected %d, got %d", in, expected, got)
		}
	}
	if _, err := CStrtol("zz"); err == nil {
		t.Error("Expected an error for non-numeric input")
	}
}

func TestDecodeBase64(t *testing.T) {
	expected := []byte{1, 0, 0, 0, 2, 0, 0, 0}

	t.Run("Padded", func(t *testing.T) {
		if got := DecodeBase64("AQAAAAIAAAA="); !bytes.Equal(got, expected) {
			t.Errorf("Expected %v, got %v", expected, got)
		}
	})

	t.Run("Junk characters are skipped", func(t *testing.T) {
		if got := DecodeBase64("AQAA AAIA\nAAA"); !bytes.Equal(got, expected) {
			t.Errorf("Expected %v, got %v", expected, got)
		}
	})

	t.Run("Dangling sextet is dropped", func(t *testing.T) {
		if got := DecodeBase64("AQAAA"); !bytes.Equal(got, []byte{1, 0, 0}) {
			t.Errorf("Expected [1 0 0], got %v", got)
		}
	})

	t.Run("Encode matches", func(t *testing.T) {
		if got := EncodeBase64(expected); got != "AQAAAAIAAAA=" {
			t.Errorf("Expected AQAAAAIAAAA=, got %s", got)
		}
	})
}

func TestFormatSize(t *testing.T) {
	tests := map[string]int{
		"%i%d%c": 13,
		"%s%s":   4,
		"ild":    20,
		"%f":     4,
	}
	for format, expected := range tests {
		got, err := FormatSize(format)
		if err != nil {
			t.Errorf("FormatSize(%q) failed: %v", format, err)
			continue
		}
		if got != expected {
			t.Errorf("FormatSize(%q): expected %d, got %d", format, expected, got)
		}
	}

	if _, err := FormatSize("%q"); err == nil {
		t.Error("Expected an error for an unknown type letter")
	}
	if _, err := FormatSize(""); err == nil {
		t.Error("Expected an error for an empty format")
	}
}

func TestPackUnpack(t *testing.T) {
	t.Run("Two ints", func(t *testing.T) {
		packed, err := Pack("%i%i", []string{"1", "2"})
		if err != nil {
			t.Fatalf("Pack failed: %v", err)
		}
		if packed != "AQAAAAIAAAA=" {
			t.Errorf("Expected AQAAAAIAAAA=, got %s", packed)
		}
		out, err := Unpack("%i%i", packed)
		if err != nil {
			t.Fatalf("Unpack failed: %v", err)
		}
		if out != "1 2" {
			t.Errorf("Expected \"1 2\", got %q", out)
		}
	})

	t.Run("Mixed widths keep their sign", func(t *testing.T) {
		packed, err := Pack("%s%c%l%d", []string{"-2", "7", "-9000000000", "1.5"})
		if err != nil {
			t.Fatalf("Pack failed: %v", err)
		}
		out, err := Unpack("%s%c%l%d", packed)
		if err != nil {
			t.Fatalf("Unpack failed: %v", err)
		}
		if out != "-2 7 -9000000000 1.500000" {
			t.Errorf("Expected \"-2 7 -9000000000 1.500000\", got %q", out)
		}
	})

	t.Run("Format letters without percent", func(t *testing.T) {
		packed, err := Pack("id", []string{"5", "3.5"})
		if err != nil {
			t.Fatalf("Pack failed: %v", err)
		}
		if n := len(DecodeBase64(packed)); n != 12 {
			t.Errorf("Expected 12 bytes, got %d", n)
		}
		out, _ := Unpack("id", packed)
		if out != "5 3.500000" {
			t.Errorf("Expected \"5 3.500000\", got %q", out)
		}
	})

	t.Run("Too few values", func(t *testing.T) {
		if _, err := Pack("%i%i", []string{"1"}); err == nil {
			t.Error("Expected an error when values are missing")
		}
	})

	t.Run("Data too short", func(t *testing.T) {
		if _, err := Unpack("%d", "AQAAAA=="); err == nil {
			t.Error("Expected an error for short data")
		}
	})
}
