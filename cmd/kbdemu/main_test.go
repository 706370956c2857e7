package main

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestParseHexBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"1e 9e", []byte{0x1E, 0x9E}, false},
		{"0xE0,0x48, 0xe0 0xc8", []byte{0xE0, 0x48, 0xE0, 0xC8}, false},
		{"", []byte{}, false},
		{"100", nil, true},
		{"zz", nil, true},
	}
	for _, tt := range tests {
		got, err := parseHexBytes(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHexBytes(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseHexBytes(%q) = % x, want % x", tt.in, got, tt.want)
		}
	}
}

func TestParseScript(t *testing.T) {
	script := "# shift h\n2a 23 a3 aa\n\n17 97 # i\n"
	got, err := parseScript(strings.NewReader(script))
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x2A, 0x23, 0xA3, 0xAA, 0x17, 0x97}; !reflect.DeepEqual(got, want) {
		t.Errorf("parseScript = % x, want % x", got, want)
	}
	if _, err := parseScript(strings.NewReader("1e\nxx\n")); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("bad line error %v", err)
	}
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	n, err := crlfWriter{&buf}.Write([]byte("a\nb"))
	if err != nil || n != 3 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if buf.String() != "a\r\nb" {
		t.Errorf("got %q", buf.String())
	}
}
