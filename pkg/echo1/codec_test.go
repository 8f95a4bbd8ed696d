package echo1

import (
	"bytes"
	"errors"
	"testing"

	"github.com/m-lab/echoprobe/pkg/echo1/model"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
)

func TestEncodeSetup(t *testing.T) {
	tests := []struct {
		name   string
		params model.Params
		want   string
		legacy string
	}{
		{
			name:   "integral delay",
			params: model.Params{Kind: spec.KindRTT, Probes: 3, Size: 10, Delay: 0},
			want:   "s rtt 3 10 0\n",
			legacy: "s rtt 3 10 0\n",
		},
		{
			name:   "fractional delay",
			params: model.Params{Kind: spec.KindThroughput, Probes: 2, Size: 100, Delay: 0.5},
			want:   "s tput 2 100 0.5\n",
			legacy: "s tput 2 100 0\n",
		},
		{
			name:   "large delay",
			params: model.Params{Kind: spec.KindRTT, Probes: 1, Size: 0, Delay: 2},
			want:   "s rtt 1 0 2\n",
			legacy: "s rtt 1 0 2\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(EncodeSetup(tt.params)); got != tt.want {
				t.Errorf("EncodeSetup() = %q, want %q", got, tt.want)
			}
			if got := string(EncodeSetupLegacy(tt.params)); got != tt.legacy {
				t.Errorf("EncodeSetupLegacy() = %q, want %q", got, tt.legacy)
			}
			// The exact encoding must survive decoding unchanged.
			got, err := DecodeSetup(EncodeSetup(tt.params))
			if err != nil {
				t.Fatalf("DecodeSetup() error = %v", err)
			}
			if got != tt.params {
				t.Errorf("DecodeSetup() = %+v, want %+v", got, tt.params)
			}
		})
	}
}

func TestDecodeSetup_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "empty", line: ""},
		{name: "no delimiter", line: "s rtt 3 10 0"},
		{name: "missing field", line: "s rtt 3 10\n"},
		{name: "extra field", line: "s rtt 3 10 0 1\n"},
		{name: "double space", line: "s rtt  3 10 0\n"},
		{name: "wrong tag", line: "m rtt 3 10 0\n"},
		{name: "unknown kind", line: "s xyz 3 10 0\n"},
		{name: "zero probes", line: "s rtt 0 10 0\n"},
		{name: "negative probes", line: "s rtt -1 10 0\n"},
		{name: "signed probes", line: "s rtt +1 10 0\n"},
		{name: "hex size", line: "s rtt 1 0x10 0\n"},
		{name: "size too large", line: "s rtt 1 65537 0\n"},
		{name: "negative delay", line: "s rtt 1 1 -1\n"},
		{name: "nan delay", line: "s rtt 1 1 NaN\n"},
		{name: "inf delay", line: "s rtt 1 1 Inf\n"},
		{name: "delay too large", line: "s rtt 1 1 31\n"},
		{name: "non-numeric delay", line: "s rtt 1 1 abc\n"},
		{name: "crlf", line: "s rtt 1 1 0\r\n"},
		{name: "hex float delay", line: "s rtt 1 1 0x1p-2\n"},
		{name: "exponent delay", line: "s rtt 1 1 1e-1\n"},
		{name: "two dots", line: "s rtt 1 1 1.2.3\n"},
		{name: "lone dot", line: "s rtt 1 1 .\n"},
		{name: "signed delay", line: "s rtt 1 1 +1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSetup([]byte(tt.line))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("DecodeSetup(%q) error = %v, want ErrMalformedMessage", tt.line, err)
			}
		})
	}
}

func TestDecodeSetup_MaxSize(t *testing.T) {
	p, err := DecodeSetup([]byte("s tput 1 65536 0.25\n"))
	if err != nil {
		t.Fatalf("DecodeSetup() error = %v", err)
	}
	if p.Size != spec.MaxPayloadSize || p.Delay != 0.25 || p.Kind != spec.KindThroughput {
		t.Errorf("DecodeSetup() = %+v", p)
	}
}

func TestDecodeSetup_DecimalDelay(t *testing.T) {
	for line, want := range map[string]float64{
		"s rtt 1 1 2\n":    2,
		"s rtt 1 1 0.25\n": 0.25,
		"s rtt 1 1 .5\n":   0.5,
		"s rtt 1 1 1.\n":   1,
	} {
		p, err := DecodeSetup([]byte(line))
		if err != nil {
			t.Errorf("DecodeSetup(%q) error = %v", line, err)
			continue
		}
		if p.Delay != want {
			t.Errorf("DecodeSetup(%q) delay = %v, want %v", line, p.Delay, want)
		}
	}
}

func TestProbeCodec(t *testing.T) {
	tests := []struct {
		name    string
		seq     int
		payload []byte
		want    string
	}{
		{name: "simple", seq: 1, payload: []byte("aaaaa"), want: "m 1 aaaaa\n"},
		{name: "empty payload", seq: 7, payload: []byte{}, want: "m 7 \n"},
		{name: "payload with spaces", seq: 12, payload: []byte("a b  c "), want: "m 12 a b  c \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := EncodeProbe(tt.seq, tt.payload)
			if string(line) != tt.want {
				t.Fatalf("EncodeProbe() = %q, want %q", line, tt.want)
			}
			p, err := DecodeProbe(line)
			if err != nil {
				t.Fatalf("DecodeProbe() error = %v", err)
			}
			if p.Seq != tt.seq || !bytes.Equal(p.Payload, tt.payload) {
				t.Errorf("DecodeProbe() = {%d %q}, want {%d %q}", p.Seq, p.Payload, tt.seq, tt.payload)
			}
		})
	}
}

func TestDecodeProbe_Errors(t *testing.T) {
	for _, line := range []string{
		"",
		"m 1 aaa",
		"m\n",
		"m 1\n",
		"s 1 aaa\n",
		"m1 aaa\n",
		"m  1 aaa\n",
		"m x aaa\n",
		"m -1 aaa\n",
	} {
		if _, err := DecodeProbe([]byte(line)); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("DecodeProbe(%q) error = %v, want ErrMalformedMessage", line, err)
		}
	}
}

func TestTerminateCodec(t *testing.T) {
	if got := string(EncodeTerminate()); got != "t\n" {
		t.Errorf("EncodeTerminate() = %q", got)
	}
	if err := DecodeTerminate(EncodeTerminate()); err != nil {
		t.Errorf("DecodeTerminate() error = %v", err)
	}
	for _, line := range []string{"", "t", "x\n", "t \n", "tt\n"} {
		if err := DecodeTerminate([]byte(line)); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("DecodeTerminate(%q) error = %v, want ErrMalformedMessage", line, err)
		}
	}
}

func TestPayload(t *testing.T) {
	p := NewPayload(4)
	if string(p) != "aaaa" {
		t.Errorf("NewPayload() = %q", p)
	}
	if len(NewPayload(0)) != 0 {
		t.Errorf("NewPayload(0) is not empty")
	}
	if err := ValidatePayload([]byte("a b\tc")); err != nil {
		t.Errorf("ValidatePayload() error = %v", err)
	}
	if err := ValidatePayload([]byte("a\nb")); err == nil {
		t.Errorf("ValidatePayload() did not reject the delimiter")
	}
}
