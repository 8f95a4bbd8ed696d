package echo1

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/m-lab/echoprobe/pkg/echo1/model"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
)

// EncodeSetup returns the Setup message for p. The delay is rendered with as
// many fractional digits as needed to represent it exactly; integral delays
// are rendered without fractional digits.
func EncodeSetup(p model.Params) []byte {
	return encodeSetup(p, strconv.FormatFloat(p.Delay, 'f', -1, 64))
}

// EncodeSetupLegacy returns the Setup message for p with the delay rounded
// to whole seconds, as done by older clients. Sub-second delays are lost.
func EncodeSetupLegacy(p model.Params) []byte {
	return encodeSetup(p, strconv.FormatFloat(p.Delay, 'f', 0, 64))
}

func encodeSetup(p model.Params, delay string) []byte {
	return []byte(fmt.Sprintf("%c %s %d %d %s%c", spec.TagSetup, p.Kind,
		p.Probes, p.Size, delay, spec.Delimiter))
}

// DecodeSetup parses and validates a Setup message.
func DecodeSetup(line []byte) (model.Params, error) {
	body, err := trimDelimiter(line)
	if err != nil {
		return model.Params{}, err
	}
	fields := strings.Split(string(body), " ")
	if len(fields) != 5 {
		return model.Params{}, malformed("setup has %d fields, want 5", len(fields))
	}
	if fields[0] != string(spec.TagSetup) {
		return model.Params{}, malformed("unexpected phase tag %q", fields[0])
	}
	probes, err := parseDecimal(fields[2])
	if err != nil {
		return model.Params{}, malformed("probe count: %v", err)
	}
	size, err := parseDecimal(fields[3])
	if err != nil {
		return model.Params{}, malformed("payload size: %v", err)
	}
	delay, err := parseDecimalFraction(fields[4])
	if err != nil {
		return model.Params{}, malformed("delay: %v", err)
	}
	p := model.Params{
		Kind:   spec.Kind(fields[1]),
		Probes: probes,
		Size:   size,
		Delay:  delay,
	}
	if err := p.Validate(); err != nil {
		return model.Params{}, malformed("%v", err)
	}
	return p, nil
}

// EncodeProbe returns the Probe message for the given sequence number and
// payload.
func EncodeProbe(seq int, payload []byte) []byte {
	b := make([]byte, 0, len(payload)+24)
	b = append(b, spec.TagProbe, ' ')
	b = strconv.AppendInt(b, int64(seq), 10)
	b = append(b, ' ')
	b = append(b, payload...)
	return append(b, spec.Delimiter)
}

// DecodeProbe parses a Probe message. The payload is everything between the
// separator following the sequence number and the delimiter: it is not
// split on whitespace, so its length can be checked against the negotiated
// size by the caller.
func DecodeProbe(line []byte) (model.Probe, error) {
	body, err := trimDelimiter(line)
	if err != nil {
		return model.Probe{}, err
	}
	if len(body) < 2 || body[0] != spec.TagProbe || body[1] != ' ' {
		return model.Probe{}, malformed("unexpected phase tag in %.16q", body)
	}
	rest := body[2:]
	i := bytes.IndexByte(rest, ' ')
	if i < 0 {
		return model.Probe{}, malformed("probe has no payload field")
	}
	seq, err := parseDecimal(string(rest[:i]))
	if err != nil {
		return model.Probe{}, malformed("sequence number: %v", err)
	}
	return model.Probe{Seq: seq, Payload: rest[i+1:]}, nil
}

// EncodeTerminate returns the Terminate message.
func EncodeTerminate() []byte {
	return []byte{spec.TagTerminate, spec.Delimiter}
}

// DecodeTerminate checks that line is a Terminate message.
func DecodeTerminate(line []byte) error {
	body, err := trimDelimiter(line)
	if err != nil {
		return err
	}
	if len(body) != 1 || body[0] != spec.TagTerminate {
		return malformed("unexpected terminate message %.16q", body)
	}
	return nil
}

// NewPayload returns a payload of the given size made of a single repeated
// printable byte.
func NewPayload(size int) []byte {
	return bytes.Repeat([]byte{spec.DefaultPayloadByte}, size)
}

// ValidatePayload checks that payload can be carried by a Probe message.
// Any byte but the delimiter is allowed.
func ValidatePayload(payload []byte) error {
	if i := bytes.IndexByte(payload, spec.Delimiter); i >= 0 {
		return fmt.Errorf("payload contains the delimiter at offset %d", i)
	}
	return nil
}

func trimDelimiter(line []byte) ([]byte, error) {
	if len(line) == 0 || line[len(line)-1] != spec.Delimiter {
		return nil, malformed("missing delimiter")
	}
	return line[:len(line)-1], nil
}

// parseDecimal parses a non-negative decimal number made of ASCII digits
// only. Signs, spaces and other bases are rejected.
func parseDecimal(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("invalid number %q", s)
		}
	}
	return strconv.Atoi(s)
}

// parseDecimalFraction parses a non-negative decimal number made of ASCII
// digits and at most one dot, e.g. "2", "0.5" or ".25". Exponents, signs,
// hexadecimal notation and special values are rejected.
func parseDecimalFraction(s string) (float64, error) {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			digits++
		case s[i] == '.':
			dots++
		default:
			return 0, fmt.Errorf("invalid number %q", s)
		}
	}
	if digits == 0 || dots > 1 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return strconv.ParseFloat(s, 64)
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
