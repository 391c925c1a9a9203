package loan

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"pawn-ledger/internal/infrastructure/monitoring"
	"pawn-ledger/internal/pkg/apperrors"
)

// SerialNumber is the human-facing loan identifier: a letter prefix followed
// by a strictly increasing integer.
type SerialNumber struct {
	Prefix string
	Value  int64
}

func (s SerialNumber) String() string {
	return fmt.Sprintf("%s%d", s.Prefix, s.Value)
}

func ParseSerialNumber(raw string) (SerialNumber, error) {
	trimmed := strings.TrimSpace(raw)
	split := 0
	for split < len(trimmed) && unicode.IsLetter(rune(trimmed[split])) {
		split++
	}
	if split == 0 || split == len(trimmed) {
		return SerialNumber{}, apperrors.NewValidationError("serial_no", fmt.Sprintf("%q is not a valid serial number", raw))
	}
	value, err := strconv.ParseInt(trimmed[split:], 10, 64)
	if err != nil || value < 0 {
		return SerialNumber{}, apperrors.NewValidationError("serial_no", fmt.Sprintf("%q is not a valid serial number", raw))
	}
	return SerialNumber{Prefix: trimmed[:split], Value: value}, nil
}

// SerialSource hands out the next raw counter value. Implementations must be
// atomic increment-and-get: two concurrent callers never observe the same
// value, and values never repeat across process restarts.
type SerialSource interface {
	NextSerial(ctx context.Context) (int64, error)
}

type SerialAllocator struct {
	source SerialSource
	prefix string
}

func NewSerialAllocator(source SerialSource, prefix string) *SerialAllocator {
	if prefix == "" {
		prefix = "A"
	}
	return &SerialAllocator{source: source, prefix: prefix}
}

// Allocate issues the next serial number. Scanning the most recently created
// loan for a maximum is not safe under concurrent creation; the counter
// behind SerialSource is the only source of truth.
func (a *SerialAllocator) Allocate(ctx context.Context) (SerialNumber, error) {
	value, err := a.source.NextSerial(ctx)
	if err != nil {
		return SerialNumber{}, fmt.Errorf("allocating serial number: %w", err)
	}
	monitoring.RecordSerialAllocated()
	return SerialNumber{Prefix: a.prefix, Value: value}, nil
}
