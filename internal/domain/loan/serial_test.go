package loan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSerialSource struct {
	next int64
	err  error
}

func (s *stubSerialSource) NextSerial(_ context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	value := s.next
	s.next++
	return value, nil
}

func TestParseSerialNumber(t *testing.T) {
	t.Run("should parse prefix and value", func(t *testing.T) {
		cases := []struct {
			raw    string
			prefix string
			value  int64
		}{
			{"A150", "A", 150},
			{"AB123", "AB", 123},
			{" B2 ", "B", 2},
			{"Z9999999", "Z", 9999999},
		}
		for _, tc := range cases {
			parsed, err := ParseSerialNumber(tc.raw)
			require.NoError(t, err, "ParseSerialNumber(%q)", tc.raw)
			assert.Equal(t, tc.prefix, parsed.Prefix)
			assert.Equal(t, tc.value, parsed.Value)
		}
	})

	t.Run("should reject malformed serials", func(t *testing.T) {
		for _, raw := range []string{"", "150", "A", "A15x", "15A", "A-1"} {
			_, err := ParseSerialNumber(raw)
			assert.Error(t, err, "ParseSerialNumber(%q)", raw)
		}
	})

	t.Run("should round trip through String", func(t *testing.T) {
		parsed, err := ParseSerialNumber("A150")
		require.NoError(t, err)
		assert.Equal(t, "A150", parsed.String())
	})
}

func TestSerialAllocator(t *testing.T) {
	ctx := context.Background()

	t.Run("should issue sequential serials from the source", func(t *testing.T) {
		allocator := NewSerialAllocator(&stubSerialSource{next: 150}, "A")

		first, err := allocator.Allocate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "A150", first.String())

		second, err := allocator.Allocate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "A151", second.String())
	})

	t.Run("should default the prefix", func(t *testing.T) {
		allocator := NewSerialAllocator(&stubSerialSource{next: 150}, "")

		serial, err := allocator.Allocate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "A150", serial.String())
	})

	t.Run("should surface source failures", func(t *testing.T) {
		allocator := NewSerialAllocator(&stubSerialSource{err: errors.New("sequence unavailable")}, "A")

		_, err := allocator.Allocate(ctx)
		assert.ErrorContains(t, err, "allocating serial number")
	})
}
