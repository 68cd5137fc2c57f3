package utils

import (
	"fmt"
	"strings"
)

// FlagStringMapping names the individual bits of a flags type so that combinations can be printed
// as "FlagA|FlagB".
type FlagStringMapping[T ~int32] struct {
	names map[T]string
	order []T
}

func NewFlagStringMapping[T ~int32]() FlagStringMapping[T] {
	return FlagStringMapping[T]{names: make(map[T]string)}
}

// Register names a single bit. Bits are printed in the order they were registered.
func (m *FlagStringMapping[T]) Register(flag T, name string) {
	if _, exists := m.names[flag]; !exists {
		m.order = append(m.order, flag)
	}
	m.names[flag] = name
}

// FlagsToString prints every registered bit present in value, followed by any unnamed bits in hex
func (m *FlagStringMapping[T]) FlagsToString(value T) string {
	if value == 0 {
		return "None"
	}

	var sb strings.Builder
	remaining := value
	for _, flag := range m.order {
		if value&flag != flag {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteRune('|')
		}
		sb.WriteString(m.names[flag])
		remaining &^= flag
	}

	if remaining != 0 {
		if sb.Len() > 0 {
			sb.WriteRune('|')
		}
		sb.WriteString(fmt.Sprintf("0x%x", int32(remaining)))
	}

	return sb.String()
}
