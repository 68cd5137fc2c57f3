package main

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// OpKind is the operation performed by one line of a trace
type OpKind byte

const (
	OpAllocate       OpKind = 'a'
	OpAllocateZeroed OpKind = 'z'
	OpResize         OpKind = 'r'
	OpRelease        OpKind = 'f'
)

func (k OpKind) String() string {
	switch k {
	case OpAllocate:
		return "allocate"
	case OpAllocateZeroed:
		return "allocate zeroed"
	case OpResize:
		return "resize"
	case OpRelease:
		return "release"
	}

	return "unknown"
}

// Op is a single parsed trace line. Count is only used by OpAllocateZeroed, and Size is unused by
// OpRelease.
type Op struct {
	Line  int
	Kind  OpKind
	ID    string
	Count int
	Size  int
}

var operandCounts = map[OpKind]int{
	OpAllocate:       2,
	OpAllocateZeroed: 3,
	OpResize:         2,
	OpRelease:        1,
}

// ParseTrace reads one operation per line. Blank lines and lines starting with # are skipped.
//
//	a <id> <size>          allocate
//	z <id> <count> <size>  allocate zeroed
//	r <id> <size>          resize
//	f <id>                 release
func ParseTrace(r io.Reader) ([]Op, error) {
	var ops []Op

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		op, err := parseOp(line, strings.Fields(text))
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read trace")
	}

	return ops, nil
}

func parseOp(line int, fields []string) (Op, error) {
	if len(fields[0]) != 1 {
		return Op{}, errors.Newf("line %d: unknown operation %q", line, fields[0])
	}

	op := Op{Line: line, Kind: OpKind(fields[0][0])}
	expected, known := operandCounts[op.Kind]
	if !known {
		return Op{}, errors.Newf("line %d: unknown operation %q", line, fields[0])
	}

	if len(fields)-1 != expected {
		return Op{}, errors.Newf("line %d: %s takes %d operands, but %d were provided", line, op.Kind, expected, len(fields)-1)
	}

	op.ID = fields[1]

	numbers := make([]int, 0, 2)
	for _, field := range fields[2:] {
		value, err := strconv.Atoi(field)
		if err != nil {
			return Op{}, errors.Wrapf(err, "line %d", line)
		}
		if value < 0 {
			return Op{}, errors.Newf("line %d: sizes cannot be negative, but %d was provided", line, value)
		}
		numbers = append(numbers, value)
	}

	switch op.Kind {
	case OpAllocate, OpResize:
		op.Size = numbers[0]
	case OpAllocateZeroed:
		op.Count = numbers[0]
		op.Size = numbers[1]
	}

	return op, nil
}
