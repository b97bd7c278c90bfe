package asm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bootcode/pkg/cpu"
)

var mnemonics = map[string]cpu.Op{
	"nop": cpu.OpNOP,
	"acc": cpu.OpACC,
	"jmp": cpu.OpJMP,
}

var signedInteger = regexp.MustCompile(`^[+-]?[0-9]+$`)

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrBadArgument   = errors.New("invalid argument")
	ErrMalformedLine = errors.New("malformed instruction")
)

// DecodeError reports a line that is not a valid instruction. Line is
// 1-based, or 0 when the text was decoded on its own.
type DecodeError struct {
	Line int
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Text)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type parsedLine struct {
	lineNo   int
	mnemonic string
	operand  string
	empty    bool
}

// Decode turns one `<opcode> <signed-integer>` line into an instruction.
// Opcodes are matched case-sensitively.
func Decode(line string) (cpu.Instruction, error) {
	p, err := parseLine(line, 0)
	if err != nil {
		return cpu.Instruction{}, err
	}
	if p.empty {
		return cpu.Instruction{}, &DecodeError{Text: line, Err: ErrMalformedLine}
	}
	return encode(p, line)
}

// Assemble decodes a whole listing. Blank lines and lines starting with '#'
// are skipped. The returned map gives the 1-based source line of each
// instruction index. The first bad line aborts the whole program.
func Assemble(code string) (cpu.Program, map[int]int, error) {
	return assembleLines(strings.Split(code, "\n"))
}

// AssembleLines is Assemble over an already split line source.
func AssembleLines(lines []string) (cpu.Program, error) {
	prog, _, err := assembleLines(lines)
	return prog, err
}

func assembleLines(lines []string) (cpu.Program, map[int]int, error) {
	program := make(cpu.Program, 0, len(lines))
	sourceMap := make(map[int]int)

	for i, raw := range lines {
		if isComment(raw) {
			continue
		}
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}
		if p.empty {
			continue
		}

		instr, err := encode(p, raw)
		if err != nil {
			return nil, nil, err
		}
		sourceMap[len(program)] = lineNo
		program = append(program, instr)
	}

	return program, sourceMap, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(raw)
	if line == "" {
		p.empty = true
		return p, nil
	}

	fields := strings.Fields(line)
	if len(fields) != 2 {
		return p, &DecodeError{Line: lineNo, Text: raw, Err: ErrMalformedLine}
	}

	p.mnemonic = fields[0]
	p.operand = fields[1]
	return p, nil
}

func encode(p parsedLine, raw string) (cpu.Instruction, error) {
	op, ok := mnemonics[p.mnemonic]
	if !ok {
		return cpu.Instruction{}, &DecodeError{Line: p.lineNo, Text: raw, Err: ErrUnknownOpcode}
	}

	arg, err := parseImmediate(p.operand)
	if err != nil {
		return cpu.Instruction{}, &DecodeError{Line: p.lineNo, Text: raw, Err: err}
	}

	return cpu.Instruction{Op: op, Arg: arg}, nil
}

// parseImmediate accepts a signed decimal in [cpu.MinArg, cpu.MaxArg].
func parseImmediate(token string) (int, error) {
	if !signedInteger.MatchString(token) {
		return 0, ErrBadArgument
	}
	value, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	return int(value), nil
}

// isComment reports whether raw is a whole-line comment. A '#' anywhere
// else on a line is not special.
func isComment(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "#")
}

// Disassemble renders p in the listing format Assemble reads.
func Disassemble(p cpu.Program) string {
	var sb strings.Builder
	for _, instr := range p {
		sb.WriteString(instr.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
