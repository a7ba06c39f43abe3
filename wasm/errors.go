package wasm

import "errors"

var (
	ErrInvalidByte      = errors.New("invalid byte")
	ErrInvalidBlockType = errors.New("invalid block type")
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrUnexpectedEnd    = errors.New("unexpected end of function body")
)
