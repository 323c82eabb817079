// Package calc implements the arithmetic operation exposed by the API.
package calc

import (
	"errors"
	"fmt"
)

// Operation names an arithmetic operation.
type Operation string

// Supported operations.
const (
	Add      Operation = "add"
	Subtract Operation = "subtract"
	Multiply Operation = "multiply"
	Divide   Operation = "divide"
)

// Errors returned by Evaluate.
var (
	ErrDivideByZero     = errors.New("cannot divide by zero")
	ErrUnknownOperation = errors.New("unknown operation")
)

// Request is a calculation request.
type Request struct {
	Operation Operation `json:"operation" description:"The arithmetic operation to perform: add, subtract, multiply or divide"`
	A         float64   `json:"a" description:"First operand"`
	B         float64   `json:"b" description:"Second operand"`
}

// Response echoes the request with its result.
type Response struct {
	Operation Operation `json:"operation"`
	A         float64   `json:"a"`
	B         float64   `json:"b"`
	Result    float64   `json:"result"`
}

// Evaluate performs the requested operation.
func Evaluate(req Request) (Response, error) {
	var result float64
	switch req.Operation {
	case Add:
		result = req.A + req.B
	case Subtract:
		result = req.A - req.B
	case Multiply:
		result = req.A * req.B
	case Divide:
		if req.B == 0 {
			return Response{}, ErrDivideByZero
		}
		result = req.A / req.B
	default:
		return Response{}, fmt.Errorf("%w: %s", ErrUnknownOperation, req.Operation)
	}
	return Response{Operation: req.Operation, A: req.A, B: req.B, Result: result}, nil
}
