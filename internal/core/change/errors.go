package change

import "errors"

var (
	ErrPortOccupied        = errors.New("input port is occupied")
	ErrEdgeNotFound        = errors.New("edge not found")
	ErrHandleCountMismatch = errors.New("unexpected number of input handles")
)
