package irq

import "errors"

var (
	// ErrClosed indicates the controller was closed.
	ErrClosed = errors.New("interrupt controller is closed")
	// ErrNoConnection indicates the controller was given no bus connection.
	ErrNoConnection = errors.New("no interrupt bus connection")
	// ErrLineInUse indicates a handler is already connected to the line.
	ErrLineInUse = errors.New("interrupt line already connected")
	// ErrLineNotConnected indicates no handler is connected to the line.
	ErrLineNotConnected = errors.New("interrupt line not connected")
	// ErrInvalidPrefix indicates the subject prefix is not a valid literal subject.
	ErrInvalidPrefix = errors.New("invalid interrupt subject prefix")
)
