package rtkernel

import (
	"github.com/a2y-d5l/go-rtkernel/event"
	"github.com/a2y-d5l/go-rtkernel/host"
	"github.com/a2y-d5l/go-rtkernel/irq"
	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/msgq"
	"github.com/a2y-d5l/go-rtkernel/poll"
	"github.com/a2y-d5l/go-rtkernel/sem"
	"github.com/a2y-d5l/go-rtkernel/tick"
	"github.com/a2y-d5l/go-rtkernel/work"
)

// Time
type Ticks = tick.Ticks
type Instant = tick.Instant
type Timeout = tick.Timeout

var (
	Forever = tick.Forever
	NoWait  = tick.NoWait
)

var (
	For      = tick.For
	Until    = tick.Until
	Now      = tick.Now
	Deadline = tick.Deadline
)

// Execution context
type Fault = kernel.Fault

var (
	WithISR      = kernel.WithISR
	InISR        = kernel.InISR
	WithPriority = kernel.WithPriority
	Sleep        = kernel.Sleep
	SleepUntil   = kernel.SleepUntil
	Yield        = kernel.Yield
)

// Primitives
type EventGroup = event.Group
type Events = event.Events
type Semaphore = sem.Semaphore
type PollSignal = poll.Signal
type PollEvent = poll.Event

var (
	NewEventGroup      = event.New
	NewSemaphore       = sem.New
	NewBinarySemaphore = sem.NewBinary
	NewPollSignal      = poll.NewSignal
	NewPollEvent       = poll.NewEvent
	Poll               = poll.Poll
)

// MessageQueue is a bounded FIFO of T.
type MessageQueue[T any] = msgq.Queue[T]

// NewMessageQueue creates an empty queue holding at most capacity messages.
func NewMessageQueue[T any](capacity int) *MessageQueue[T] { return msgq.New[T](capacity) }

// Work
type WorkQueue = work.Queue
type WorkHandler = work.Handler
type WorkHandlerFunc = work.HandlerFunc
type WorkOption = work.Option

var NewWorkQueue = work.NewQueue

// Interrupts and hosting
type Host = host.Host
type HostOption = host.Option
type HostConfig = host.Config
type IRQLine = irq.Line
type IRQRequest = irq.Request
type IRQHandler = irq.Handler
type IRQHandlerFunc = irq.HandlerFunc

var (
	NewHost        = host.New
	LoadHostConfig = host.LoadConfig
)
