package renderer

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"deferred-engine/internal/gpu"
	"deferred-engine/shader"
)

// Kind classifies how a failure is handled.
type Kind int

const (
	// KindFatal failures leave the pipeline unusable: the policy logs and exits.
	KindFatal Kind = iota
	// KindRecoverable failures skip the offending operation. With
	// ExitOnError they escalate to exit.
	KindRecoverable
	// KindSilent failures skip an upload and are logged once at debug level.
	KindSilent
)

func (k Kind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindRecoverable:
		return "recoverable"
	case KindSilent:
		return "silent"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var (
	ErrInvalidSize  = errors.New("size must be at least 1x1")
	ErrWrongContext = errors.New("render target belongs to another window")
	ErrNoCamera     = errors.New("no active camera")
)

// Error is the status returned by pipeline operations.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Classify returns the kind of err. An *Error carries its own kind; bare
// device and shader errors are mapped by their sentinel.
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, gpu.ErrIncompleteFramebuffer),
		errors.Is(err, gpu.ErrCompile),
		errors.Is(err, gpu.ErrLink),
		errors.Is(err, gpu.ErrCreateProgram):
		return KindFatal
	case errors.Is(err, shader.ErrUniformNotFound):
		return KindSilent
	}
	return KindRecoverable
}

// Policy makes the abort-or-continue decision for every error the pipeline
// reports. One policy is shared by a RenderContext and everything it runs.
type Policy struct {
	ExitOnError bool
	// Exit terminates the process. Tests replace it.
	Exit   func(code int)
	Logger *log.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewPolicy(exitOnError bool, logger *log.Logger) *Policy {
	return &Policy{ExitOnError: exitOnError, Exit: os.Exit, Logger: logger}
}

// Handle reports err and tells the caller whether it may carry on with the
// operation that produced it. A nil error always continues.
func (p *Policy) Handle(err error) bool {
	if err == nil {
		return true
	}
	switch Classify(err) {
	case KindFatal:
		p.Logger.Error("fatal", "err", err)
		p.exit()
		return false
	case KindSilent:
		if p.once(err.Error()) {
			p.Logger.Debug("skipped", "err", err)
		}
		return true
	default:
		p.Logger.Error("recoverable", "err", err)
		if p.ExitOnError {
			p.exit()
		}
		return false
	}
}

func (p *Policy) exit() {
	if p.Exit != nil {
		p.Exit(1)
	}
}

func (p *Policy) once(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen == nil {
		p.seen = make(map[string]struct{})
	}
	if _, ok := p.seen[key]; ok {
		return false
	}
	p.seen[key] = struct{}{}
	return true
}
