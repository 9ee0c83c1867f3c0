package render

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const (
	DefaultFenceTimeout   = 10 * time.Second
	DefaultAcquireTimeout = 10 * time.Second
)

// ClearColor is fully transparent black.
var ClearColor = mgl32.Vec4{0, 0, 0, 0}

type options struct {
	logger         *zap.Logger
	fenceTimeout   time.Duration
	acquireTimeout time.Duration
	clearColor     mgl32.Vec4
}

func defaultOptions() options {
	return options{
		logger:         zap.NewNop(),
		fenceTimeout:   DefaultFenceTimeout,
		acquireTimeout: DefaultAcquireTimeout,
		clearColor:     ClearColor,
	}
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFenceTimeout bounds the throttle wait. Non-positive values keep the
// default; the wait is never unbounded.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

func WithAcquireTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.acquireTimeout = d
		}
	}
}

func WithClearColor(c mgl32.Vec4) Option {
	return func(o *options) {
		o.clearColor = c
	}
}
