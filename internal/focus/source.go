package focus

type SignalKind string

const (
	SignalVisibility SignalKind = "visibilitychange"
	SignalBlur       SignalKind = "blur"
)

// Signal is one raw notification from the host page. Hidden is set for
// visibility changes; DocumentVisible is the page visibility at blur time.
type Signal struct {
	Kind            SignalKind
	Hidden          bool
	DocumentVisible bool
}

// Source delivers host signals until the returned cancel func is called.
type Source interface {
	Listen(handler func(Signal)) (cancel func())
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(handler func(Signal)) (cancel func())

func (f SourceFunc) Listen(handler func(Signal)) func() {
	return f(handler)
}
