package plugin

// Event is the mutable record of one intercepted bridge call.
// A new Event is built for every call and handed to each handler in the
// chain; it is never reused.
type Event struct {
	// Method is the name of the intercepted method.
	Method string

	// Args holds the call arguments. Handlers may edit them before the
	// original method runs.
	Args []any

	// Cancelled stops the handler chain. The original method is not invoked
	// and ReturnValue becomes the result of the call.
	Cancelled bool

	// ReturnValue is the call's result when Cancelled is set.
	ReturnValue any

	observers []Observer
	owner     string
	handlerID string
}

// Observer is a completion callback together with the handler that queued it.
type Observer struct {
	Owner     string
	HandlerID string
	Fn        func(result any, args []any)
}

// NewEvent creates an uncancelled event for a call to method.
func NewEvent(method string, args []any) *Event {
	return &Event{
		Method: method,
		Args:   args,
	}
}

// Cancel marks the event cancelled with the given result.
func (e *Event) Cancel(returnValue any) {
	e.Cancelled = true
	e.ReturnValue = returnValue
}

// Attribute tags observers queued from now on with the handler that is
// about to run.
func (e *Event) Attribute(owner, handlerID string) {
	e.owner = owner
	e.handlerID = handlerID
}

// OnComplete queues fn to observe the final result of the call.
// Observers run in the order they were queued.
func (e *Event) OnComplete(fn func(result any, args []any)) {
	e.observers = append(e.observers, Observer{
		Owner:     e.owner,
		HandlerID: e.handlerID,
		Fn:        fn,
	})
}

// TakeObservers removes and returns the queued observers.
func (e *Event) TakeObservers() []Observer {
	observers := e.observers
	e.observers = nil
	return observers
}

// Complete runs the queued observers with the call's result. A panicking
// observer is not recovered; the bridge wrapper completes events through
// the dispatch registry instead.
func (e *Event) Complete(result any) {
	for _, obs := range e.TakeObservers() {
		obs.Fn(result, e.Args)
	}
}
