package feed

// TransportError reports a failed network call to the change feed. It
// is fatal to a sync run: without the complete change set no cursor may
// be committed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "change feed request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a payload that could not be parsed into the
// expected page shape. Fatal to a sync run, same as TransportError.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "change feed payload could not be decoded: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
