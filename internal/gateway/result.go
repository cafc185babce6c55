package gateway

// Result is the structured outcome of one webhook invocation. The webhook
// layer serializes it verbatim; it never surfaces as a transport fault.
type Result struct {
	OK       bool   `json:"ok"`
	Handled  bool   `json:"handled"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func notHandled() Result {
	return Result{OK: true, Handled: false}
}

func rejected(reason string) Result {
	return Result{OK: true, Handled: false, Error: reason}
}

func failed(err error) Result {
	return Result{OK: false, Error: err.Error()}
}
