package resolver

// Status classifies one resolver call.
//
//	success: the expected marker was found and URL holds the next hop
//	fail:    well-formed response, marker absent (provider changed layout)
//	error:   transport or parse failure, Message holds the verbatim cause
//	timeout: budget exhausted before or during the call
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// Outcome is the result of one stage resolver call.
type Outcome struct {
	Status  Status
	URL     string
	Label   string
	Message string
}

func success(url, label string) Outcome {
	return Outcome{Status: StatusSuccess, URL: url, Label: label}
}

func fail(message string) Outcome {
	return Outcome{Status: StatusFail, Message: message}
}

func failure(err error) Outcome {
	return Outcome{Status: StatusError, Message: err.Error()}
}

func timedOut(message string) Outcome {
	return Outcome{Status: StatusTimeout, Message: message}
}
