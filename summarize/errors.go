package summarize

import "errors"

type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindUpstream  Kind = "upstream"
	KindMalformed Kind = "malformed"
)

// Error is returned for every failed summarization call.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return "summarization " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FailureMessage is the text shown in place of a report when generation failed.
func FailureMessage(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		switch serr.Kind {
		case KindTimeout:
			return "Error: The AI service took too long to respond. Please try again."
		case KindMalformed:
			return "Error generating report: the AI service returned an unreadable response."
		}
		return "Error generating report: " + serr.Err.Error()
	}
	return "Error generating report: " + err.Error()
}
