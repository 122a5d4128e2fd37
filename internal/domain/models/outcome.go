package models

import "fmt"

// CheckOutcome is what every check returns instead of an error.
type CheckOutcome struct {
	OK     bool
	Reason string
}

func Pass() CheckOutcome { return CheckOutcome{OK: true} }

func Fail(err error) CheckOutcome {
	if err == nil {
		return CheckOutcome{Reason: "unknown failure"}
	}
	return CheckOutcome{Reason: err.Error()}
}

func Failf(format string, a ...interface{}) CheckOutcome {
	return CheckOutcome{Reason: fmt.Sprintf(format, a...)}
}
