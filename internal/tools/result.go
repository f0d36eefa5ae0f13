package tools

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PartialError is a batch failure after some outputs were already written.
type PartialError struct {
	Err     error
	Written []string
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%v (%d written before the failure)", e.Err, len(e.Written))
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"marshal result: %s"}`, err.Error())
	}
	return string(data)
}

// errorPayload is the structured failure sent back to the planner as a normal result.
func errorPayload(reason string) string {
	return mustJSON(map[string]string{"error": reason})
}

// failurePayload renders err, keeping the outputs of a partial batch.
func failurePayload(err error) string {
	var partial *PartialError
	if errors.As(err, &partial) {
		return mustJSON(struct {
			Error   string   `json:"error"`
			Written []string `json:"written"`
		}{partial.Err.Error(), partial.Written})
	}
	return errorPayload(err.Error())
}

func boolPayload(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
