package main

import (
	"encoding/json"
	"net/http"
)

// apiResponder returns status code and JSON body
type apiResponder func(http.ResponseWriter, *http.Request) (int, string)

func apiHandle(f apiResponder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, content := f(w, r)
		w.Header().Set("Server", "regionmap "+CommitHash)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write([]byte(content))
	}
}

type apiErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// apiError carries the request id so a failure can be found in the log
func apiError(r *http.Request, code int, msg string) (int, string) {
	return marshalOrFail(code, apiErrorBody{
		Error:     msg,
		RequestID: r.Header.Get("X-Request-Id"),
	})
}

func marshalOrFail(code int, content any) (int, string) {
	resp, err := json.Marshal(content)
	if err != nil {
		return 500, `{"error":"JSON serialization failed"}` + "\n"
	}
	return code, string(resp) + "\n"
}
