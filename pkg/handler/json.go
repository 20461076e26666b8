package handler

import (
	"encoding/json"
	"net/http"
)

func writeJson(rw http.ResponseWriter, statusCode int, body interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(statusCode)
	_, err = rw.Write(buf)
	return err
}

func writeJsonError(rw http.ResponseWriter, statusCode int, message string) error {
	return writeJson(rw, statusCode, map[string]string{"error": message})
}
