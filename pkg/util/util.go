package util

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/golang/glog"

	hferrors "github.com/exordiom/talent-training/pkg/errors"
)

type HTTPMessage struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func ReturnHTTPMessage(w http.ResponseWriter, r *http.Request, httpStatus int, messageType string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	err := HTTPMessage{
		Status:  strconv.Itoa(httpStatus),
		Message: message,
		Type:    messageType,
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(err)
}

type HTTPContent struct {
	Type    string          `json:"type"`
	Status  string          `json:"status"`
	Content json.RawMessage `json:"content"`
}

// ReturnHTTPContent wraps an already encoded JSON document in the response envelope.
func ReturnHTTPContent(w http.ResponseWriter, r *http.Request, httpStatus int, messageType string, content []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	err := HTTPContent{
		Status:  strconv.Itoa(httpStatus),
		Content: content,
		Type:    messageType,
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(err)
}

// ReturnHTTPObject encodes obj and sends it as content.
func ReturnHTTPObject(w http.ResponseWriter, r *http.Request, httpStatus int, messageType string, obj interface{}) {
	encoded, err := json.Marshal(obj)
	if err != nil {
		glog.Errorf("error encoding %s response: %v", messageType, err)
		ReturnHTTPMessage(w, r, http.StatusInternalServerError, "error", "error encoding response")
		return
	}
	ReturnHTTPContent(w, r, httpStatus, messageType, encoded)
}

// ReturnHTTPError answers with the status and message carried by err.
func ReturnHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	status := hferrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		glog.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	ReturnHTTPMessage(w, r, status, GetHTTPErrorCode(status), hferrors.GetErrorMessage(err))
}

func GetHTTPErrorCode(httpStatus int) string {
	switch httpStatus {
	case 400:
		return "BadRequest"
	case 401:
		return "Unauthorized"
	case 404:
		return "NotFound"
	case 403:
		return "PermissionDenied"
	case 409:
		return "Conflict"
	case 500:
		return "ServerError"
	case 502:
		return "BadGateway"
	}

	return "ServerError"
}
