package http

const (
	StatusOK        uint16 = 200
	StatusNoContent uint16 = 204

	StatusMovedPermanently uint16 = 301
	StatusFound            uint16 = 302

	StatusBadRequest uint16 = 400
	StatusForbidden  uint16 = 403
	StatusNotFound   uint16 = 404

	StatusInternalServerError uint16 = 500
	StatusNotImplemented      uint16 = 501
	StatusServiceUnavailable  uint16 = 503
)

var statusMessages = map[uint16]string{
	StatusOK:        "OK",
	StatusNoContent: "No Content",

	StatusMovedPermanently: "Moved Permanently",
	StatusFound:            "Found",

	StatusBadRequest: "Bad Request",
	StatusForbidden:  "Forbidden",
	StatusNotFound:   "Not Found",

	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
	StatusServiceUnavailable:  "Service Unavailable",
}

func StatusMessage(code uint16) string {
	if message, found := statusMessages[code]; found {
		return message
	}
	return "Unknown Status Code"
}
