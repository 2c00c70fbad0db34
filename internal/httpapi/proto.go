package httpapi

import (
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
)

// maxRequestBody caps request bodies. Slack interaction payloads are the
// largest thing the gateway accepts and stay well under this.
const maxRequestBody = 64 << 10

// wantsProtobuf reports whether the caller asked for a protobuf reply. The
// opener firmware sends "Accept: application/x-protobuf" to keep replies small.
func wantsProtobuf(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		switch mt {
		case "application/x-protobuf", "application/protobuf":
			return true
		}
	}
	return false
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		// Fall back to a plain-text error if marshalling fails.
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
