package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

const serviceName = "esawitku-api"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Event emits one JSON log line stamped with timestamp, level, message
// and the service name. Extra fields are merged over the stamps.
func Event(level, msg string, fields map[string]any) {
	entry := map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   level,
		"msg":     msg,
		"service": serviceName,
	}
	for k, v := range fields {
		entry[k] = v
	}
	emit(entry)
}

// LogRequest emits a structured JSON log line with common HTTP fields.
// Callers supply the full entry, including ts and level.
func LogRequest(entry map[string]any) {
	entry["service"] = serviceName
	emit(entry)
}

func emit(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
