package metrics

type contextKey string

func (c contextKey) String() string {
	return "metricsContextKey" + string(c)
}

var RetriesKey = contextKey("IngestRetries")
