package http

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Record is one key/value pair of a range response.
type Record struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response represents the standard API response format.
type Response struct {
	Status  Status    `json:"status,omitempty"`
	Value   string    `json:"value,omitempty"`
	Records []Record  `json:"records,omitempty"`
	Stats   *StatsDTO `json:"stats,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// StatsDTO mirrors store.Stats on the wire.
type StatsDTO struct {
	Generations    int    `json:"generations"`
	NextGeneration uint64 `json:"next_generation"`
	MemtableKeys   int    `json:"memtable_keys"`
	MemtableBytes  int64  `json:"memtable_bytes"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse() Response {
	return Response{Status: StatusSuccess}
}

func NewValueResponse(value string) Response {
	return Response{Status: StatusSuccess, Value: value}
}

func NewRecordsResponse(records []Record) Response {
	if records == nil {
		records = []Record{}
	}
	return Response{Status: StatusSuccess, Records: records}
}

func NewStatsResponse(stats StatsDTO) Response {
	return Response{Status: StatusSuccess, Stats: &stats}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}
