package dto

import "strconv"

// ErrorResponseDTO is the body of every JSON error response.
type ErrorResponseDTO struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

type HealthDTO struct {
	Status string `json:"status"`
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
