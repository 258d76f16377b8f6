package dto

type VideoResultDTO struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	WatchURL string `json:"watch_url"`
	EmbedURL string `json:"embed_url"`
}

// VideoSearchDTO carries lookup results. Hint is set when nothing came back.
type VideoSearchDTO struct {
	Query          string           `json:"query"`
	Results        []VideoResultDTO `json:"results"`
	MoreResultsURL string           `json:"more_results_url,omitempty"`
	Hint           string           `json:"hint,omitempty"`
}
