package entities

// LeafletChunk is a contiguous span of leaflet text with the page of its first character.
// Start and End are byte offsets into the joined leaflet text.
type LeafletChunk struct {
	Text       string `json:"text"`
	PageNumber int    `json:"pageNumber"`
	SourceTag  string `json:"sourceTag"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// LeafletPage is the extracted text of one PDF page (1-based number)
type LeafletPage struct {
	Number int
	Text   string
}

// AnswerStatus describes how an answer was produced
type AnswerStatus string

const (
	AnswerStatusAnswered  AnswerStatus = "answered"
	AnswerStatusNoContent AnswerStatus = "no_content"
	AnswerStatusFailed    AnswerStatus = "failed"
)

// AnsweredQuestion is the result of one question against one leaflet.
// AnswerText is never empty, failures carry a localized apology and Success=false.
type AnsweredQuestion struct {
	Question       string         `json:"question"`
	AnswerText     string         `json:"answer"`
	CitedPages     []int          `json:"citedPages"`
	MentionedPages []int          `json:"mentionedPages"`
	SourceChunks   []LeafletChunk `json:"-"`
	Status         AnswerStatus   `json:"status"`
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
}
