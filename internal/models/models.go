package models

// WorkItem represents a frame to be annotated
type WorkItem struct {
	FrameIndex int
	FrameNum   int
	Total      int
}

// Annotation represents one segmented instance on a frame
type Annotation struct {
	VideoID    string  `json:"video_id"`
	FrameIndex int     `json:"frame_index"`
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Box        [4]int  `json:"box"` // x0, y0, x1, y1 inclusive
	MaskPath   string  `json:"mask_path,omitempty"`
}

// InstanceSearchResult is a similar-instance hit from the annotation store
type InstanceSearchResult struct {
	VideoID    string
	FrameIndex int
	Label      string
	Score      float64
	Similarity float64
}
