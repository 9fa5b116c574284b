package transfer

type FacebookID struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type facebookSummary struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

type FacebookPostStats struct {
	ID        string          `json:"id"`
	Permalink string          `json:"permalink_url"`
	Likes     facebookSummary `json:"likes"`
	Comments  facebookSummary `json:"comments"`
	Shares    struct {
		Count int64 `json:"count"`
	} `json:"shares"`
}

func (s FacebookPostStats) LikeCount() int64    { return s.Likes.Summary.TotalCount }
func (s FacebookPostStats) CommentCount() int64 { return s.Comments.Summary.TotalCount }
