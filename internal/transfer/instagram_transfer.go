package transfer

type InstagramContainerRequest struct {
	ImageURL       string `json:"image_url,omitempty"`
	VideoURL       string `json:"video_url,omitempty"`
	MediaType      string `json:"media_type,omitempty"`
	Caption        string `json:"caption,omitempty"`
	IsCarouselItem bool   `json:"is_carousel_item,omitempty"`
	Children       string `json:"children,omitempty"`
}

type InstagramPublishRequest struct {
	CreationID string `json:"creation_id"`
}

type InstagramID struct {
	ID string `json:"id"`
}

type InstagramContainerStatus struct {
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type InstagramMedia struct {
	ID            string `json:"id"`
	Permalink     string `json:"permalink"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}
