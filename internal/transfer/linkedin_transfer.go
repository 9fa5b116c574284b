package transfer

type LinkedInInitializeUpload struct {
	InitializeUploadRequest struct {
		Owner string `json:"owner"`
	} `json:"initializeUploadRequest"`
}

type LinkedInUploadTarget struct {
	Value struct {
		UploadURL string `json:"uploadUrl"`
		Image     string `json:"image"`
	} `json:"value"`
}

type LinkedInMediaRef struct {
	ID string `json:"id"`
}

type LinkedInMultiImage struct {
	Images []LinkedInMediaRef `json:"images"`
}

type LinkedInPostContent struct {
	Media      *LinkedInMediaRef   `json:"media,omitempty"`
	MultiImage *LinkedInMultiImage `json:"multiImage,omitempty"`
	Article    *LinkedInArticle    `json:"article,omitempty"`
}

type LinkedInArticle struct {
	Source string `json:"source"`
	Title  string `json:"title,omitempty"`
}

type LinkedInDistribution struct {
	FeedDistribution string `json:"feedDistribution"`
}

type LinkedInPost struct {
	Author         string               `json:"author"`
	Commentary     string               `json:"commentary"`
	Visibility     string               `json:"visibility"`
	Distribution   LinkedInDistribution `json:"distribution"`
	LifecycleState string               `json:"lifecycleState"`
	Content        *LinkedInPostContent `json:"content,omitempty"`
}

type LinkedInSocialActions struct {
	LikesSummary struct {
		TotalLikes int64 `json:"totalLikes"`
	} `json:"likesSummary"`
	CommentsSummary struct {
		AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
	} `json:"commentsSummary"`
}
