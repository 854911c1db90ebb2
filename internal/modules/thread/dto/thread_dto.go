package dto

type CreateThreadRequest struct {
	Content        string   `json:"content" binding:"max=500"`
	MediaURLs      []string `json:"media_urls" binding:"omitempty,max=4,dive,url"`
	ParentThreadID *string  `json:"parent_thread_id" binding:"omitempty,uuid"`
	ParentReplyID  *string  `json:"parent_reply_id" binding:"omitempty,uuid"`
}
