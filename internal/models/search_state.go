package models

// SearchState holds the ephemeral state of one interactive search flow.
// It lives in Redis (or the in-memory fallback) keyed by user, while the
// durable deletion tasks reference it through SessionID.
type SearchState struct {
	UserID     int64                  `json:"user_id"`
	SessionID  string                 `json:"session_id"`
	Query      string                 `json:"query"`
	Page       int                    `json:"page"`
	MessageIDs []int                  `json:"message_ids,omitempty"`
	TempData   map[string]interface{} `json:"temp_data,omitempty"`
}

func (s *SearchState) GetString(key string) string {
	if s.TempData == nil {
		return ""
	}
	val, ok := s.TempData[key]
	if !ok {
		return ""
	}
	str, _ := val.(string)
	return str
}

func (s *SearchState) GetInt64(key string) int64 {
	if s.TempData == nil {
		return 0
	}
	val, ok := s.TempData[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}
