package types

// Envelope is the uniform body of every API response.
type Envelope struct {
	ResponseCode    int    `json:"response_code"`
	ResponseMessage string `json:"response_message"`
	ResponseBody    any    `json:"response_body"`
}

// APIError is carried in ResponseBody when the request failed.
type APIError struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
